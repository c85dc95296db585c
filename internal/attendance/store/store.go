// Package store owns persistence of attendance records and their lifecycle
// invariants: one record per (user, day), check-out only after check-in, and
// the one-way verified transition.
package store

import (
	"context"
	"time"

	"timeclock/internal/attendance/models"
	id "timeclock/pkg/domain"
	dErrors "timeclock/pkg/domain-errors"
)

// Lifecycle errors shared by all implementations so services and tests match
// on codes, not backend details.
var (
	ErrAlreadyCheckedIn = dErrors.New(dErrors.CodeAlreadyCheckedIn, "already checked in today")
	ErrNotCheckedIn     = dErrors.New(dErrors.CodeNotCheckedIn, "no open check-in for today")
	ErrRecordNotFound   = dErrors.New(dErrors.CodeNotFound, "attendance record not found")
)

// Store is the attendance record repository. Implementations must serialize
// CreateCheckIn and ApplyCheckOut per (userID, day): of two concurrent
// check-ins for the same key exactly one succeeds.
//
// Records returned are private copies; mutating them does not affect the
// stored state.
type Store interface {
	// GetRecord returns the record for the key, or nil when none exists.
	GetRecord(ctx context.Context, userID id.UserID, day time.Time) (*models.Record, error)

	// GetByID returns the record with the given ID or ErrRecordNotFound.
	GetByID(ctx context.Context, recordID id.RecordID) (*models.Record, error)

	// CanCheckIn reports whether a check-in may be created: no record for
	// the key, or a record with no check-in entry.
	CanCheckIn(ctx context.Context, userID id.UserID, day time.Time) (bool, error)

	// CanCheckOut reports whether a check-out may be applied: the key's
	// record has a check-in and no check-out.
	CanCheckOut(ctx context.Context, userID id.UserID, day time.Time) (bool, error)

	// CreateCheckIn creates the day's record with its check-in entry and
	// provisional status. Fails with ErrAlreadyCheckedIn when a check-in
	// already exists.
	CreateCheckIn(ctx context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error)

	// ApplyCheckOut sets the check-out entry, recomputes total hours, and
	// updates the status. Fails with ErrNotCheckedIn when there is no open
	// check-in.
	ApplyCheckOut(ctx context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error)

	// Approve marks every entry present on the record verified and stamps
	// the approver. Approving an already-verified record is a no-op, not an
	// error; verified never reverts.
	Approve(ctx context.Context, recordID id.RecordID, approverID id.UserID, now time.Time) (*models.Record, error)

	// ListRange returns the user's records with from <= day <= to, ordered
	// by day ascending.
	ListRange(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.Record, error)
}
