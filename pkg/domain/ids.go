// Package domain defines typed identifiers shared across the service.
//
// Each ID is a distinct named type over uuid.UUID so the compiler rejects
// cross-assignment (a UserID can never be passed where a RecordID is
// expected). Parse functions enforce the invariant that IDs are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "timeclock/pkg/domain-errors"
)

type (
	// UserID identifies the worker a record belongs to.
	UserID uuid.UUID

	// RecordID identifies a single attendance record.
	RecordID uuid.UUID
)

// NewRecordID allocates a fresh record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id RecordID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Named types over uuid.UUID do not inherit its methods, so each ID carries
// its own text marshaling to serialize as the canonical string form.

func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID parses and validates a user ID from its string form.
func ParseUserID(s string) (UserID, error) {
	parsed, err := parseUUID(s, "user_id")
	return UserID(parsed), err
}

// ParseRecordID parses and validates a record ID from its string form.
func ParseRecordID(s string) (RecordID, error) {
	parsed, err := parseUUID(s, "record_id")
	return RecordID(parsed), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", field))
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("%s is not a valid UUID", field))
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must not be the nil UUID", field))
	}
	return parsed, nil
}
