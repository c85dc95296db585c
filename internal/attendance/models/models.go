// Package models defines the attendance record entities and the settings
// snapshot consumed by the rest of the feature.
package models

import (
	"time"

	"timeclock/internal/attendance/geofence"
	id "timeclock/pkg/domain"
)

// Status is the classified attendance outcome for a day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusHalfDay Status = "HALF_DAY"
	StatusAbsent  Status = "ABSENT"
	StatusLeave   Status = "LEAVE"
)

// IsValid reports whether s is one of the known statuses. Stores accept
// ABSENT and LEAVE on read (written by the external reconciliation and leave
// flows) even though this subsystem never produces them.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusHalfDay, StatusAbsent, StatusLeave:
		return true
	}
	return false
}

// Method records how an entry's presence was established.
type Method string

const (
	// MethodAutomatic means the location was confirmed against the geofence.
	MethodAutomatic Method = "automatic"
	// MethodManual means no geofence confirmation; the entry starts
	// unverified and requires approval.
	MethodManual Method = "manual"
)

// Location is a validated GPS fix attached to an entry.
type Location struct {
	Point          geofence.Point `json:"point"`
	AccuracyMeters *float64       `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	// Address is best-effort reverse geocoding; nil when the geocoder
	// failed or timed out.
	Address *string `json:"address,omitempty"`
}

// Entry is one side of the day (check-in or check-out).
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Location  *Location `json:"location,omitempty"`
	// PhotoRef is an opaque reference to a captured photo blob; storage
	// semantics live elsewhere.
	PhotoRef *string `json:"photo_ref,omitempty"`
	// Device describes the submitting client, for review of manual entries.
	Device   *string `json:"device,omitempty"`
	Method   Method  `json:"method"`
	Verified bool    `json:"verified"`
}

// Record is the single attendance record for a (user, day) pair.
//
// Invariants:
//   - at most one record per (UserID, Day)
//   - CheckOut exists only if CheckIn exists
//   - TotalHours is derived from the two timestamps, never stored on its own
//   - Status comes from the classifier, never direct assignment
//   - Verified never reverts to false once set
type Record struct {
	ID     id.RecordID `json:"id"`
	UserID id.UserID   `json:"user_id"`
	// Day is the record's calendar date normalized to local midnight.
	Day time.Time `json:"date"`

	CheckIn  *Entry `json:"check_in,omitempty"`
	CheckOut *Entry `json:"check_out,omitempty"`

	// TotalHours is defined only when both entries exist.
	TotalHours *float64 `json:"total_hours,omitempty"`

	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`

	ApprovedBy *id.UserID `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeTotalHours rederives TotalHours from the entry timestamps.
// Called whenever CheckOut is set or corrected.
func (r *Record) RecomputeTotalHours() {
	if r.CheckIn == nil || r.CheckOut == nil {
		r.TotalHours = nil
		return
	}
	hours := r.CheckOut.Timestamp.Sub(r.CheckIn.Timestamp).Hours()
	r.TotalHours = &hours
}

// Verified reports whether the record as a whole has been verified: every
// entry present carries the verified flag.
func (r *Record) Verified() bool {
	if r.CheckIn == nil {
		return false
	}
	if !r.CheckIn.Verified {
		return false
	}
	if r.CheckOut != nil && !r.CheckOut.Verified {
		return false
	}
	return true
}

// Clone returns a deep copy so store callers can never mutate shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.CheckIn = cloneEntry(r.CheckIn)
	out.CheckOut = cloneEntry(r.CheckOut)
	out.TotalHours = clonePtr(r.TotalHours)
	out.ApprovedBy = clonePtr(r.ApprovedBy)
	out.ApprovedAt = clonePtr(r.ApprovedAt)
	return &out
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.PhotoRef = clonePtr(e.PhotoRef)
	out.Device = clonePtr(e.Device)
	if e.Location != nil {
		loc := *e.Location
		loc.AccuracyMeters = clonePtr(e.Location.AccuracyMeters)
		loc.Address = clonePtr(e.Location.Address)
		out.Location = &loc
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// DayOf normalizes a timestamp to midnight in loc, the record key's date
// component.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
