package audit

import "time"

// Actions recorded by the attendance service.
const (
	ActionCheckIn  = "attendance_check_in"
	ActionCheckOut = "attendance_check_out"
	ActionApprove  = "attendance_approved"
)

// Event is emitted from domain logic to capture key attendance actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	RecordID  string    `json:"record_id"`
	Status    string    `json:"status,omitempty"`
	Method    string    `json:"method,omitempty"`
	Verified  bool      `json:"verified"`
	Device    string    `json:"device,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}
