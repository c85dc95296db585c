package testutil

import (
	"net/http"
	"time"

	id "timeclock/pkg/domain"
	"timeclock/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context, simulating what the auth
// middleware does for authenticated requests. Invalid IDs are ignored.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithApprover marks the request context as carrying the approval capability.
func WithApprover(req *http.Request) *http.Request {
	return req.WithContext(requestcontext.WithApprovalCapability(req.Context(), true))
}

// WithTime pins the request-scoped clock, as the request-time middleware
// would, so handler tests classify against a known instant.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
