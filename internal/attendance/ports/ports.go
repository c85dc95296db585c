// Package ports defines the boundary contracts the attendance service
// consumes. The core never talks to hardware or external systems directly;
// it depends on these narrow interfaces so tests can substitute
// deterministic fakes.
package ports

import (
	"context"
	"time"

	"timeclock/internal/attendance/geofence"
	"timeclock/internal/attendance/models"
)

// PermissionState is the device's location permission as reported by the
// platform layer.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Fix is a raw position report from the location hardware. Accuracy is nil
// when the platform could not estimate it; the validator treats that as
// untrustworthy.
type Fix struct {
	Point          geofence.Point
	AccuracyMeters *float64
	Timestamp      time.Time
}

// LocationProvider exposes the device positioning boundary. CurrentLocation
// is the only operation expected to block for a non-trivial duration; the
// caller bounds it with a context deadline.
type LocationProvider interface {
	CheckPermission(ctx context.Context) (PermissionState, error)
	RequestPermission(ctx context.Context) (PermissionState, error)
	CurrentLocation(ctx context.Context) (*Fix, error)
}

// SettingsSource returns the current attendance policy. The service reads
// one snapshot per operation and never observes a mid-operation change.
type SettingsSource interface {
	Snapshot(ctx context.Context) (models.Settings, error)
}

// PhotoCapture returns an opaque reference to a captured photo blob.
// Best-effort: failures degrade the record rather than aborting the
// operation (unless policy requires a photo).
type PhotoCapture interface {
	Capture(ctx context.Context) (string, error)
}

// Geocoder resolves a coordinate to a human-readable address. Best-effort;
// the record falls back to raw coordinates when it fails.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geofence.Point) (string, error)
}
