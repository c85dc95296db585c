package ports

import (
	"context"
	"sync"

	"timeclock/internal/attendance/geofence"
	"timeclock/internal/attendance/models"
)

// FakeLocationProvider is a deterministic LocationProvider for tests and
// local development.
type FakeLocationProvider struct {
	Permission PermissionState
	Fix        *Fix
	Err        error
	// Block, when set, makes CurrentLocation wait for ctx cancellation,
	// simulating a hardware stall.
	Block bool
}

func (f *FakeLocationProvider) CheckPermission(context.Context) (PermissionState, error) {
	if f.Permission == "" {
		return PermissionGranted, nil
	}
	return f.Permission, nil
}

func (f *FakeLocationProvider) RequestPermission(ctx context.Context) (PermissionState, error) {
	return f.CheckPermission(ctx)
}

func (f *FakeLocationProvider) CurrentLocation(ctx context.Context) (*Fix, error) {
	if f.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Fix, nil
}

// StaticSettings serves a fixed policy snapshot. Safe for concurrent reads;
// Update swaps the snapshot atomically the way an external admin flow would.
type StaticSettings struct {
	mu       sync.RWMutex
	settings models.Settings
}

func NewStaticSettings(s models.Settings) *StaticSettings {
	return &StaticSettings{settings: s}
}

func (s *StaticSettings) Snapshot(context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Update replaces the snapshot. Exists for tests that simulate a concurrent
// admin change between operations.
func (s *StaticSettings) Update(settings models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// FakePhotoCapture returns a fixed blob reference or error.
type FakePhotoCapture struct {
	Ref string
	Err error
}

func (f *FakePhotoCapture) Capture(context.Context) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Ref, nil
}

// FakeGeocoder returns a fixed address or error.
type FakeGeocoder struct {
	Address string
	Err     error
}

func (f *FakeGeocoder) ReverseGeocode(context.Context, geofence.Point) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Address, nil
}
