package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeclock/internal/attendance/geofence"
	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/ports"
	"timeclock/internal/attendance/store/memory"
	"timeclock/internal/audit"
	"timeclock/pkg/requestcontext"

	id "timeclock/pkg/domain"
	dErrors "timeclock/pkg/domain-errors"
)

var office = geofence.Point{Latitude: -6.175392, Longitude: 106.827153}

// monday is a scheduled working day in every test policy.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testSettings() models.Settings {
	return models.Settings{
		CheckInTime:           models.TimeOfDay{Hour: 9},
		CheckOutTime:          models.TimeOfDay{Hour: 17},
		LateThresholdMinutes:  15,
		HalfDayThresholdHours: 4,
		WorkingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		LocationRequired:  true,
		GPSAccuracyMeters: 100,
		Workplace: models.Workplace{
			Center:       office,
			RadiusMeters: 100,
		},
	}
}

func atOffice() *ports.FakeLocationProvider {
	return &ports.FakeLocationProvider{
		Fix: &ports.Fix{Point: office, AccuracyMeters: floatPtr(10)},
	}
}

type fixture struct {
	svc      *Service
	store    *memory.RecordStore
	settings *ports.StaticSettings
	location *ports.FakeLocationProvider
	audit    *audit.MemoryStore
	userID   id.UserID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	st := memory.New()
	settings := ports.NewStaticSettings(testSettings())
	location := atOffice()
	auditStore := audit.NewMemoryStore()

	opts = append([]Option{
		WithAuditPublisher(audit.NewPublisher(auditStore, discardLogger())),
		WithLogger(discardLogger()),
	}, opts...)

	return &fixture{
		svc:      New(st, settings, location, opts...),
		store:    st,
		settings: settings,
		location: location,
		audit:    auditStore,
		userID:   id.UserID(mustUUID("6f1f9a2e-6a0f-4d38-9f0e-4c1f3a1b2c3d")),
	}
}

// ctxAt builds an authenticated context pinned to the given instant.
func (f *fixture) ctxAt(t time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), t)
	return requestcontext.WithUserID(ctx, f.userID)
}

func TestCheckIn(t *testing.T) {
	t.Run("on time arrival is present and verified", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.ctxAt(monday.Add(9*time.Hour + 5*time.Minute))

		record, err := f.svc.CheckIn(ctx)
		require.NoError(t, err)

		assert.Equal(t, models.StatusPresent, record.Status)
		require.NotNil(t, record.CheckIn)
		assert.Equal(t, models.MethodAutomatic, record.CheckIn.Method)
		assert.True(t, record.CheckIn.Verified)
		assert.Nil(t, record.CheckOut)
		assert.Nil(t, record.TotalHours)

		events, err := f.audit.ListByUser(ctx, f.userID.String())
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, audit.ActionCheckIn, events[0].Action)
	})

	t.Run("arrival past the grace period is late", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.ctxAt(monday.Add(9*time.Hour + 20*time.Minute))

		record, err := f.svc.CheckIn(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLate, record.Status)
	})

	t.Run("second check-in the same day is rejected", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.ctxAt(monday.Add(9 * time.Hour))

		_, err := f.svc.CheckIn(ctx)
		require.NoError(t, err)

		_, err = f.svc.CheckIn(f.ctxAt(monday.Add(10 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyCheckedIn))
	})

	t.Run("lateness follows the workplace zone, not the instant's zone", func(t *testing.T) {
		jakarta := time.FixedZone("WIB", 7*60*60)
		f := newFixture(t, WithTimezone(jakarta))

		// 02:40 UTC is 09:40 in Jakarta, 25 minutes past a 09:00 shift
		// with a 15 minute grace period.
		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(2*time.Hour + 40*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, models.StatusLate, record.Status)
		assert.Equal(t, "2026-03-02", record.Day.Format("2006-01-02"))

		// Reclassification at check-out converts both instants the same way:
		// a full day worked stays LATE, it does not revert to PRESENT.
		closed, err := f.svc.CheckOut(f.ctxAt(monday.Add(10*time.Hour + 40*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, models.StatusLate, closed.Status)
		require.NotNil(t, closed.TotalHours)
		assert.InDelta(t, 8.0, *closed.TotalHours, 1e-9)
	})

	t.Run("on-time arrival in a non-UTC workplace zone", func(t *testing.T) {
		jakarta := time.FixedZone("WIB", 7*60*60)
		f := newFixture(t, WithTimezone(jakarta))

		// 02:10 UTC is 09:10 in Jakarta, inside the grace period.
		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(2*time.Hour + 10*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, models.StatusPresent, record.Status)
	})

	t.Run("weekend check-in is rejected", func(t *testing.T) {
		f := newFixture(t)
		saturday := monday.AddDate(0, 0, 5)

		_, err := f.svc.CheckIn(f.ctxAt(saturday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("unauthenticated context is rejected", func(t *testing.T) {
		f := newFixture(t)
		ctx := requestcontext.WithTime(context.Background(), monday.Add(9*time.Hour))

		_, err := f.svc.CheckIn(ctx)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("concurrent check-ins admit exactly one", func(t *testing.T) {
		f := newFixture(t)
		ctx := f.ctxAt(monday.Add(9 * time.Hour))

		const attempts = 16
		var wg sync.WaitGroup
		results := make(chan error, attempts)

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.CheckIn(ctx)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var won, lost int
		for err := range results {
			if err == nil {
				won++
				continue
			}
			require.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyCheckedIn), "unexpected error: %v", err)
			lost++
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, attempts-1, lost)
	})
}

func TestCheckInLocationGate(t *testing.T) {
	t.Run("permission denied", func(t *testing.T) {
		f := newFixture(t)
		f.location.Permission = ports.PermissionDenied

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})

	t.Run("location unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.location.Fix = nil
		f.location.Err = errors.New("gps hardware fault")

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLocationUnavailable))
	})

	t.Run("fix acquisition timeout", func(t *testing.T) {
		f := newFixture(t, WithTimeouts(25*time.Millisecond, time.Second))
		f.location.Block = true

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLocationUnavailable))
	})

	t.Run("insufficient accuracy", func(t *testing.T) {
		f := newFixture(t)
		f.location.Fix.AccuracyMeters = floatPtr(250)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLocationAccuracy))
	})

	t.Run("missing accuracy is treated as insufficient", func(t *testing.T) {
		f := newFixture(t)
		f.location.Fix.AccuracyMeters = nil

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLocationAccuracy))
	})

	t.Run("outside the geofence", func(t *testing.T) {
		f := newFixture(t)
		f.location.Fix.Point = geofence.Point{Latitude: -6.19, Longitude: 106.84}

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOutOfRange))
		assert.Contains(t, err.Error(), "allowed radius")
	})

	t.Run("no manual fallback while location is required", func(t *testing.T) {
		f := newFixture(t)
		f.location.Err = errors.New("gps off")

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)

		record, getErr := f.svc.Today(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, getErr)
		assert.Nil(t, record)
	})

	t.Run("manual fallback when location is optional", func(t *testing.T) {
		f := newFixture(t)
		settings := testSettings()
		settings.LocationRequired = false
		f.settings.Update(settings)
		f.location.Err = errors.New("gps off")

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		require.NotNil(t, record.CheckIn)
		assert.Equal(t, models.MethodManual, record.CheckIn.Method)
		assert.False(t, record.CheckIn.Verified)
		assert.Nil(t, record.CheckIn.Location)
	})
}

func TestCheckOut(t *testing.T) {
	t.Run("full day closes as present with total hours", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		record, err := f.svc.CheckOut(f.ctxAt(monday.Add(17 * time.Hour)))
		require.NoError(t, err)

		assert.Equal(t, models.StatusPresent, record.Status)
		require.NotNil(t, record.TotalHours)
		assert.InDelta(t, 8.0, *record.TotalHours, 1e-9)
		assert.True(t, record.Verified())
	})

	t.Run("short day reclassifies to half day", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		record, err := f.svc.CheckOut(f.ctxAt(monday.Add(12 * time.Hour)))
		require.NoError(t, err)

		assert.Equal(t, models.StatusHalfDay, record.Status)
		require.NotNil(t, record.TotalHours)
		assert.InDelta(t, 3.0, *record.TotalHours, 1e-9)
	})

	t.Run("check-out with no open check-in is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CheckOut(f.ctxAt(monday.Add(17 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotCheckedIn))
	})

	t.Run("second check-out is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)
		_, err = f.svc.CheckOut(f.ctxAt(monday.Add(17 * time.Hour)))
		require.NoError(t, err)

		_, err = f.svc.CheckOut(f.ctxAt(monday.Add(18 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotCheckedIn))
	})
}

func TestApprove(t *testing.T) {
	checkInManually := func(t *testing.T, f *fixture) *models.Record {
		t.Helper()
		settings := testSettings()
		settings.LocationRequired = false
		f.settings.Update(settings)
		f.location.Err = errors.New("gps off")

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)
		require.False(t, record.Verified())
		return record
	}

	t.Run("approval capability is required", func(t *testing.T) {
		f := newFixture(t)
		record := checkInManually(t, f)

		_, err := f.svc.Approve(f.ctxAt(monday.Add(18*time.Hour)), record.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("approver verifies the record", func(t *testing.T) {
		f := newFixture(t)
		record := checkInManually(t, f)

		ctx := requestcontext.WithApprovalCapability(f.ctxAt(monday.Add(18*time.Hour)), true)
		approved, err := f.svc.Approve(ctx, record.ID)
		require.NoError(t, err)

		assert.True(t, approved.Verified())
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, f.userID, *approved.ApprovedBy)
		require.NotNil(t, approved.ApprovedAt)
	})

	t.Run("re-approval is a no-op", func(t *testing.T) {
		f := newFixture(t)
		record := checkInManually(t, f)

		ctx := requestcontext.WithApprovalCapability(f.ctxAt(monday.Add(18*time.Hour)), true)
		first, err := f.svc.Approve(ctx, record.ID)
		require.NoError(t, err)

		second, err := f.svc.Approve(ctx, record.ID)
		require.NoError(t, err)

		assert.Equal(t, first.ApprovedBy, second.ApprovedBy)
		assert.Equal(t, first.ApprovedAt, second.ApprovedAt)

		events, err := f.audit.ListByUser(ctx, f.userID.String())
		require.NoError(t, err)

		var approvals int
		for _, e := range events {
			if e.Action == audit.ActionApprove {
				approvals++
			}
		}
		assert.Equal(t, 1, approvals)
	})

	t.Run("unknown record", func(t *testing.T) {
		f := newFixture(t)

		ctx := requestcontext.WithApprovalCapability(f.ctxAt(monday.Add(18*time.Hour)), true)
		_, err := f.svc.Approve(ctx, id.NewRecordID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestSideSteps(t *testing.T) {
	t.Run("geocoder attaches an address", func(t *testing.T) {
		f := newFixture(t, WithGeocoder(&ports.FakeGeocoder{Address: "Jl. Medan Merdeka, Jakarta"}))

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		require.NotNil(t, record.CheckIn.Location)
		require.NotNil(t, record.CheckIn.Location.Address)
		assert.Equal(t, "Jl. Medan Merdeka, Jakarta", *record.CheckIn.Location.Address)
	})

	t.Run("geocoder failure degrades to coordinates only", func(t *testing.T) {
		f := newFixture(t, WithGeocoder(&ports.FakeGeocoder{Err: errors.New("quota exceeded")}))

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		require.NotNil(t, record.CheckIn.Location)
		assert.Nil(t, record.CheckIn.Location.Address)
	})

	t.Run("photo is attached when capture succeeds", func(t *testing.T) {
		f := newFixture(t, WithPhotoCapture(&ports.FakePhotoCapture{Ref: "blob://photos/abc123"}))

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		require.NotNil(t, record.CheckIn.PhotoRef)
		assert.Equal(t, "blob://photos/abc123", *record.CheckIn.PhotoRef)
	})

	t.Run("optional photo failure is tolerated", func(t *testing.T) {
		f := newFixture(t, WithPhotoCapture(&ports.FakePhotoCapture{Err: errors.New("camera busy")}))

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, record.CheckIn.PhotoRef)
	})

	t.Run("required photo failure rejects the check-in", func(t *testing.T) {
		f := newFixture(t, WithPhotoCapture(&ports.FakePhotoCapture{Err: errors.New("camera busy")}))
		settings := testSettings()
		settings.PhotoRequired = true
		f.settings.Update(settings)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("required photo with no capture backend rejects the check-in", func(t *testing.T) {
		f := newFixture(t)
		settings := testSettings()
		settings.PhotoRequired = true
		f.settings.Update(settings)

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

type stubLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *stubLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *stubLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

func TestDistributedLock(t *testing.T) {
	t.Run("held key rejects the operation", func(t *testing.T) {
		locker := &stubLocker{held: map[string]bool{}}
		f := newFixture(t, WithLocker(locker))

		key := "attendance:" + f.userID.String() + ":2026-03-02"
		locker.held[key] = true

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("lock is released after the operation", func(t *testing.T) {
		locker := &stubLocker{}
		f := newFixture(t, WithLocker(locker))

		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)

		_, err = f.svc.CheckOut(f.ctxAt(monday.Add(17 * time.Hour)))
		require.NoError(t, err)
	})

	t.Run("locker backend failure degrades to store serialization", func(t *testing.T) {
		locker := &stubLocker{err: errors.New("redis down")}
		f := newFixture(t, WithLocker(locker))

		record, err := f.svc.CheckIn(f.ctxAt(monday.Add(9 * time.Hour)))
		require.NoError(t, err)
		assert.NotNil(t, record.CheckIn)
	})
}

func TestTodayAndHistory(t *testing.T) {
	t.Run("today is nil before check-in", func(t *testing.T) {
		f := newFixture(t)

		record, err := f.svc.Today(f.ctxAt(monday.Add(8 * time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("history spans multiple days in order", func(t *testing.T) {
		f := newFixture(t)

		for dayOffset := 0; dayOffset < 3; dayOffset++ {
			day := monday.AddDate(0, 0, dayOffset)
			_, err := f.svc.CheckIn(f.ctxAt(day.Add(9 * time.Hour)))
			require.NoError(t, err)
		}

		records, err := f.svc.History(f.ctxAt(monday.Add(72*time.Hour)), monday, monday.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.True(t, records[0].Day.Before(records[1].Day))
		assert.True(t, records[1].Day.Before(records[2].Day))
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.History(f.ctxAt(monday), monday, monday.AddDate(0, 0, -1))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("range bounds are calendar dates in any zone", func(t *testing.T) {
		newYork := time.FixedZone("EST", -5*60*60)
		f := newFixture(t, WithTimezone(newYork))

		// Monday 09:00 in New York is 14:00 UTC.
		_, err := f.svc.CheckIn(f.ctxAt(monday.Add(14 * time.Hour)))
		require.NoError(t, err)

		// The bounds arrive as UTC midnights, as a date-only query parser
		// produces them. They still mean March 2nd.
		records, err := f.svc.History(f.ctxAt(monday.Add(20*time.Hour)), monday, monday)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "2026-03-02", records[0].Day.Format("2006-01-02"))
	})
}
