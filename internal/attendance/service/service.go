// Package service orchestrates the attendance lifecycle: location-gated
// check-in and check-out, status classification, and record approval.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"timeclock/internal/attendance/classify"
	"timeclock/internal/attendance/geofence"
	"timeclock/internal/attendance/metrics"
	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/ports"
	"timeclock/internal/attendance/store"
	"timeclock/internal/audit"
	"timeclock/internal/lock"
	"timeclock/pkg/requestcontext"

	id "timeclock/pkg/domain"
	dErrors "timeclock/pkg/domain-errors"
)

const (
	opCheckIn  = "check_in"
	opCheckOut = "check_out"
	opApprove  = "approve"

	// lockTTL bounds how long a crashed holder can block the key.
	lockTTL = 10 * time.Second

	defaultLocationTimeout = 15 * time.Second
	defaultSideStepTimeout = 5 * time.Second
)

// Service implements the attendance operations. The store serializes writes
// per (user, day); the optional distributed locker only shortcuts doomed
// concurrent attempts across instances, it is not the correctness mechanism.
type Service struct {
	store    store.Store
	settings ports.SettingsSource
	location ports.LocationProvider

	photos   ports.PhotoCapture
	geocoder ports.Geocoder
	locker   lock.Locker

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher

	tz              *time.Location
	locationTimeout time.Duration
	sideStepTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithLocker enables the cross-instance try-lock on (user, day) keys.
func WithLocker(locker lock.Locker) Option {
	return func(s *Service) { s.locker = locker }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithPhotoCapture enables photo attachment on entries.
func WithPhotoCapture(pc ports.PhotoCapture) Option {
	return func(s *Service) { s.photos = pc }
}

// WithGeocoder enables best-effort address resolution on entries.
func WithGeocoder(g ports.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithTimezone sets the location used to normalize record days.
func WithTimezone(tz *time.Location) Option {
	return func(s *Service) { s.tz = tz }
}

// WithTimeouts overrides the location round-trip and side-step bounds.
func WithTimeouts(location, sideStep time.Duration) Option {
	return func(s *Service) {
		s.locationTimeout = location
		s.sideStepTimeout = sideStep
	}
}

func New(st store.Store, settings ports.SettingsSource, location ports.LocationProvider, opts ...Option) *Service {
	s := &Service{
		store:           st,
		settings:        settings,
		location:        location,
		logger:          slog.Default(),
		tz:              time.UTC,
		locationTimeout: defaultLocationTimeout,
		sideStepTimeout: defaultSideStepTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn creates today's attendance record for the authenticated user.
// The location gate runs before any lock is taken so a slow GPS fix never
// holds the (user, day) key.
func (s *Service) CheckIn(ctx context.Context) (*models.Record, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(opCheckIn, time.Since(start)) }()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}

	now := requestcontext.Now(ctx)
	day := models.DayOf(now, s.tz)

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load attendance settings")
	}

	if !settings.IsWorkingDay(day) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "not a scheduled working day")
	}

	ok, err := s.store.CanCheckIn(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrAlreadyCheckedIn
	}

	entry, err := s.buildEntry(ctx, now, settings)
	if err != nil {
		return nil, err
	}

	// Classification reads wall-clock time-of-day, so timestamps must be in
	// the workplace zone regardless of what zone the caller's instant came in.
	status := classify.Classify(now.In(s.tz), nil, settings)

	release, err := s.tryLock(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.store.CreateCheckIn(ctx, userID, day, *entry, status, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCheckIn(string(record.Status), string(entry.Method))
	s.emitAudit(ctx, audit.ActionCheckIn, record, entry)

	s.logger.InfoContext(ctx, "check-in recorded",
		"user_id", userID.String(),
		"record_id", record.ID.String(),
		"status", record.Status,
		"method", entry.Method,
		"verified", entry.Verified,
	)
	return record, nil
}

// CheckOut closes today's record, recomputing total hours and status. A
// check-out through the geofence is verified on its own; it does not make an
// unverified check-in verified.
func (s *Service) CheckOut(ctx context.Context) (*models.Record, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(opCheckOut, time.Since(start)) }()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}

	now := requestcontext.Now(ctx)
	day := models.DayOf(now, s.tz)

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load attendance settings")
	}

	current, err := s.store.GetRecord(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	// A day that is already closed fails the same way as one never opened:
	// there is no open check-in to close.
	if current == nil || current.CheckIn == nil || current.CheckOut != nil {
		return nil, store.ErrNotCheckedIn
	}

	entry, err := s.buildEntry(ctx, now, settings)
	if err != nil {
		return nil, err
	}

	localOut := now.In(s.tz)
	status := classify.Classify(current.CheckIn.Timestamp.In(s.tz), &localOut, settings)

	release, err := s.tryLock(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	defer release()

	record, err := s.store.ApplyCheckOut(ctx, userID, day, *entry, status, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCheckOut(string(record.Status), string(entry.Method))
	s.emitAudit(ctx, audit.ActionCheckOut, record, entry)

	s.logger.InfoContext(ctx, "check-out recorded",
		"user_id", userID.String(),
		"record_id", record.ID.String(),
		"status", record.Status,
		"total_hours", record.TotalHours,
	)
	return record, nil
}

// Approve marks every entry on the record verified. Requires the approval
// capability; re-approving a verified record returns it unchanged.
func (s *Service) Approve(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(opApprove, time.Since(start)) }()

	if !requestcontext.CanApprove(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "approval capability required")
	}
	approverID := requestcontext.UserID(ctx)
	if approverID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}

	current, err := s.store.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if current.Verified() {
		return current, nil
	}

	now := requestcontext.Now(ctx)
	record, err := s.store.Approve(ctx, recordID, approverID, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementApprovals()
	s.emitAudit(ctx, audit.ActionApprove, record, nil)

	s.logger.InfoContext(ctx, "attendance record approved",
		"record_id", recordID.String(),
		"approver_id", approverID.String(),
	)
	return record, nil
}

// Today returns the authenticated user's record for the current day, or nil
// when none exists.
func (s *Service) Today(ctx context.Context) (*models.Record, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}
	day := models.DayOf(requestcontext.Now(ctx), s.tz)
	return s.store.GetRecord(ctx, userID, day)
}

// History returns the user's records with from <= day <= to. The bounds are
// calendar dates: their year, month, and day are read as given, so a range
// parsed from "2026-03-02" means that date in the workplace zone no matter
// what zone the parser attached.
func (s *Service) History(ctx context.Context, from, to time.Time) ([]*models.Record, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}

	fromDay := s.dateOf(from)
	toDay := s.dateOf(to)
	if toDay.Before(fromDay) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "history range end precedes start")
	}

	return s.store.ListRange(ctx, userID, fromDay, toDay)
}

// buildEntry runs the location gate and the best-effort side steps, and
// assembles the entry for the current instant.
func (s *Service) buildEntry(ctx context.Context, now time.Time, settings models.Settings) (*models.Entry, error) {
	loc, err := s.gateLocation(ctx, settings)
	if err != nil {
		return nil, err
	}

	entry := &models.Entry{
		Timestamp: now,
		Location:  loc,
		Method:    models.MethodManual,
		Verified:  false,
	}
	if loc != nil {
		entry.Method = models.MethodAutomatic
		entry.Verified = true
	}
	if device := requestcontext.Device(ctx); device != "" {
		entry.Device = &device
	}

	if err := s.attachSideSteps(ctx, entry, settings); err != nil {
		return nil, err
	}
	return entry, nil
}

// gateLocation acquires and validates a GPS fix against the geofence.
// Returns a nil location (manual fallback) only when policy does not require
// location; with LocationRequired every failure is a hard error.
func (s *Service) gateLocation(ctx context.Context, settings models.Settings) (*models.Location, error) {
	loc, err := s.acquireLocation(ctx, settings)
	if err == nil {
		return loc, nil
	}
	if settings.LocationRequired {
		return nil, err
	}

	s.logger.WarnContext(ctx, "location unavailable, falling back to manual entry", "error", err)
	return nil, nil
}

func (s *Service) acquireLocation(ctx context.Context, settings models.Settings) (*models.Location, error) {
	perm, err := s.location.CheckPermission(ctx)
	if err != nil {
		s.metrics.IncrementLocationRejection("permission")
		return nil, dErrors.Wrap(err, dErrors.CodePermissionDenied, "check location permission")
	}
	if perm == ports.PermissionPrompt {
		if perm, err = s.location.RequestPermission(ctx); err != nil {
			s.metrics.IncrementLocationRejection("permission")
			return nil, dErrors.Wrap(err, dErrors.CodePermissionDenied, "request location permission")
		}
	}
	if perm != ports.PermissionGranted {
		s.metrics.IncrementLocationRejection("permission")
		return nil, dErrors.New(dErrors.CodePermissionDenied, "location permission denied")
	}

	fixCtx, cancel := context.WithTimeout(ctx, s.locationTimeout)
	defer cancel()

	fix, err := s.location.CurrentLocation(fixCtx)
	if err != nil {
		s.metrics.IncrementLocationRejection("unavailable")
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeLocationUnavailable, "location fix timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeLocationUnavailable, "acquire location")
	}
	if fix == nil {
		s.metrics.IncrementLocationRejection("unavailable")
		return nil, dErrors.New(dErrors.CodeLocationUnavailable, "no location fix available")
	}

	if !geofence.HasSufficientAccuracy(fix.AccuracyMeters, settings.GPSAccuracyMeters) {
		s.metrics.IncrementLocationRejection("accuracy")
		return nil, dErrors.New(dErrors.CodeLocationAccuracy,
			fmt.Sprintf("gps accuracy worse than %.0fm", settings.GPSAccuracyMeters))
	}

	if !geofence.IsWithin(fix.Point, settings.Workplace.Center, settings.Workplace.RadiusMeters) {
		distance := geofence.DistanceMeters(fix.Point, settings.Workplace.Center)
		s.metrics.IncrementLocationRejection("out_of_range")
		return nil, dErrors.New(dErrors.CodeOutOfRange,
			fmt.Sprintf("%.0fm from workplace, allowed radius %.0fm", distance, settings.Workplace.RadiusMeters))
	}

	timestamp := fix.Timestamp
	if timestamp.IsZero() {
		timestamp = requestcontext.Now(ctx)
	}
	return &models.Location{
		Point:          fix.Point,
		AccuracyMeters: fix.AccuracyMeters,
		Timestamp:      timestamp,
	}, nil
}

// attachSideSteps runs reverse geocoding and photo capture concurrently,
// each under its own timeout. Both are best-effort unless policy requires a
// photo.
func (s *Service) attachSideSteps(ctx context.Context, entry *models.Entry, settings models.Settings) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.geocoder != nil && entry.Location != nil {
		point := entry.Location.Point
		g.Go(func() error {
			stepCtx, cancel := context.WithTimeout(gctx, s.sideStepTimeout)
			defer cancel()

			address, err := s.geocoder.ReverseGeocode(stepCtx, point)
			if err != nil {
				s.logger.WarnContext(ctx, "reverse geocode failed", "error", err)
				return nil
			}
			entry.Location.Address = &address
			return nil
		})
	}

	if s.photos != nil {
		g.Go(func() error {
			stepCtx, cancel := context.WithTimeout(gctx, s.sideStepTimeout)
			defer cancel()

			ref, err := s.photos.Capture(stepCtx)
			if err != nil {
				if settings.PhotoRequired {
					return dErrors.Wrap(err, dErrors.CodeBadRequest, "photo required but capture failed")
				}
				s.logger.WarnContext(ctx, "photo capture failed", "error", err)
				return nil
			}
			entry.PhotoRef = &ref
			return nil
		})
	} else if settings.PhotoRequired {
		return dErrors.New(dErrors.CodeBadRequest, "photo required but capture is not available")
	}

	return g.Wait()
}

// dateOf rebuilds t's calendar date at midnight in the workplace zone. Used
// for range bounds, which are dates, not instants; DayOf would shift a UTC
// midnight onto the previous day in any negative-offset zone.
func (s *Service) dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.tz)
}

// tryLock takes the cross-instance lock for the (user, day) key when a
// locker is configured. A locker backend failure degrades to the store's own
// serialization rather than failing the operation.
func (s *Service) tryLock(ctx context.Context, userID id.UserID, day time.Time) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("attendance:%s:%s", userID.String(), day.Format("2006-01-02"))
	ok, err := s.locker.Lock(ctx, key, lockTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "distributed lock unavailable", "key", key, "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeConflict, "another attendance operation is in progress")
	}

	return func() {
		if err := s.locker.Unlock(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "distributed unlock failed", "key", key, "error", err)
		}
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, record *models.Record, entry *models.Entry) {
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Action:    action,
		UserID:    record.UserID.String(),
		RecordID:  record.ID.String(),
		Status:    string(record.Status),
		Verified:  record.Verified(),
		ClientIP:  requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}
	if entry != nil {
		event.Method = string(entry.Method)
		if entry.Device != nil {
			event.Device = *entry.Device
		}
	}
	s.audit.Emit(ctx, event)
}
