// Package memory is the in-memory Store used in tests and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/store"
	"timeclock/internal/lock"
	id "timeclock/pkg/domain"
)

// RecordStore keeps records in a map keyed by (userID, day). A keyed mutex
// arena serializes writers per key so two near-simultaneous check-ins cannot
// both succeed; the map itself is guarded by an RWMutex.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
	byID    map[id.RecordID]string
	keys    *lock.KeyedMutex
}

func New() *RecordStore {
	return &RecordStore{
		records: make(map[string]*models.Record),
		byID:    make(map[id.RecordID]string),
		keys:    lock.NewKeyedMutex(),
	}
}

func recordKey(userID id.UserID, day time.Time) string {
	return fmt.Sprintf("%s|%s", userID, day.Format("2006-01-02"))
}

func (s *RecordStore) GetRecord(_ context.Context, userID id.UserID, day time.Time) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[recordKey(userID, day)].Clone(), nil
}

func (s *RecordStore) GetByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.byID[recordID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return s.records[key].Clone(), nil
}

func (s *RecordStore) CanCheckIn(_ context.Context, userID id.UserID, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.records[recordKey(userID, day)]
	return rec == nil || rec.CheckIn == nil, nil
}

func (s *RecordStore) CanCheckOut(_ context.Context, userID id.UserID, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.records[recordKey(userID, day)]
	return rec != nil && rec.CheckIn != nil && rec.CheckOut == nil, nil
}

func (s *RecordStore) CreateCheckIn(_ context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error) {
	key := recordKey(userID, day)
	release := s.keys.Acquire(key)
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.records[key]; existing != nil && existing.CheckIn != nil {
		return nil, store.ErrAlreadyCheckedIn
	}

	rec := &models.Record{
		ID:        id.NewRecordID(),
		UserID:    userID,
		Day:       day,
		CheckIn:   &entry,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[key] = rec
	s.byID[rec.ID] = key
	return rec.Clone(), nil
}

func (s *RecordStore) ApplyCheckOut(_ context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error) {
	key := recordKey(userID, day)
	release := s.keys.Acquire(key)
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[key]
	if rec == nil || rec.CheckIn == nil || rec.CheckOut != nil {
		return nil, store.ErrNotCheckedIn
	}

	rec.CheckOut = &entry
	rec.Status = status
	rec.RecomputeTotalHours()
	rec.UpdatedAt = now
	return rec.Clone(), nil
}

func (s *RecordStore) Approve(_ context.Context, recordID id.RecordID, approverID id.UserID, now time.Time) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[recordID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	rec := s.records[key]

	// Idempotent: a verified record stays verified and keeps its original
	// approver.
	if rec.Verified() {
		return rec.Clone(), nil
	}

	if rec.CheckIn != nil {
		rec.CheckIn.Verified = true
	}
	if rec.CheckOut != nil {
		rec.CheckOut.Verified = true
	}
	rec.ApprovedBy = &approverID
	rec.ApprovedAt = &now
	rec.UpdatedAt = now
	return rec.Clone(), nil
}

func (s *RecordStore) ListRange(_ context.Context, userID id.UserID, from, to time.Time) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Record
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if rec := s.records[recordKey(userID, day)]; rec != nil {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

var _ store.Store = (*RecordStore)(nil)
