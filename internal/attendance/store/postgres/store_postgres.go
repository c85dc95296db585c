// Package postgres persists attendance records in PostgreSQL.
//
// The store is pure I/O; classification and gating logic belong to the
// service. Single-writer-per-day is enforced by the database itself: a
// unique index over (user_id, day) plus conditional UPDATEs make the
// insert/update statement the atomic commit point, so the store is safe
// across multiple service instances without external locking.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"timeclock/internal/attendance/geofence"
	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/store"
	id "timeclock/pkg/domain"
)

// Schema is the DDL this store expects. Applied by migrations in production
// and by EnsureSchema in integration tests.
const Schema = `
CREATE TABLE IF NOT EXISTS attendance_records (
	id                 UUID PRIMARY KEY,
	user_id            UUID NOT NULL,
	day                DATE NOT NULL,

	check_in_at        TIMESTAMPTZ,
	check_in_lat       DOUBLE PRECISION,
	check_in_lon       DOUBLE PRECISION,
	check_in_accuracy  DOUBLE PRECISION,
	check_in_address   TEXT,
	check_in_photo     TEXT,
	check_in_device    TEXT,
	check_in_method    TEXT,
	check_in_verified  BOOLEAN NOT NULL DEFAULT FALSE,

	check_out_at       TIMESTAMPTZ,
	check_out_lat      DOUBLE PRECISION,
	check_out_lon      DOUBLE PRECISION,
	check_out_accuracy DOUBLE PRECISION,
	check_out_address  TEXT,
	check_out_photo    TEXT,
	check_out_device   TEXT,
	check_out_method   TEXT,
	check_out_verified BOOLEAN NOT NULL DEFAULT FALSE,

	status             TEXT NOT NULL,
	notes              TEXT NOT NULL DEFAULT '',
	approved_by        UUID,
	approved_at        TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,

	UNIQUE (user_id, day)
);
`

const recordColumns = `
	id, user_id, day,
	check_in_at, check_in_lat, check_in_lon, check_in_accuracy,
	check_in_address, check_in_photo, check_in_device, check_in_method, check_in_verified,
	check_out_at, check_out_lat, check_out_lon, check_out_accuracy,
	check_out_address, check_out_photo, check_out_device, check_out_method, check_out_verified,
	status, notes, approved_by, approved_at, created_at, updated_at`

// RecordStore is the PostgreSQL-backed attendance store.
type RecordStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// EnsureSchema creates the table if missing. Test helper; production uses
// migrations.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *RecordStore) GetRecord(ctx context.Context, userID id.UserID, day time.Time) (*models.Record, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE user_id = $1 AND day = $2`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, userID.String(), day))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) GetByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE id = $1`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, recordID.String()))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record by id: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) CanCheckIn(ctx context.Context, userID id.UserID, day time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE user_id = $1 AND day = $2 AND check_in_at IS NOT NULL
		)`, userID.String(), day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("can check in: %w", err)
	}
	return !exists, nil
}

func (s *RecordStore) CanCheckOut(ctx context.Context, userID id.UserID, day time.Time) (bool, error) {
	var open bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE user_id = $1 AND day = $2
			  AND check_in_at IS NOT NULL AND check_out_at IS NULL
		)`, userID.String(), day).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("can check out: %w", err)
	}
	return open, nil
}

func (s *RecordStore) CreateCheckIn(ctx context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error) {
	// The unique index makes this the compare-and-create: the ON CONFLICT
	// arm only fills a record that has no check-in yet (a LEAVE row written
	// by the external leave flow), so a concurrent duplicate yields no row.
	query := `
		INSERT INTO attendance_records (
			id, user_id, day,
			check_in_at, check_in_lat, check_in_lon, check_in_accuracy,
			check_in_address, check_in_photo, check_in_device, check_in_method, check_in_verified,
			status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (user_id, day) DO UPDATE SET
			check_in_at = EXCLUDED.check_in_at,
			check_in_lat = EXCLUDED.check_in_lat,
			check_in_lon = EXCLUDED.check_in_lon,
			check_in_accuracy = EXCLUDED.check_in_accuracy,
			check_in_address = EXCLUDED.check_in_address,
			check_in_photo = EXCLUDED.check_in_photo,
			check_in_device = EXCLUDED.check_in_device,
			check_in_method = EXCLUDED.check_in_method,
			check_in_verified = EXCLUDED.check_in_verified,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		WHERE attendance_records.check_in_at IS NULL
		RETURNING` + recordColumns

	lat, lon, accuracy, address := locationColumns(entry.Location)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query,
		id.NewRecordID().String(), userID.String(), day,
		entry.Timestamp, lat, lon, accuracy,
		address, entry.PhotoRef, entry.Device, string(entry.Method), entry.Verified,
		string(status), now,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("create check-in: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) ApplyCheckOut(ctx context.Context, userID id.UserID, day time.Time, entry models.Entry, status models.Status, now time.Time) (*models.Record, error) {
	query := `
		UPDATE attendance_records SET
			check_out_at = $3,
			check_out_lat = $4,
			check_out_lon = $5,
			check_out_accuracy = $6,
			check_out_address = $7,
			check_out_photo = $8,
			check_out_device = $9,
			check_out_method = $10,
			check_out_verified = $11,
			status = $12,
			updated_at = $13
		WHERE user_id = $1 AND day = $2
		  AND check_in_at IS NOT NULL AND check_out_at IS NULL
		RETURNING` + recordColumns

	lat, lon, accuracy, address := locationColumns(entry.Location)
	rec, err := scanRecord(s.pool.QueryRow(ctx, query,
		userID.String(), day,
		entry.Timestamp, lat, lon, accuracy,
		address, entry.PhotoRef, entry.Device, string(entry.Method), entry.Verified,
		string(status), now,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotCheckedIn
		}
		return nil, fmt.Errorf("apply check-out: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) Approve(ctx context.Context, recordID id.RecordID, approverID id.UserID, now time.Time) (*models.Record, error) {
	// COALESCE keeps the original approver; the CASE keeps updated_at
	// untouched when the record was already fully verified (idempotent
	// no-op).
	query := `
		UPDATE attendance_records SET
			check_in_verified = (check_in_at IS NOT NULL) OR check_in_verified,
			check_out_verified = (check_out_at IS NOT NULL) OR check_out_verified,
			approved_by = COALESCE(approved_by, $2),
			approved_at = COALESCE(approved_at, $3),
			updated_at = CASE
				WHEN check_in_verified AND (check_out_at IS NULL OR check_out_verified)
				THEN updated_at ELSE $3
			END
		WHERE id = $1
		RETURNING` + recordColumns

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, recordID.String(), approverID.String(), now))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrRecordNotFound
		}
		return nil, fmt.Errorf("approve record: %w", err)
	}
	return rec, nil
}

func (s *RecordStore) ListRange(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.Record, error) {
	query := `SELECT` + recordColumns + `
		FROM attendance_records
		WHERE user_id = $1 AND day BETWEEN $2 AND $3
		ORDER BY day ASC`
	rows, err := s.pool.Query(ctx, query, userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list range scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list range rows: %w", err)
	}
	return out, nil
}

func locationColumns(loc *models.Location) (lat, lon, accuracy *float64, address *string) {
	if loc == nil {
		return nil, nil, nil, nil
	}
	latV, lonV := loc.Point.Latitude, loc.Point.Longitude
	return &latV, &lonV, loc.AccuracyMeters, loc.Address
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec        models.Record
		recID      string
		userID     string
		inAt       *time.Time
		inLat      *float64
		inLon      *float64
		inAcc      *float64
		inAddr     *string
		inPhoto    *string
		inDevice   *string
		inMethod   *string
		inVerified bool
		outAt      *time.Time
		outLat     *float64
		outLon     *float64
		outAcc     *float64
		outAddr    *string
		outPhoto   *string
		outDevice  *string
		outMethod  *string
		outVerif   bool
		status     string
		approvedBy *string
	)

	err := row.Scan(
		&recID, &userID, &rec.Day,
		&inAt, &inLat, &inLon, &inAcc, &inAddr, &inPhoto, &inDevice, &inMethod, &inVerified,
		&outAt, &outLat, &outLon, &outAcc, &outAddr, &outPhoto, &outDevice, &outMethod, &outVerif,
		&status, &rec.Notes, &approvedBy, &rec.ApprovedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, err := id.ParseRecordID(recID)
	if err != nil {
		return nil, err
	}
	rec.ID = parsedID

	parsedUser, err := id.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	rec.UserID = parsedUser

	rec.Status = models.Status(status)
	rec.CheckIn = buildEntry(inAt, inLat, inLon, inAcc, inAddr, inPhoto, inDevice, inMethod, inVerified)
	rec.CheckOut = buildEntry(outAt, outLat, outLon, outAcc, outAddr, outPhoto, outDevice, outMethod, outVerif)

	if approvedBy != nil {
		parsedApprover, err := id.ParseUserID(*approvedBy)
		if err != nil {
			return nil, err
		}
		rec.ApprovedBy = &parsedApprover
	}

	// Total hours are derived, never stored.
	rec.RecomputeTotalHours()
	return &rec, nil
}

func buildEntry(at *time.Time, lat, lon, acc *float64, addr, photo, device, method *string, verified bool) *models.Entry {
	if at == nil {
		return nil
	}
	entry := &models.Entry{
		Timestamp: *at,
		PhotoRef:  photo,
		Device:    device,
		Verified:  verified,
	}
	if method != nil {
		entry.Method = models.Method(*method)
	}
	if lat != nil && lon != nil {
		entry.Location = &models.Location{
			Point:          geofence.Point{Latitude: *lat, Longitude: *lon},
			AccuracyMeters: acc,
			Timestamp:      *at,
			Address:        addr,
		}
	}
	return entry
}

var _ store.Store = (*RecordStore)(nil)
