package handler

import (
	"time"

	"timeclock/internal/attendance/models"
	"timeclock/internal/attendance/service"
)

const dateFormat = "2006-01-02"

// LocationResponse is the wire form of a validated GPS fix.
type LocationResponse struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracy_meters,omitempty"`
	Timestamp      string   `json:"timestamp"`
	Address        *string  `json:"address,omitempty"`
}

// EntryResponse is the wire form of a check-in or check-out entry.
type EntryResponse struct {
	Timestamp string            `json:"timestamp"`
	Location  *LocationResponse `json:"location,omitempty"`
	PhotoRef  *string           `json:"photo_ref,omitempty"`
	Device    *string           `json:"device,omitempty"`
	Method    string            `json:"method"`
	Verified  bool              `json:"verified"`
}

// RecordResponse is the wire form of an attendance record.
type RecordResponse struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Date       string         `json:"date"`
	CheckIn    *EntryResponse `json:"check_in,omitempty"`
	CheckOut   *EntryResponse `json:"check_out,omitempty"`
	TotalHours *float64       `json:"total_hours,omitempty"`
	Status     string         `json:"status"`
	Verified   bool           `json:"verified"`
	ApprovedBy *string        `json:"approved_by,omitempty"`
	ApprovedAt *string        `json:"approved_at,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

// HistoryResponse wraps a range query result.
type HistoryResponse struct {
	Records []RecordResponse `json:"records"`
	Count   int              `json:"count"`
}

// StatsResponse is the aggregated attendance summary.
type StatsResponse struct {
	From                 string  `json:"from"`
	To                   string  `json:"to"`
	WorkingDays          int     `json:"working_days"`
	PresentDays          int     `json:"present_days"`
	LateDays             int     `json:"late_days"`
	HalfDays             int     `json:"half_days"`
	AbsentDays           int     `json:"absent_days"`
	LeaveDays            int     `json:"leave_days"`
	TotalHours           float64 `json:"total_hours"`
	AverageHoursPerDay   float64 `json:"average_hours_per_day"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

func toRecordResponse(r *models.Record) RecordResponse {
	out := RecordResponse{
		ID:         r.ID.String(),
		UserID:     r.UserID.String(),
		Date:       r.Day.Format(dateFormat),
		CheckIn:    toEntryResponse(r.CheckIn),
		CheckOut:   toEntryResponse(r.CheckOut),
		TotalHours: r.TotalHours,
		Status:     string(r.Status),
		Verified:   r.Verified(),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ApprovedBy != nil {
		approver := r.ApprovedBy.String()
		out.ApprovedBy = &approver
	}
	if r.ApprovedAt != nil {
		at := r.ApprovedAt.Format(time.RFC3339)
		out.ApprovedAt = &at
	}
	return out
}

func toEntryResponse(e *models.Entry) *EntryResponse {
	if e == nil {
		return nil
	}
	out := &EntryResponse{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		PhotoRef:  e.PhotoRef,
		Device:    e.Device,
		Method:    string(e.Method),
		Verified:  e.Verified,
	}
	if e.Location != nil {
		out.Location = &LocationResponse{
			Latitude:       e.Location.Point.Latitude,
			Longitude:      e.Location.Point.Longitude,
			AccuracyMeters: e.Location.AccuracyMeters,
			Timestamp:      e.Location.Timestamp.Format(time.RFC3339),
			Address:        e.Location.Address,
		}
	}
	return out
}

func toHistoryResponse(records []*models.Record) HistoryResponse {
	out := HistoryResponse{Records: make([]RecordResponse, 0, len(records))}
	for _, r := range records {
		out.Records = append(out.Records, toRecordResponse(r))
	}
	out.Count = len(out.Records)
	return out
}

func toStatsResponse(s *service.Stats) StatsResponse {
	return StatsResponse{
		From:                 s.From.Format(dateFormat),
		To:                   s.To.Format(dateFormat),
		WorkingDays:          s.WorkingDays,
		PresentDays:          s.PresentDays,
		LateDays:             s.LateDays,
		HalfDays:             s.HalfDays,
		AbsentDays:           s.AbsentDays,
		LeaveDays:            s.LeaveDays,
		TotalHours:           s.TotalHours,
		AverageHoursPerDay:   s.AverageHoursPerDay,
		AttendancePercentage: s.AttendancePercentage,
	}
}
