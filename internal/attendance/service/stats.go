package service

import (
	"context"
	"time"

	"timeclock/internal/attendance/models"
	"timeclock/pkg/requestcontext"

	dErrors "timeclock/pkg/domain-errors"
)

// Stats summarizes a user's attendance over a date range. Percentages and
// averages are derived from scheduled working days, not calendar days.
type Stats struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// WorkingDays is how many days in the range were scheduled per policy.
	WorkingDays int `json:"working_days"`

	PresentDays int `json:"present_days"`
	LateDays    int `json:"late_days"`
	HalfDays    int `json:"half_days"`
	AbsentDays  int `json:"absent_days"`
	LeaveDays   int `json:"leave_days"`

	TotalHours         float64 `json:"total_hours"`
	AverageHoursPerDay float64 `json:"average_hours_per_day"`

	// AttendancePercentage is attended working days (present, late, or
	// half day) over scheduled working days that have already passed.
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// GetStats aggregates the user's records over the range. Scheduled days
// after the current day are excluded so an in-progress week does not read as
// absences.
func (s *Service) GetStats(ctx context.Context, from, to time.Time) (*Stats, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing authenticated user")
	}

	// Range bounds are calendar dates, same convention as History.
	fromDay := s.dateOf(from)
	toDay := s.dateOf(to)
	if toDay.Before(fromDay) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "stats range end precedes start")
	}

	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load attendance settings")
	}

	records, err := s.store.ListRange(ctx, userID, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*models.Record, len(records))
	for _, r := range records {
		byDay[r.Day.Format("2006-01-02")] = r
	}

	today := models.DayOf(requestcontext.Now(ctx), s.tz)

	stats := &Stats{From: fromDay, To: toDay}
	daysWithHours := 0

	for day := fromDay; !day.After(toDay); day = day.AddDate(0, 0, 1) {
		if !settings.IsWorkingDay(day) {
			continue
		}
		if day.After(today) {
			continue
		}
		stats.WorkingDays++

		record := byDay[day.Format("2006-01-02")]
		if record == nil {
			stats.AbsentDays++
			continue
		}

		switch record.Status {
		case models.StatusPresent:
			stats.PresentDays++
		case models.StatusLate:
			stats.LateDays++
		case models.StatusHalfDay:
			stats.HalfDays++
		case models.StatusAbsent:
			stats.AbsentDays++
		case models.StatusLeave:
			stats.LeaveDays++
		}

		if record.TotalHours != nil {
			stats.TotalHours += *record.TotalHours
			daysWithHours++
		}
	}

	if daysWithHours > 0 {
		stats.AverageHoursPerDay = stats.TotalHours / float64(daysWithHours)
	}
	if stats.WorkingDays > 0 {
		attended := stats.PresentDays + stats.LateDays + stats.HalfDays
		stats.AttendancePercentage = float64(attended) / float64(stats.WorkingDays) * 100
	}
	return stats, nil
}
