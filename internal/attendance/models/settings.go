package models

import (
	"fmt"
	"time"

	"timeclock/internal/attendance/geofence"
)

// TimeOfDay is a wall-clock shift boundary ("09:00").
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04" formatted shift boundaries.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Minutes returns the boundary as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Workplace is the circular geofence around the configured work site.
type Workplace struct {
	Center       geofence.Point `json:"center"`
	RadiusMeters float64        `json:"radius_meters"`
}

// Settings is the organization-wide attendance policy. It is read once per
// operation as an immutable snapshot; this subsystem never mutates it.
type Settings struct {
	CheckInTime  TimeOfDay `json:"check_in_time"`
	CheckOutTime TimeOfDay `json:"check_out_time"`

	LateThresholdMinutes  int     `json:"late_threshold_minutes"`
	HalfDayThresholdHours float64 `json:"half_day_threshold_hours"`

	WorkingDays []time.Weekday `json:"working_days"`
	// Holidays are dates normalized to local midnight.
	Holidays []time.Time `json:"holidays"`

	LocationRequired  bool    `json:"location_required"`
	PhotoRequired     bool    `json:"photo_required"`
	GPSAccuracyMeters float64 `json:"gps_accuracy_meters"`

	Workplace Workplace `json:"workplace"`
}

// IsWorkingDay reports whether day (a normalized date) is scheduled: listed
// in WorkingDays and not a holiday. Non-working days are never classified.
func (s Settings) IsWorkingDay(day time.Time) bool {
	scheduled := false
	for _, wd := range s.WorkingDays {
		if day.Weekday() == wd {
			scheduled = true
			break
		}
	}
	if !scheduled {
		return false
	}
	for _, h := range s.Holidays {
		if h.Year() == day.Year() && h.YearDay() == day.YearDay() {
			return false
		}
	}
	return true
}
