// Package classify maps attendance timestamps and the settings snapshot to a
// status. It is a pure function, re-evaluated every time a new fact (check-in,
// then check-out) lands on a record; not a state machine.
package classify

import (
	"time"

	"timeclock/internal/attendance/models"
)

// Classify derives the status for a record from its check-in timestamp, its
// check-out timestamp when present, and the policy snapshot. Timestamps must
// already be in the workplace zone: lateness depends on wall-clock
// time-of-day, which changes with the location attached to the instant.
//
// Precedence: a short day (worked hours below the half-day threshold) is
// classified HALF_DAY and overrides a PRESENT or LATE call made at check-in
// time. HALF_DAY is only computable once the check-out exists, so any
// classification with a lone check-in is provisional. This ordering resolves
// an ambiguity between lateness-only and hours-only checks; revisit if the
// business rules say otherwise.
func Classify(checkIn time.Time, checkOut *time.Time, settings models.Settings) models.Status {
	if checkOut != nil {
		hoursWorked := checkOut.Sub(checkIn).Hours()
		if hoursWorked < settings.HalfDayThresholdHours {
			return models.StatusHalfDay
		}
	}

	if LatenessMinutes(checkIn, settings) > settings.LateThresholdMinutes {
		return models.StatusLate
	}

	return models.StatusPresent
}

// LatenessMinutes is how many minutes past the scheduled check-in time the
// actual check-in happened. Negative values mean an early arrival. The
// time-of-day is read from checkIn's own location, so the caller converts
// the instant to the workplace zone first.
func LatenessMinutes(checkIn time.Time, settings models.Settings) int {
	actual := checkIn.Hour()*60 + checkIn.Minute()
	return actual - settings.CheckInTime.Minutes()
}

// AbsentByCutoff is the end-of-day reconciliation contract: a working day
// that reaches its cutoff with no record at all is ABSENT. This subsystem
// never applies the transition itself; the external batch process must call
// this for each user with no record once the day closes. The second return
// is false on non-working days, which are not classified at all.
func AbsentByCutoff(day time.Time, settings models.Settings) (models.Status, bool) {
	if !settings.IsWorkingDay(day) {
		return "", false
	}
	return models.StatusAbsent, true
}
