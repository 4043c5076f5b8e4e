// Package delay implements C8: how far behind schedule a doctor is
// running right now.
package delay

import (
	"time"

	"bloomify/models"
)

// Compute returns the doctor's current delay in minutes, clamped at 0,
// per §4.8.
//
// effectiveStart is the session's start time after accounting for any
// initial break ending at or before sessionStart+1min. completed is the
// completed-consultation count for the active session. passedBreakMinutes
// sums break intervals starting at/after effectiveStart whose start is
// before now.
func Compute(status models.ConsultationStatus, effectiveStart, now time.Time, completed int, avgConsultMinutes int, passedBreakMinutes int) int {
	if now.Before(effectiveStart) {
		return 0
	}

	if status != models.StatusIn {
		return minutesBetween(effectiveStart, now)
	}

	elapsed := minutesBetween(effectiveStart, now)
	delay := elapsed - completed*avgConsultMinutes - passedBreakMinutes
	if delay < 0 {
		return 0
	}
	return delay
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from).Minutes())
}

// EffectiveSessionStart returns sessionStart pushed past an initial
// break — one starting within a minute of sessionStart — so a doctor
// isn't marked late for a break the clinic scheduled before anyone was
// expected.
func EffectiveSessionStart(sessionStart time.Time, breaks []models.BreakPeriod, parseTimeOfDay func(hhmm string) (time.Time, error)) time.Time {
	threshold := sessionStart.Add(1 * time.Minute)
	for _, b := range breaks {
		start, err := parseTimeOfDay(b.StartTime)
		if err != nil || start.After(threshold) {
			continue
		}
		end, err := parseTimeOfDay(b.EndTime)
		if err != nil {
			continue
		}
		if end.After(sessionStart) {
			sessionStart = end
		}
	}
	return sessionStart
}
