// Package slotgen implements C2: expanding a doctor's availability for
// one calendar date into the ordered physical-slot list.
package slotgen

import (
	"time"

	"bloomify/models"
	"bloomify/services/clock"
	"bloomify/services/scheduleerr"
)

// Generate produces the dense, absolute-indexed physical slot list for
// doctor on date, honoring any session-end extension for that date.
func Generate(c *clock.Clock, doctor models.Doctor, date time.Time) ([]models.PhysicalSlot, error) {
	weekday := c.Weekday(date)
	sessions := doctor.SessionsOn(weekday)
	if len(sessions) == 0 {
		return nil, scheduleerr.New(scheduleerr.KindNotAvailable,
			"doctor %s has no availability on weekday %d", doctor.ID, weekday)
	}

	dateISO := c.FormatISODate(date)
	stepMinutes := doctor.EffectiveConsultMinutes()

	var slots []models.PhysicalSlot
	absIndex := 0
	for sessionIndex, sess := range sessions {
		from, err := c.ParseTimeOfDay(date, sess.From)
		if err != nil {
			return nil, err
		}
		to, err := c.ParseTimeOfDay(date, sess.To)
		if err != nil {
			return nil, err
		}

		effectiveEnd := to
		if ext, ok := doctor.ExtensionFor(dateISO, sessionIndex); ok {
			newEnd, err := c.ParseTimeOfDay(date, ext.NewEndTime)
			if err == nil && newEnd.After(to) {
				effectiveEnd = newEnd
			}
		}

		for t := from; t.Before(effectiveEnd); t = t.Add(time.Duration(stepMinutes) * time.Minute) {
			slots = append(slots, models.PhysicalSlot{
				AbsoluteIndex: absIndex,
				SessionIndex:  sessionIndex,
				Time:          t,
			})
			absIndex++
		}
	}

	return slots, nil
}

// SessionBounds returns the [start, effectiveEnd) instants for one
// session, applying any date extension exactly as Generate does —
// shared by the capacity calculator and break service so "effective
// end" is computed identically everywhere.
func SessionBounds(c *clock.Clock, doctor models.Doctor, date time.Time, sessionIndex int) (start, end time.Time, err error) {
	weekday := c.Weekday(date)
	sessions := doctor.SessionsOn(weekday)
	if sessionIndex < 0 || sessionIndex >= len(sessions) {
		return time.Time{}, time.Time{}, scheduleerr.New(scheduleerr.KindInvalidInput,
			"session index %d out of range for doctor %s", sessionIndex, doctor.ID)
	}
	sess := sessions[sessionIndex]

	start, err = c.ParseTimeOfDay(date, sess.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = c.ParseTimeOfDay(date, sess.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	dateISO := c.FormatISODate(date)
	if ext, ok := doctor.ExtensionFor(dateISO, sessionIndex); ok {
		newEnd, err2 := c.ParseTimeOfDay(date, ext.NewEndTime)
		if err2 == nil && newEnd.After(end) {
			end = newEnd
		}
	}
	return start, end, nil
}
