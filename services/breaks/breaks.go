// Package breaks implements C7: adding and removing a doctor's mid-session
// breaks, the dummy appointment rows that materialize them, and the
// session-extension bookkeeping a break can force (§4.7).
package breaks

import (
	"context"
	"sort"
	"time"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/allocator"
	"bloomify/services/clock"
	"bloomify/services/scheduleerr"
	"bloomify/services/slotgen"

	"github.com/google/uuid"
)

// Service owns the break/extension transactions and, once they commit,
// asks the allocator to resettle walk-ins against the new layout.
type Service struct {
	store     store.Store
	clock     *clock.Clock
	allocator *allocator.Allocator
}

// New builds a break Service over a store, clinic clock and the
// allocator used to rebalance walk-ins after a layout change.
func New(s store.Store, c *clock.Clock, a *allocator.Allocator) *Service {
	return &Service{store: s, clock: c, allocator: a}
}

// AddBreakRequest names the doctor, date, session and the contiguous
// slot indices (session-relative) the new break should cover.
type AddBreakRequest struct {
	DoctorID     string
	Date         string
	SessionIndex int
	SlotIndices  []int // session-relative, ascending, contiguous
}

// AddBreak validates and inserts one break into a session, per §4.7:
// at most MaxBreaksPerSession breaks, no overlap, fully inside
// [sessionStart, effectiveEnd). Adjacent new/existing breaks merge into
// a single BreakPeriod entry. Any active appointment the break covers
// is pushed past the session's current end, and the session is
// extended by exactly the minutes that displacement needs. The
// allocator then resettles walk-ins against the new layout.
func (s *Service) AddBreak(ctx context.Context, req AddBreakRequest) error {
	if len(req.SlotIndices) == 0 {
		return scheduleerr.New(scheduleerr.KindInvalidBreak, "break must cover at least one slot")
	}
	sorted := append([]int(nil), req.SlotIndices...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return scheduleerr.New(scheduleerr.KindInvalidBreak, "break slots must be contiguous")
		}
	}

	var rebalanceAfter bool
	err := s.store.Txn(ctx, func(ctx context.Context, tx store.Tx) error {
		doctorDoc, err := tx.Get(ctx, "doctors", req.DoctorID)
		if err != nil {
			return err
		}
		if doctorDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "doctor %s not found", req.DoctorID)
		}
		doctor := allocator.DoctorFromDoc(doctorDoc)

		date, err := s.clock.ParseISODate(req.Date)
		if err != nil {
			return err
		}
		sessionStart, effectiveEnd, err := slotgen.SessionBounds(s.clock, doctor, date, req.SessionIndex)
		if err != nil {
			return err
		}

		stepMinutes := doctor.EffectiveConsultMinutes()
		step := time.Duration(stepMinutes) * time.Minute

		slotTimes := make([]time.Time, len(sorted))
		for i, rel := range sorted {
			slotTimes[i] = sessionStart.Add(time.Duration(rel) * step)
		}
		newStart := slotTimes[0]
		newEnd := slotTimes[len(slotTimes)-1].Add(step)
		if newStart.Before(sessionStart) || newEnd.After(effectiveEnd) {
			return scheduleerr.New(scheduleerr.KindInvalidBreak, "break falls outside the session window")
		}

		existing := doctor.BreaksOn(req.Date)
		var sessionBreaks []models.BreakPeriod
		for _, b := range existing {
			if b.SessionIndex == req.SessionIndex {
				sessionBreaks = append(sessionBreaks, b)
			}
		}
		if len(sessionBreaks) >= models.MaxBreaksPerSession {
			return scheduleerr.New(scheduleerr.KindInvalidBreak, "session already has %d breaks", models.MaxBreaksPerSession)
		}

		for _, b := range sessionBreaks {
			bStart, err := s.clock.ParseTimeOfDay(date, b.StartTime)
			if err != nil {
				continue
			}
			bEnd, err := s.clock.ParseTimeOfDay(date, b.EndTime)
			if err != nil {
				continue
			}
			if newStart.Before(bEnd) && bStart.Before(newEnd) {
				return scheduleerr.New(scheduleerr.KindInvalidBreak, "break overlaps an existing break")
			}
		}

		merged := sessionBreaks
		mergedSlotTimes := formatSlotTimes(slotTimes)
		finalStart, finalEnd := newStart, newEnd
		replaced := -1
		for i, b := range sessionBreaks {
			bStart, err1 := s.clock.ParseTimeOfDay(date, b.StartTime)
			bEnd, err2 := s.clock.ParseTimeOfDay(date, b.EndTime)
			if err1 != nil || err2 != nil {
				continue
			}
			if bEnd.Equal(finalStart) {
				finalStart = bStart
				mergedSlotTimes = append(b.SlotTimes, mergedSlotTimes...)
				replaced = i
			} else if bStart.Equal(finalEnd) {
				finalEnd = bEnd
				mergedSlotTimes = append(mergedSlotTimes, b.SlotTimes...)
				replaced = i
			}
		}

		newBreak := models.BreakPeriod{
			ID:              uuid.NewString(),
			SessionIndex:    req.SessionIndex,
			StartTime:       s.clock.FormatTime(finalStart),
			EndTime:         s.clock.FormatTime(finalEnd),
			DurationMinutes: int(finalEnd.Sub(finalStart).Minutes()),
			SlotTimes:       mergedSlotTimes,
		}
		if replaced >= 0 {
			newBreak.ID = merged[replaced].ID
			merged = append(append([]models.BreakPeriod{}, merged[:replaced]...), merged[replaced+1:]...)
		}
		merged = append(merged, newBreak)

		var rebuilt []models.BreakPeriod
		for _, b := range doctor.BreaksOn(req.Date) {
			if b.SessionIndex != req.SessionIndex {
				rebuilt = append(rebuilt, b)
			}
		}
		rebuilt = append(rebuilt, merged...)

		if doctor.BreakPeriods == nil {
			doctor.BreakPeriods = map[string][]models.BreakPeriod{}
		}
		doctor.BreakPeriods[req.Date] = rebuilt

		apptDocs, err := tx.Query(ctx, "appointments", store.Filter{
			"doctorId": req.DoctorID,
			"date":     req.Date,
		}, nil)
		if err != nil {
			return err
		}
		var displaced []models.Appointment
		for _, d := range apptDocs {
			appt := allocator.AppointmentFromDoc(d)
			if appt.SessionIndex != req.SessionIndex || !appt.Status.IsActive() || appt.IsBreakBlock() {
				continue
			}
			for _, t := range slotTimes {
				if appt.Time.Equal(t) {
					displaced = append(displaced, appt)
					break
				}
			}
		}
		sort.Slice(displaced, func(i, j int) bool { return displaced[i].SlotIndex < displaced[j].SlotIndex })

		actualExtensionNeeded := len(displaced) * stepMinutes
		extendedEnd := effectiveEnd
		if actualExtensionNeeded > 0 {
			extendedEnd = effectiveEnd.Add(time.Duration(actualExtensionNeeded) * step)
			if doctor.Extensions == nil {
				doctor.Extensions = map[string]models.DateExtensions{}
			}
			de, ok := doctor.Extensions[req.Date]
			if !ok {
				de = models.DateExtensions{Sessions: map[int]models.SessionExtension{}}
			}
			if de.Sessions == nil {
				de.Sessions = map[int]models.SessionExtension{}
			}
			de.Sessions[req.SessionIndex] = models.SessionExtension{NewEndTime: s.clock.FormatTime(extendedEnd)}
			doctor.Extensions[req.Date] = de
		}
		tx.Update("doctors", req.DoctorID, allocator.DoctorToDoc(doctor))

		now := s.clock.Now()
		for i, appt := range displaced {
			newTime := effectiveEnd.Add(time.Duration(i) * step)
			appt.Time = newTime
			appt.CutOffTime, appt.NoShowTime = models.CutOffAndNoShow(newTime)
			appt.UpdatedAt = now
			tx.Update("appointments", appt.ID, allocator.AppointmentToDoc(appt))
		}

		for _, t := range slotTimes {
			cutOff, noShow := models.CutOffAndNoShow(t)
			block := models.Appointment{
				ID:           uuid.NewString(),
				ClinicID:     doctor.ClinicID,
				DoctorID:     req.DoctorID,
				Date:         req.Date,
				Time:         t,
				ArriveByTime: t,
				PatientID:    "dummy-break-patient",
				BookedVia:    models.BookedViaBreakBlock,
				Status:       models.StatusCompleted,
				SessionIndex: req.SessionIndex,
				CutOffTime:   cutOff,
				NoShowTime:   noShow,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			tx.Set("appointments", block.ID, allocator.AppointmentToDoc(block))
		}

		rebalanceAfter = actualExtensionNeeded > 0
		return nil
	})
	if err != nil {
		return err
	}
	if rebalanceAfter && s.allocator != nil {
		_ = s.allocator.RebalanceWalkIns(ctx, allocator.BookWalkInRequest{
			DoctorID: req.DoctorID, Date: req.Date, SessionIndex: req.SessionIndex,
		})
	}
	return nil
}

// RemoveBreakRequest identifies the break to reverse.
type RemoveBreakRequest struct {
	DoctorID     string
	Date         string
	SessionIndex int
	BreakID      string
}

// RemoveBreak deletes the named break, its BreakBlock appointment rows,
// and shrinks the session extension back down if no other break still
// needs the room (§4.7).
func (s *Service) RemoveBreak(ctx context.Context, req RemoveBreakRequest) error {
	var rebalanceAfter bool
	err := s.store.Txn(ctx, func(ctx context.Context, tx store.Tx) error {
		doctorDoc, err := tx.Get(ctx, "doctors", req.DoctorID)
		if err != nil {
			return err
		}
		if doctorDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "doctor %s not found", req.DoctorID)
		}
		doctor := allocator.DoctorFromDoc(doctorDoc)

		existing := doctor.BreaksOn(req.Date)
		var kept []models.BreakPeriod
		var removed *models.BreakPeriod
		for _, b := range existing {
			if b.ID == req.BreakID {
				cp := b
				removed = &cp
				continue
			}
			kept = append(kept, b)
		}
		if removed == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "break %s not found", req.BreakID)
		}
		doctor.BreakPeriods[req.Date] = kept

		apptDocs, err := tx.Query(ctx, "appointments", store.Filter{
			"doctorId": req.DoctorID,
			"date":     req.Date,
		}, nil)
		if err != nil {
			return err
		}
		removedTimes := map[time.Time]bool{}
		for _, iso := range removed.SlotTimes {
			t, err := time.ParseInLocation(time.RFC3339, iso, s.clock.Location())
			if err != nil {
				continue
			}
			removedTimes[t] = true
		}
		for _, d := range apptDocs {
			appt := allocator.AppointmentFromDoc(d)
			if appt.SessionIndex != req.SessionIndex || !appt.IsBreakBlock() {
				continue
			}
			if removedTimes[appt.Time] {
				tx.Delete("appointments", appt.ID)
			}
		}

		remainingNeedsExtension := false
		for _, b := range kept {
			if b.SessionIndex == req.SessionIndex {
				remainingNeedsExtension = true
				break
			}
		}
		if !remainingNeedsExtension {
			if de, ok := doctor.Extensions[req.Date]; ok {
				delete(de.Sessions, req.SessionIndex)
				doctor.Extensions[req.Date] = de
				rebalanceAfter = true
			}
		}
		tx.Update("doctors", req.DoctorID, allocator.DoctorToDoc(doctor))
		return nil
	})
	if err != nil {
		return err
	}
	if rebalanceAfter && s.allocator != nil {
		_ = s.allocator.RebalanceWalkIns(ctx, allocator.BookWalkInRequest{
			DoctorID: req.DoctorID, Date: req.Date, SessionIndex: req.SessionIndex,
		})
	}
	return nil
}

// ApplyBreakOffsets shifts a display time forward by the total duration
// of every break interval that starts at or before it, so a patient's
// "arrive by" time already accounts for breaks inserted after their
// appointment was booked.
func ApplyBreakOffsets(original time.Time, intervals []struct{ Start, End time.Time }) time.Time {
	out := original
	for _, iv := range intervals {
		if !iv.Start.After(original) {
			out = out.Add(iv.End.Sub(iv.Start))
		}
	}
	return out
}

func formatSlotTimes(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.Format(time.RFC3339)
	}
	return out
}
