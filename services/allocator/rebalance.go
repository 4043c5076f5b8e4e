package allocator

import (
	"context"
	"time"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/capacity"
	"bloomify/services/slotgen"
	"bloomify/services/walkin"
)

// RebalanceWalkIns re-runs C4 over the latest state for every session
// on the date and writes back any differing slotIndex/time/cutOffTime/
// noShowTime for both advance and walk-in rows (§4.5.3). Existing
// walk-ins are re-placed as candidates (preferring their current slot)
// rather than frozen in place, so a break or extension change can
// tighten gaps left behind.
func (a *Allocator) RebalanceWalkIns(ctx context.Context, req BookWalkInRequest) error {
	ctx, cancel := context.WithTimeout(ctx, watchdog)
	defer cancel()

	return a.withRetry(ctx, func(ctx context.Context, tx store.Tx) error {
		clinicDoc, err := tx.Get(ctx, "clinics", req.ClinicID)
		if err != nil {
			return err
		}
		if clinicDoc == nil {
			return nil
		}
		clinic := clinicFromDoc(clinicDoc)

		doctorDoc, err := tx.Get(ctx, "doctors", req.DoctorID)
		if err != nil {
			return err
		}
		if doctorDoc == nil {
			return nil
		}
		doctor := doctorFromDoc(doctorDoc)

		date, err := a.clock.ParseISODate(req.Date)
		if err != nil {
			return err
		}
		slots, err := slotgen.Generate(a.clock, doctor, date)
		if err != nil {
			return err
		}

		docs, err := tx.Query(ctx, "appointments", store.Filter{
			"clinicId": req.ClinicID,
			"doctorId": req.DoctorID,
			"date":     req.Date,
		}, nil)
		if err != nil {
			return err
		}

		var all []models.Appointment
		for _, d := range docs {
			all = append(all, appointmentFromDoc(d))
		}

		now := a.clock.Now()
		bySession := map[int][]models.Appointment{}
		for _, appt := range all {
			if !appt.Status.IsActive() {
				continue
			}
			bySession[appt.SessionIndex] = append(bySession[appt.SessionIndex], appt)
		}

		for sessionIndex, sessionAppointments := range bySession {
			sessionSlots := slotsInSession(slots, sessionIndex)
			if len(sessionSlots) == 0 {
				continue
			}
			sessionStart := sessionSlots[0].AbsoluteIndex
			capResult := capacity.ComputeSession(sessionIndex, sessionSlots, now)

			var advances []models.Appointment
			var walkIns []models.Appointment
			for _, appt := range sessionAppointments {
				if appt.BookedVia == models.BookedViaWalkIn {
					walkIns = append(walkIns, appt)
				} else {
					advances = append(advances, appt)
				}
			}

			occupants := buildOccupants(advances, sessionStart, capResult)
			var candidates []walkin.Candidate
			for _, w := range walkIns {
				candidates = append(candidates, walkin.Candidate{
					ID: w.ID, NumericToken: w.NumericToken, CreatedAt: w.CreatedAt.UnixNano(),
					PreferredSlot: w.SlotIndex - sessionStart,
				})
			}
			if len(candidates) == 0 {
				continue
			}

			stepMinutes := doctor.EffectiveConsultMinutes()
			result, err := walkin.Schedule(walkin.Input{
				SlotTimes:   sessionTimes(sessionSlots),
				StepMinutes: stepMinutes,
				Now:         now,
				Spacing:     clinic.EffectiveSpacing(),
				Occupants:   occupants,
				Candidates:  candidates,
			})
			if err != nil {
				return err
			}

			byID := map[string]models.Appointment{}
			for _, w := range walkIns {
				byID[w.ID] = w
			}
			for _, sh := range result.Shifts {
				id, ok := occupantIDAt(advances, sessionStart, sh.FromIndex)
				if !ok {
					continue
				}
				newIndex := remapOverflow(slots, sessionStart, sessionIndex, sh.ToIndex)
				writeBackMove(tx, advances, id, newIndex, sessionTimeAt(sessionSlots, stepMinutes, sh.ToIndex), now)
			}
			for id, assignment := range result.Assignments {
				w, ok := byID[id]
				if !ok {
					continue
				}
				newIndex := remapOverflow(slots, sessionStart, sessionIndex, assignment.SlotIndex)
				if w.SlotIndex == newIndex {
					continue
				}
				w.SlotIndex = newIndex
				w.Time = assignment.Time
				w.CutOffTime, w.NoShowTime = models.CutOffAndNoShow(assignment.Time)
				w.UpdatedAt = now
				tx.Update("appointments", w.ID, appointmentToDoc(w))
			}
		}
		return nil
	})
}

// writeBackMove applies one advance-occupant shift to its appointment
// row, writing slotIndex/time/cutOffTime/noShowTime only (§4.5.3).
func writeBackMove(tx store.Tx, advances []models.Appointment, id string, newSlotIndex int, newTime time.Time, now time.Time) {
	for _, appt := range advances {
		if appt.ID != id {
			continue
		}
		appt.SlotIndex = newSlotIndex
		appt.Time = newTime
		appt.CutOffTime, appt.NoShowTime = models.CutOffAndNoShow(newTime)
		appt.UpdatedAt = now
		tx.Update("appointments", appt.ID, appointmentToDoc(appt))
		return
	}
}
