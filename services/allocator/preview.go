package allocator

import (
	"context"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/capacity"
	"bloomify/services/scheduleerr"
	"bloomify/services/slotgen"
	"bloomify/services/walkin"
)

// PreviewResult is the read-only placement preview for the patient
// app's confirmation screen (§4.5.4): where the new walk-in would land,
// which advance appointments it would displace, and where any existing
// walk-ins would be reshuffled to.
type PreviewResult struct {
	PlaceholderAssignment walkin.Assignment
	AdvanceShifts         []walkin.Shift
	WalkInAssignments     map[string]walkin.Assignment
}

// PreviewWalkInPlacement reports where the next walk-in would land
// without reserving anything — a read-only run of the same placement
// logic BookWalkIn uses, for the "where would I go" API endpoint.
func (a *Allocator) PreviewWalkInPlacement(ctx context.Context, req BookWalkInRequest) (PreviewResult, error) {
	clinicDoc, err := a.store.Get(ctx, "clinics", req.ClinicID)
	if err != nil {
		return PreviewResult{}, err
	}
	if clinicDoc == nil {
		return PreviewResult{}, scheduleerr.New(scheduleerr.KindInvalidInput, "clinic %s not found", req.ClinicID)
	}
	clinic := clinicFromDoc(clinicDoc)

	doctorDoc, err := a.store.Get(ctx, "doctors", req.DoctorID)
	if err != nil {
		return PreviewResult{}, err
	}
	if doctorDoc == nil {
		return PreviewResult{}, scheduleerr.New(scheduleerr.KindInvalidInput, "doctor %s not found", req.DoctorID)
	}
	doctor := doctorFromDoc(doctorDoc)

	date, err := a.clock.ParseISODate(req.Date)
	if err != nil {
		return PreviewResult{}, err
	}
	slots, err := slotgen.Generate(a.clock, doctor, date)
	if err != nil {
		return PreviewResult{}, err
	}

	now := a.clock.Now()
	sessionIndex, _, err := a.resolveWalkInSession(date, doctor, req, now)
	if err != nil {
		return PreviewResult{}, err
	}

	sessionSlots := slotsInSession(slots, sessionIndex)
	if len(sessionSlots) == 0 {
		return PreviewResult{}, scheduleerr.New(scheduleerr.KindInvalidInput, "session %d has no slots on %s", sessionIndex, req.Date)
	}

	capResult := capacity.ComputeSession(sessionIndex, sessionSlots, now)
	if capResult.WalkInCapacity <= 0 {
		return PreviewResult{}, scheduleerr.New(scheduleerr.KindNoWalkInSlots, "no walk-in capacity left in session %d", sessionIndex)
	}

	existingDocs, err := a.store.Query(ctx, "appointments", store.Filter{
		"clinicId": req.ClinicID,
		"doctorId": req.DoctorID,
		"date":     req.Date,
	}, nil)
	if err != nil {
		return PreviewResult{}, err
	}

	var existing []models.Appointment
	walkInCount := 0
	for _, d := range existingDocs {
		appt := appointmentFromDoc(d)
		if appt.SessionIndex != sessionIndex || !appt.Status.IsActive() {
			continue
		}
		existing = append(existing, appt)
		if appt.BookedVia == models.BookedViaWalkIn {
			walkInCount++
		}
	}
	if walkInCount >= capResult.WalkInCapacity {
		return PreviewResult{}, scheduleerr.New(scheduleerr.KindNoWalkInSlots, "walk-in capacity reached for session %d", sessionIndex)
	}

	sessionStart := sessionSlots[0].AbsoluteIndex
	occupants := buildOccupants(existing, sessionStart, capResult)

	const previewID = "__preview_"
	in := walkin.Input{
		SlotTimes:   sessionTimes(sessionSlots),
		StepMinutes: doctor.EffectiveConsultMinutes(),
		Now:         now,
		Spacing:     clinic.EffectiveSpacing(),
		Occupants:   occupants,
		Candidates: []walkin.Candidate{
			{ID: previewID, NumericToken: walkInCount + 1, CreatedAt: now.UnixNano(), PreferredSlot: -1},
		},
	}

	schedResult, err := walkin.Schedule(in)
	if err != nil {
		return PreviewResult{}, err
	}

	byID := map[string]models.Appointment{}
	for _, appt := range existing {
		byID[appt.ID] = appt
	}
	var advanceShifts []walkin.Shift
	walkInAssignments := map[string]walkin.Assignment{}
	for _, sh := range schedResult.Shifts {
		appt, ok := byID[sh.ID]
		if !ok {
			continue
		}
		if appt.BookedVia == models.BookedViaWalkIn {
			walkInAssignments[sh.ID] = walkin.Assignment{
				SlotIndex: sh.ToIndex,
				Time:      sessionTimeAt(sessionSlots, doctor.EffectiveConsultMinutes(), sh.ToIndex),
			}
			continue
		}
		advanceShifts = append(advanceShifts, sh)
	}

	return PreviewResult{
		PlaceholderAssignment: schedResult.Assignments[previewID],
		AdvanceShifts:         advanceShifts,
		WalkInAssignments:     walkInAssignments,
	}, nil
}
