package allocator

import (
	"context"
	"time"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/capacity"
	"bloomify/services/clock"
	"bloomify/services/scheduleerr"
	"bloomify/services/slotgen"
	"bloomify/services/token"
	"bloomify/services/walkin"

	"github.com/google/uuid"
)

// maxRetries bounds how many times a transaction is retried after an
// optimistic-concurrency conflict or an internal reservation race (§5).
const maxRetries = 5

// watchdog is the overall wall-clock budget for one allocator call
// before it gives up with KindTimeout (§7).
const watchdog = 30 * time.Second

// activeSessionLeadTime is how far ahead of a session's start walk-ins
// may already book into it (§4.5.2 step 2).
const activeSessionLeadTime = 30 * time.Minute

// advanceLeadTime is the minimum notice an advance booking must give:
// candidates closer than this to now are skipped (§4.5.1 step 4).
const advanceLeadTime = 60 * time.Minute

// Allocator is C5: the transactional layer booking advance and walk-in
// appointments against the store, built on C1-C4 and C10.
type Allocator struct {
	store store.Store
	clock *clock.Clock
}

// New builds an Allocator over a concrete store and clinic clock.
func New(s store.Store, c *clock.Clock) *Allocator {
	return &Allocator{store: s, clock: c}
}

// BookAdvanceRequest identifies the advance slot a patient prefers;
// bookAdvance may land the patient on a later slot in the same session
// if the preferred one is contested (§4.5.1 step 4).
type BookAdvanceRequest struct {
	ClinicID  string
	DoctorID  string
	Date      string // yyyy-MM-dd
	SlotIndex int    // preferred absolute index, from the advance capacity band
	PatientID string
}

// BookAdvance reserves and confirms one advance appointment, retrying on
// transaction conflict and on internal reservation conflicts per §5.
func (a *Allocator) BookAdvance(ctx context.Context, req BookAdvanceRequest) (models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, watchdog)
	defer cancel()

	var result models.Appointment
	err := a.withRetry(ctx, func(ctx context.Context, tx store.Tx) error {
		clinicDoc, err := tx.Get(ctx, "clinics", req.ClinicID)
		if err != nil {
			return err
		}
		if clinicDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "clinic %s not found", req.ClinicID)
		}
		clinic := clinicFromDoc(clinicDoc)

		doctorDoc, err := tx.Get(ctx, "doctors", req.DoctorID)
		if err != nil {
			return err
		}
		if doctorDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "doctor %s not found", req.DoctorID)
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
		preferred, ok := findSlot(slots, req.SlotIndex)
		if !ok {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "slot %d does not exist on %s", req.SlotIndex, req.Date)
		}

		now := a.clock.Now()
		capResult := capacity.ComputeSession(preferred.SessionIndex, slotsInSession(slots, preferred.SessionIndex), now)

		// Read all of the day's appointments transactionally so both the
		// duplicate check and the occupied-slot set reflect the latest
		// writes (§4.5.1 step 2).
		dayDocs, err := tx.Query(ctx, "appointments", store.Filter{
			"clinicId": req.ClinicID,
			"doctorId": req.DoctorID,
			"date":     req.Date,
		}, nil)
		if err != nil {
			return err
		}
		occupied := map[int]bool{}
		for _, d := range dayDocs {
			appt := appointmentFromDoc(d)
			if appt.PatientID == req.PatientID && appt.Status.IsActive() {
				return scheduleerr.New(scheduleerr.KindDuplicateAppointment,
					"patient %s already has an active appointment on %s", req.PatientID, req.Date)
			}
			if appt.Status.IsActive() || appt.IsBreakBlock() {
				occupied[appt.SlotIndex] = true
			}
		}

		candidates := advanceCandidates(slots, preferred, now, capResult, occupied)
		if len(candidates) == 0 {
			return scheduleerr.New(scheduleerr.KindNoCandidate, "no eligible advance slot in session %d", preferred.SessionIndex)
		}

		chosen, sawConflict, err := a.claimAdvanceSlot(ctx, tx, req, doctor, candidates, now)
		if err != nil {
			return err
		}
		if chosen == nil {
			if sawConflict {
				return scheduleerr.New(scheduleerr.KindReservationConflict, "every eligible slot in session %d is being reserved", preferred.SessionIndex)
			}
			return scheduleerr.New(scheduleerr.KindNoCandidate, "no eligible advance slot in session %d", preferred.SessionIndex)
		}
		slot := *chosen

		appointmentID := uuid.NewString()
		reservationID := models.ReservationID(req.ClinicID, doctor.Name, req.Date, slot.AbsoluteIndex)
		reservation := models.SlotReservation{
			ID:            reservationID,
			ReservedAt:    now,
			ReservedBy:    appointmentID,
			Status:        models.ReservationBooked,
			AppointmentID: appointmentID,
		}
		tx.Set("reservations", reservationID, reservationToDoc(reservation))

		// numericToken = chosenSlotIndex + 1, from the slot actually won,
		// never from the walk-in counter (§4.5.1 step 6).
		numericToken := slot.AbsoluteIndex + 1
		tokenNumber := token.Advance(slot.SessionIndex, numericToken)

		var classicToken string
		if clinic.TokenDistribution == models.DistributionClassic {
			classicToken, err = a.nextClassicToken(ctx, tx, req.ClinicID, doctor, req.Date, slot.SessionIndex)
			if err != nil {
				return err
			}
		}

		status := models.StatusPending
		if clinic.TokenDistribution == models.DistributionClassic {
			status = models.StatusConfirmed
		}

		cutOff, noShow := models.CutOffAndNoShow(slot.Time)
		appt := models.Appointment{
			ID:                 appointmentID,
			ClinicID:           req.ClinicID,
			DoctorID:           req.DoctorID,
			Date:               req.Date,
			Time:               slot.Time,
			ArriveByTime:       slot.Time.Add(-15 * time.Minute),
			PatientID:          req.PatientID,
			BookedVia:          models.BookedViaAdvance,
			Status:             status,
			SlotIndex:          slot.AbsoluteIndex,
			SessionIndex:       slot.SessionIndex,
			NumericToken:       numericToken,
			TokenNumber:        tokenNumber,
			ClassicTokenNumber: classicToken,
			CutOffTime:         cutOff,
			NoShowTime:         noShow,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		tx.Set("appointments", appt.ID, appointmentToDoc(appt))
		result = appt
		return nil
	})
	return result, err
}

// advanceCandidates builds the ordered candidate list for bookAdvance
// (§4.5.1 step 4): slots in the preferred slot's session, at or after
// it, more than advanceLeadTime out, neither occupied nor reserved for
// walk-ins.
func advanceCandidates(slots []models.PhysicalSlot, preferred models.PhysicalSlot, now time.Time, capResult capacity.Result, occupied map[int]bool) []models.PhysicalSlot {
	var out []models.PhysicalSlot
	for _, s := range slotsInSession(slots, preferred.SessionIndex) {
		if s.AbsoluteIndex < preferred.AbsoluteIndex {
			continue
		}
		if !s.Time.After(now.Add(advanceLeadTime)) {
			continue
		}
		if occupied[s.AbsoluteIndex] || capResult.ReservedIndices[s.AbsoluteIndex] {
			continue
		}
		out = append(out, s)
	}
	return out
}

// claimAdvanceSlot walks the candidate list in order, skipping any slot
// whose reservation is live and deleting+claiming the first one that is
// either unreserved or stale (§4.5.1 step 5). sawConflict reports
// whether at least one candidate was skipped only because of a live
// reservation, distinguishing a retryable race from a terminal
// NoCandidate.
func (a *Allocator) claimAdvanceSlot(ctx context.Context, tx store.Tx, req BookAdvanceRequest, doctor models.Doctor, candidates []models.PhysicalSlot, now time.Time) (*models.PhysicalSlot, bool, error) {
	sawConflict := false
	for i := range candidates {
		cand := candidates[i]
		reservationID := models.ReservationID(req.ClinicID, doctor.Name, req.Date, cand.AbsoluteIndex)
		resDoc, err := tx.Get(ctx, "reservations", reservationID)
		if err != nil {
			return nil, false, err
		}
		if resDoc != nil {
			res := reservationFromDoc(resDoc)
			if res.Status == models.ReservationBooked {
				continue
			}
			if !res.IsStale(now) {
				sawConflict = true
				continue
			}
			tx.Delete("reservations", reservationID)
		}
		return &candidates[i], sawConflict, nil
	}
	return nil, sawConflict, nil
}

// BookWalkInRequest identifies a walk-in booking. The allocator picks
// the active session itself (§4.5.2 step 2); SessionIndex is only
// consulted as the operator's chosen target when ForceBook is set and
// no session is currently active. Pass SessionIndex -1 to let the
// allocator fall through to the next-to-start session instead.
type BookWalkInRequest struct {
	ClinicID     string
	DoctorID     string
	Date         string
	SessionIndex int
	ForceBook    bool
	PatientID    string
}

// BookWalkIn places a walk-in into the active session via the C4
// placement algorithm, persisting both the new appointment and any
// advance appointments it displaced.
func (a *Allocator) BookWalkIn(ctx context.Context, req BookWalkInRequest) (models.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, watchdog)
	defer cancel()

	var result models.Appointment
	err := a.withRetry(ctx, func(ctx context.Context, tx store.Tx) error {
		clinicDoc, err := tx.Get(ctx, "clinics", req.ClinicID)
		if err != nil {
			return err
		}
		if clinicDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "clinic %s not found", req.ClinicID)
		}
		clinic := clinicFromDoc(clinicDoc)

		doctorDoc, err := tx.Get(ctx, "doctors", req.DoctorID)
		if err != nil {
			return err
		}
		if doctorDoc == nil {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "doctor %s not found", req.DoctorID)
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

		now := a.clock.Now()
		sessionIndex, forceBooked, err := a.resolveWalkInSession(date, doctor, req, now)
		if err != nil {
			return err
		}

		sessionSlots := slotsInSession(slots, sessionIndex)
		if len(sessionSlots) == 0 {
			return scheduleerr.New(scheduleerr.KindInvalidInput, "session %d has no slots on %s", sessionIndex, req.Date)
		}

		capResult := capacity.ComputeSession(sessionIndex, sessionSlots, now)
		if capResult.WalkInCapacity <= 0 {
			return scheduleerr.New(scheduleerr.KindNoWalkInSlots, "no walk-in capacity left in session %d", sessionIndex)
		}

		dayDocs, err := tx.Query(ctx, "appointments", store.Filter{
			"clinicId": req.ClinicID,
			"doctorId": req.DoctorID,
			"date":     req.Date,
		}, nil)
		if err != nil {
			return err
		}

		var existing []models.Appointment
		walkInCount := 0
		for _, d := range dayDocs {
			appt := appointmentFromDoc(d)
			if appt.PatientID == req.PatientID && appt.Status.IsActive() && !appt.CancelledByBreak {
				return scheduleerr.New(scheduleerr.KindDuplicateAppointment,
					"patient %s already has an active appointment with doctor %s today", req.PatientID, req.DoctorID)
			}
			if appt.SessionIndex != sessionIndex || !appt.Status.IsActive() {
				continue
			}
			existing = append(existing, appt)
			if appt.BookedVia == models.BookedViaWalkIn {
				walkInCount++
			}
		}
		if walkInCount >= capResult.WalkInCapacity {
			return scheduleerr.New(scheduleerr.KindNoWalkInSlots, "walk-in capacity reached for session %d", sessionIndex)
		}

		sessionStart := sessionSlots[0].AbsoluteIndex
		occupants := buildOccupants(existing, sessionStart, capResult)

		candidateID := uuid.NewString()
		in := walkin.Input{
			SlotTimes:   sessionTimes(sessionSlots),
			StepMinutes: doctor.EffectiveConsultMinutes(),
			Now:         now,
			Spacing:     clinic.EffectiveSpacing(),
			Occupants:   occupants,
			Candidates: []walkin.Candidate{
				{ID: candidateID, NumericToken: walkInCount + 1, CreatedAt: now.UnixNano(), PreferredSlot: -1},
			},
		}
		schedResult, err := walkin.Schedule(in)
		if err != nil {
			return err
		}

		byID := map[string]models.Appointment{}
		for _, appt := range existing {
			byID[appt.ID] = appt
		}
		for _, sh := range schedResult.Shifts {
			id, ok := occupantIDAt(existing, sessionStart, sh.FromIndex)
			if !ok {
				continue
			}
			appt := byID[id]
			appt.SlotIndex = remapOverflow(slots, sessionStart, sessionIndex, sh.ToIndex)
			appt.Time = sessionTimeAt(sessionSlots, doctor.EffectiveConsultMinutes(), sh.ToIndex)
			appt.UpdatedAt = now
			tx.Update("appointments", appt.ID, appointmentToDoc(appt))
		}

		numericToken, err := a.nextWalkInCounter(ctx, tx, req.ClinicID, doctor, req.Date)
		if err != nil {
			return err
		}

		assignment := schedResult.Assignments[candidateID]
		tokenNumber := token.WalkIn(sessionIndex, numericToken)
		cutOff, noShow := models.CutOffAndNoShow(assignment.Time)

		appt := models.Appointment{
			ID:            candidateID,
			ClinicID:      req.ClinicID,
			DoctorID:      req.DoctorID,
			Date:          req.Date,
			Time:          assignment.Time,
			ArriveByTime:  assignment.Time,
			PatientID:     req.PatientID,
			BookedVia:     models.BookedViaWalkIn,
			Status:        models.StatusConfirmed,
			SlotIndex:     remapOverflow(slots, sessionStart, sessionIndex, assignment.SlotIndex),
			SessionIndex:  sessionIndex,
			NumericToken:  numericToken,
			TokenNumber:   tokenNumber,
			IsForceBooked: forceBooked,
			CutOffTime:    cutOff,
			NoShowTime:    noShow,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		tx.Set("appointments", appt.ID, appointmentToDoc(appt))
		result = appt
		return nil
	})
	return result, err
}

// resolveWalkInSession picks the active session per §4.5.2 step 2: the
// first session whose window contains now. When none is active it
// falls through to req.SessionIndex (if given) or the next-to-start
// session when req.ForceBook is set, and otherwise fails NoWalkInSlots.
func (a *Allocator) resolveWalkInSession(date time.Time, doctor models.Doctor, req BookWalkInRequest, now time.Time) (sessionIndex int, forceBooked bool, err error) {
	if idx, ok := findActiveSession(a.clock, doctor, date, now); ok {
		return idx, false, nil
	}
	if !req.ForceBook {
		return 0, false, scheduleerr.New(scheduleerr.KindNoWalkInSlots, "no active walk-in session for doctor %s", req.DoctorID)
	}
	if req.SessionIndex >= 0 {
		return req.SessionIndex, true, nil
	}
	if idx, ok := nextToStartSession(a.clock, doctor, date, now); ok {
		return idx, true, nil
	}
	return 0, false, scheduleerr.New(scheduleerr.KindNoWalkInSlots, "doctor %s has no sessions on that date", req.DoctorID)
}

// findActiveSession implements §4.5.2 step 2's active-session test:
// now <= sessionEnd && now >= sessionStart - 30min.
func findActiveSession(c *clock.Clock, doctor models.Doctor, date time.Time, now time.Time) (int, bool) {
	sessions := doctor.SessionsOn(c.Weekday(date))
	for i := range sessions {
		start, end, err := slotgen.SessionBounds(c, doctor, date, i)
		if err != nil {
			continue
		}
		if !now.After(end) && !now.Before(start.Add(-activeSessionLeadTime)) {
			return i, true
		}
	}
	return 0, false
}

// nextToStartSession returns the first session that hasn't started yet,
// or the last session of the day if every session has already started
// (the force-book fallback target named in §4.5.2 step 2).
func nextToStartSession(c *clock.Clock, doctor models.Doctor, date time.Time, now time.Time) (int, bool) {
	sessions := doctor.SessionsOn(c.Weekday(date))
	if len(sessions) == 0 {
		return 0, false
	}
	for i := range sessions {
		start, _, err := slotgen.SessionBounds(c, doctor, date, i)
		if err != nil {
			continue
		}
		if start.After(now) {
			return i, true
		}
	}
	return len(sessions) - 1, true
}

// remapOverflow maps a session-relative index into the 10000+ overflow
// band when it would otherwise land on the next session's physical
// slots, per §4.5.2 step 6.d and §9's overflow convention.
func remapOverflow(slots []models.PhysicalSlot, sessionStart, sessionIndex, relIndex int) int {
	raw := sessionStart + relIndex
	next := slotsInSession(slots, sessionIndex+1)
	if len(next) > 0 && raw >= next[0].AbsoluteIndex {
		return models.OverflowBand + relIndex
	}
	return raw
}

// withRetry runs fn inside a transaction, retrying on ErrTxnConflict and
// on an internal ReservationConflict up to maxRetries times with a
// 100ms*attempt backoff (§5), and maps a context deadline into
// KindTimeout.
func (a *Allocator) withRetry(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := a.store.Txn(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		retryable := err == store.ErrTxnConflict || scheduleerr.KindOf(err) == scheduleerr.KindReservationConflict
		if !retryable {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxRetries-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
			case <-ctx.Done():
			}
		}
	}
	if ctx.Err() != nil {
		return scheduleerr.Wrap(scheduleerr.KindTimeout, lastErr, "allocator operation timed out after %d attempts", maxRetries)
	}
	return scheduleerr.Wrap(scheduleerr.KindReservationConflict, lastErr, "too many conflicting concurrent bookings")
}

func (a *Allocator) nextClassicToken(ctx context.Context, tx store.Tx, clinicID string, doctor models.Doctor, date string, sessionIndex int) (string, error) {
	idx := sessionIndex
	id := models.CounterID(clinicID, doctor.Name, date, models.CounterClassicPerSession, &idx)
	doc, err := tx.Get(ctx, "counters", id)
	if err != nil {
		return "", err
	}
	next := 1
	if doc != nil {
		next = counterFromDoc(doc).Value + 1
	}
	counter := models.TokenCounter{
		ID: id, ClinicID: clinicID, DoctorID: doctor.ID, Date: date,
		Kind: models.CounterClassicPerSession, SessionIndex: &idx, Value: next,
	}
	tx.Set("counters", id, counterToDoc(counter))
	return token.Classic(next), nil
}

func (a *Allocator) nextWalkInCounter(ctx context.Context, tx store.Tx, clinicID string, doctor models.Doctor, date string) (int, error) {
	id := models.CounterID(clinicID, doctor.Name, date, models.CounterWalkIn, nil)
	doc, err := tx.Get(ctx, "counters", id)
	if err != nil {
		return 0, err
	}
	next := 1
	if doc != nil {
		next = counterFromDoc(doc).Value + 1
	}
	counter := models.TokenCounter{ID: id, ClinicID: clinicID, DoctorID: doctor.ID, Date: date, Kind: models.CounterWalkIn, Value: next}
	tx.Set("counters", id, counterToDoc(counter))
	return next, nil
}

func findSlot(slots []models.PhysicalSlot, absoluteIndex int) (models.PhysicalSlot, bool) {
	for _, s := range slots {
		if s.AbsoluteIndex == absoluteIndex {
			return s, true
		}
	}
	return models.PhysicalSlot{}, false
}

func slotsInSession(slots []models.PhysicalSlot, sessionIndex int) []models.PhysicalSlot {
	var out []models.PhysicalSlot
	for _, s := range slots {
		if s.SessionIndex == sessionIndex {
			out = append(out, s)
		}
	}
	return out
}

func sessionTimes(slots []models.PhysicalSlot) []time.Time {
	times := make([]time.Time, len(slots))
	for i, s := range slots {
		times[i] = s.Time
	}
	return times
}

func sessionTimeAt(slots []models.PhysicalSlot, stepMinutes, sessionRelativeIndex int) time.Time {
	if sessionRelativeIndex < len(slots) {
		return slots[sessionRelativeIndex].Time
	}
	last := slots[len(slots)-1].Time
	step := time.Duration(stepMinutes) * time.Minute
	return last.Add(time.Duration(sessionRelativeIndex-len(slots)+1) * step)
}

// buildOccupants maps existing active appointments plus the session's
// reserved-for-walk-in band into the walk-in scheduler's occupancy
// input, all in session-relative positions.
func buildOccupants(existing []models.Appointment, sessionStart int, capResult capacity.Result) []walkin.OccupantEntry {
	var occupants []walkin.OccupantEntry
	for _, appt := range existing {
		rel := appt.SlotIndex - sessionStart
		if rel < 0 {
			continue
		}
		tag := walkin.TagShiftable
		switch {
		case appt.IsBreakBlock():
			tag = walkin.TagBreak
		case appt.BookedVia == models.BookedViaWalkIn:
			tag = walkin.TagWalkIn
		}
		occupants = append(occupants, walkin.OccupantEntry{SlotIndex: rel, Tag: tag, ID: appt.ID})
	}
	for absIdx := range capResult.ReservedIndices {
		rel := absIdx - sessionStart
		if rel < 0 {
			continue
		}
		occupants = append(occupants, walkin.OccupantEntry{SlotIndex: rel, Tag: walkin.TagReserved, ID: "__reserved_"})
	}
	return occupants
}

func occupantIDAt(existing []models.Appointment, sessionStart, relIndex int) (string, bool) {
	for _, appt := range existing {
		if appt.SlotIndex-sessionStart == relIndex {
			return appt.ID, true
		}
	}
	return "", false
}
