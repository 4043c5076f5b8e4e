// Package queue implements C6: the read-side projection from stored
// appointment rows into the live queue view, consumed by the UI and by
// the notification dispatcher.
package queue

import (
	"math"
	"sort"
	"time"

	"bloomify/models"
)

// Comparator orders two appointments within one session's queue. Both
// the classic and advanced modes must produce a total order (§4.6).
type Comparator func(a, b models.Appointment) bool

// AdvancedComparator orders by (sessionIndex asc, slotIndex asc), with
// ID as a final tiebreak so the order is total even for rows sharing a
// slot (e.g. mid-rebalance).
func AdvancedComparator(a, b models.Appointment) bool {
	if a.SessionIndex != b.SessionIndex {
		return a.SessionIndex < b.SessionIndex
	}
	if a.SlotIndex != b.SlotIndex {
		return a.SlotIndex < b.SlotIndex
	}
	return a.ID < b.ID
}

// ClassicComparator orders by classic token number, falling back to ID
// when the classic token is blank or ties (it shouldn't, per-session).
func ClassicComparator(a, b models.Appointment) bool {
	if a.ClassicTokenNumber != b.ClassicTokenNumber {
		return a.ClassicTokenNumber < b.ClassicTokenNumber
	}
	return a.ID < b.ID
}

// ComparatorFor selects the comparator for a clinic's token distribution
// mode (DESIGN NOTES: "encode mode as a tagged variant carrying its
// comparator").
func ComparatorFor(mode models.TokenDistributionMode) Comparator {
	if mode == models.DistributionClassic {
		return ClassicComparator
	}
	return AdvancedComparator
}

// Project builds the QueueState for one (doctor, date, sessionIndex)
// from every appointment row in that session, per §4.6. stepMinutes is
// the doctor's consult length, used to find where a break run ends.
func Project(appointments []models.Appointment, mode models.TokenDistributionMode, doctorStatus models.ConsultationStatus, consultationCount, stepMinutes int, now time.Time) models.QueueState {
	cmp := ComparatorFor(mode)

	var arrived, skipped, buffer []models.Appointment
	var breaks []models.Appointment
	for _, appt := range appointments {
		switch appt.Status {
		case models.StatusConfirmed:
			arrived = append(arrived, appt)
		case models.StatusSkipped:
			skipped = append(skipped, appt)
		}
		if appt.IsInBuffer {
			buffer = append(buffer, appt)
		}
		if appt.IsBreakBlock() {
			breaks = append(breaks, appt)
		}
	}

	sortByComparator(arrived, cmp)
	sortByComparator(skipped, cmp)
	sortByComparator(buffer, cmp)

	state := models.QueueState{
		ArrivedQueue:      arrived,
		BufferQueue:       buffer,
		SkippedQueue:      skipped,
		ConsultationCount: consultationCount,
	}
	if len(buffer) > 0 {
		head := buffer[0]
		state.CurrentConsultation = &head
	}

	if doctorStatus == models.StatusOut {
		state.NextBreakDurationMinutes = remainingBreakMinutes(breaks, stepMinutes, now)
	}

	return state
}

func sortByComparator(appointments []models.Appointment, cmp Comparator) {
	sort.SliceStable(appointments, func(i, j int) bool {
		return cmp(appointments[i], appointments[j])
	})
}

// remainingBreakMinutes finds the earliest contiguous run of BreakBlock
// rows in the session that overlaps now and returns the ceil'd minutes
// remaining until it ends, or nil if no break covers now. A run is
// contiguous when each slot's start immediately follows the previous
// one's end (one step apart).
func remainingBreakMinutes(breaks []models.Appointment, stepMinutes int, now time.Time) *int {
	if len(breaks) == 0 {
		return nil
	}
	sort.Slice(breaks, func(i, j int) bool { return breaks[i].Time.Before(breaks[j].Time) })
	step := time.Duration(stepMinutes) * time.Minute

	for i := 0; i < len(breaks); i++ {
		start := breaks[i].Time
		end := start.Add(step)
		j := i + 1
		for j < len(breaks) && breaks[j].Time.Equal(end) {
			end = end.Add(step)
			j++
		}
		if !start.After(now) && end.After(now) {
			minutes := int(math.Ceil(end.Sub(now).Minutes()))
			return &minutes
		}
		i = j - 1
	}
	return nil
}
