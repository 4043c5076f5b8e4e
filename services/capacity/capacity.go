// Package capacity implements C3: the per-session advance/walk-in split
// and the reserved-for-walk-in index set, both recomputed against the
// current wall time on every call.
package capacity

import (
	"math"
	"time"

	"bloomify/models"
)

// AdvanceRatio is the 85% advance/15% walk-in split named in §1/§4.3.
const AdvanceRatio = 0.85

// Result is the per-session capacity split.
type Result struct {
	SessionIndex     int
	FutureSlotCount  int
	AdvanceCapacity  int
	WalkInCapacity   int
	ReservedIndices  map[int]bool // absolute slot index -> reserved-for-walk-in
}

// Compute partitions slots (one doctor's full day) into per-session
// results, counting only slots with Time >= now as "future".
func Compute(slots []models.PhysicalSlot, now time.Time) []Result {
	bySession := map[int][]models.PhysicalSlot{}
	var order []int
	for _, s := range slots {
		if _, ok := bySession[s.SessionIndex]; !ok {
			order = append(order, s.SessionIndex)
		}
		bySession[s.SessionIndex] = append(bySession[s.SessionIndex], s)
	}

	results := make([]Result, 0, len(order))
	for _, sessionIndex := range order {
		results = append(results, computeSession(sessionIndex, bySession[sessionIndex], now))
	}
	return results
}

// ComputeSession computes the split for a single session's slots (all
// slots must share the same SessionIndex).
func ComputeSession(sessionIndex int, sessionSlots []models.PhysicalSlot, now time.Time) Result {
	return computeSession(sessionIndex, sessionSlots, now)
}

func computeSession(sessionIndex int, sessionSlots []models.PhysicalSlot, now time.Time) Result {
	var future []models.PhysicalSlot
	for _, s := range sessionSlots {
		if !s.Time.Before(now) {
			future = append(future, s)
		}
	}

	total := len(future)
	res := Result{
		SessionIndex:    sessionIndex,
		FutureSlotCount: total,
		ReservedIndices: map[int]bool{},
	}
	if total == 0 {
		return res
	}

	advanceCapacity := closestTo85Percent(total)
	walkInCapacity := total - advanceCapacity
	if walkInCapacity < 1 {
		walkInCapacity = 1
		advanceCapacity = total - walkInCapacity
	}
	res.AdvanceCapacity = advanceCapacity
	res.WalkInCapacity = walkInCapacity

	// Reserved-for-walk-in band: the last 15% of future slots in this
	// session (§4.3, §Glossary).
	reservedCount := int(math.Ceil(float64(total) * (1 - AdvanceRatio)))
	if reservedCount < 1 {
		reservedCount = 1
	}
	if reservedCount > total {
		reservedCount = total
	}
	for i := total - reservedCount; i < total; i++ {
		res.ReservedIndices[future[i].AbsoluteIndex] = true
	}

	return res
}

// closestTo85Percent rounds total*0.85 to the nearest integer, ties
// going to floor, per §4.3's "closest to 85%, tie -> floor" rule.
func closestTo85Percent(total int) int {
	raw := float64(total) * AdvanceRatio
	floor := math.Floor(raw)
	ceil := math.Ceil(raw)
	if raw-floor <= ceil-raw {
		return int(floor)
	}
	return int(ceil)
}
