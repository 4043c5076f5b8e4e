package capacity

import (
	"testing"
	"time"

	"bloomify/models"
)

func futureSlots(n int, sessionIndex int, start time.Time, step time.Duration) []models.PhysicalSlot {
	slots := make([]models.PhysicalSlot, n)
	for i := 0; i < n; i++ {
		slots[i] = models.PhysicalSlot{AbsoluteIndex: i, SessionIndex: sessionIndex, Time: start.Add(time.Duration(i) * step)}
	}
	return slots
}

func TestComputeSession_SplitsCloseTo85Percent(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	slots := futureSlots(20, 0, start, 15*time.Minute)

	res := ComputeSession(0, slots, now)
	if res.AdvanceCapacity+res.WalkInCapacity != res.FutureSlotCount {
		t.Fatalf("advance+walkin capacity must add up to future count: %d+%d != %d", res.AdvanceCapacity, res.WalkInCapacity, res.FutureSlotCount)
	}
	// 20*0.85 = 17 exactly.
	if res.AdvanceCapacity != 17 {
		t.Fatalf("expected advance capacity 17, got %d", res.AdvanceCapacity)
	}
	if res.WalkInCapacity != 3 {
		t.Fatalf("expected walk-in capacity 3, got %d", res.WalkInCapacity)
	}
}

func TestComputeSession_TiesRoundToFloor(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	// 10 slots: 10*0.85 = 8.5, exactly a tie -> floor to 8.
	slots := futureSlots(10, 0, start, 15*time.Minute)

	res := ComputeSession(0, slots, now)
	if res.AdvanceCapacity != 8 {
		t.Fatalf("expected tie to round down to 8, got %d", res.AdvanceCapacity)
	}
}

func TestComputeSession_WalkInCapacityNeverZero(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	// 1 slot: 85% rounds to 1, which would leave 0 walk-in capacity.
	slots := futureSlots(1, 0, start, 15*time.Minute)

	res := ComputeSession(0, slots, now)
	if res.WalkInCapacity < 1 {
		t.Fatalf("expected walk-in capacity to floor at 1, got %d", res.WalkInCapacity)
	}
	if res.AdvanceCapacity+res.WalkInCapacity != res.FutureSlotCount {
		t.Fatalf("advance+walkin capacity must still add up to future count")
	}
}

func TestComputeSession_ReservedIndicesAreTheLastFutureSlots(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	slots := futureSlots(20, 0, start, 15*time.Minute)

	res := ComputeSession(0, slots, now)
	for i, s := range slots {
		wantReserved := i >= 20-3
		if res.ReservedIndices[s.AbsoluteIndex] != wantReserved {
			t.Fatalf("slot %d: reserved=%v, want %v", i, res.ReservedIndices[s.AbsoluteIndex], wantReserved)
		}
	}
}

func TestComputeSession_IgnoresPastSlots(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	past := futureSlots(5, 0, now.Add(-2*time.Hour), 15*time.Minute)
	future := futureSlots(5, 0, now.Add(time.Hour), 15*time.Minute)
	for i := range future {
		future[i].AbsoluteIndex = 5 + i
	}
	all := append(past, future...)

	res := ComputeSession(0, all, now)
	if res.FutureSlotCount != 5 {
		t.Fatalf("expected only the 5 future slots counted, got %d", res.FutureSlotCount)
	}
}

func TestCompute_GroupsBySession(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(time.Hour)
	var slots []models.PhysicalSlot
	slots = append(slots, futureSlots(4, 0, start, 15*time.Minute)...)
	more := futureSlots(6, 1, start.Add(2*time.Hour), 15*time.Minute)
	for i := range more {
		more[i].AbsoluteIndex = 4 + i
	}
	slots = append(slots, more...)

	results := Compute(slots, now)
	if len(results) != 2 {
		t.Fatalf("expected 2 session results, got %d", len(results))
	}
	if results[0].SessionIndex != 0 || results[0].FutureSlotCount != 4 {
		t.Fatalf("unexpected session 0 result: %+v", results[0])
	}
	if results[1].SessionIndex != 1 || results[1].FutureSlotCount != 6 {
		t.Fatalf("unexpected session 1 result: %+v", results[1])
	}
}
