package walkin

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, layout, value string) time.Time {
	t.Helper()
	tm, err := time.Parse(layout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return tm
}

func sessionTimes(t *testing.T, start string, count int, stepMinutes int) []time.Time {
	t.Helper()
	base := mustParse(t, "2006-01-02 15:04", "2026-01-05 "+start)
	times := make([]time.Time, count)
	for i := 0; i < count; i++ {
		times[i] = base.Add(time.Duration(i*stepMinutes) * time.Minute)
	}
	return times
}

func shiftableOccupants(ids ...string) []OccupantEntry {
	entries := make([]OccupantEntry, len(ids))
	for i, id := range ids {
		entries[i] = OccupantEntry{SlotIndex: i, Tag: TagShiftable, ID: id}
	}
	return entries
}

// TestSchedule_GapFill covers scenario S3: a cancellation leaves a true
// hole (slot 1) between two occupied slots, and the next walk-in lands
// there directly rather than at the tail.
func TestSchedule_GapFill(t *testing.T) {
	times := sessionTimes(t, "10:00", 4, 15)
	now := mustParse(t, "2006-01-02 15:04", "2026-01-05 10:05")

	in := Input{
		SlotTimes:   times,
		StepMinutes: 15,
		Now:         now,
		Spacing:     2,
		Occupants: []OccupantEntry{
			{SlotIndex: 0, Tag: TagShiftable, ID: "adv-0"},
			{SlotIndex: 2, Tag: TagShiftable, ID: "adv-2"},
			{SlotIndex: 3, Tag: TagShiftable, ID: "adv-3"},
		},
		Candidates: []Candidate{
			{ID: "walkin-1", NumericToken: 1, CreatedAt: 1, PreferredSlot: -1},
		},
	}

	res, err := Schedule(in)
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	got, ok := res.Assignments["walkin-1"]
	if !ok {
		t.Fatalf("walkin-1 not assigned")
	}
	if got.SlotIndex != 1 {
		t.Fatalf("expected slot 1 (the true hole), got %d", got.SlotIndex)
	}
	if len(res.Shifts) != 0 {
		t.Fatalf("gap-fill into an empty slot should not shift anything, got %v", res.Shifts)
	}
}

// TestSchedule_Spacing covers scenario S4: with no prior walk-in and
// spacing 2, the walk-in must land two advance occupants past the
// first future slot, shifting everything from there onward right by
// one.
func TestSchedule_Spacing(t *testing.T) {
	times := sessionTimes(t, "10:00", 8, 15)
	now := mustParse(t, "2006-01-02 15:04", "2026-01-05 10:00")

	in := Input{
		SlotTimes:   times,
		StepMinutes: 15,
		Now:         now,
		Spacing:     2,
		Occupants:   shiftableOccupants("adv-0", "adv-1", "adv-2", "adv-3", "adv-4", "adv-5"),
		Candidates: []Candidate{
			{ID: "walkin-1", NumericToken: 1, CreatedAt: 1, PreferredSlot: -1},
		},
	}

	res, err := Schedule(in)
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	got := res.Assignments["walkin-1"]
	if got.SlotIndex != 3 {
		t.Fatalf("expected slot 3, got %d", got.SlotIndex)
	}

	wantShifts := map[string]int{"adv-3": 4, "adv-4": 5, "adv-5": 6}
	if len(res.Shifts) != len(wantShifts) {
		t.Fatalf("expected %d shifts, got %d: %+v", len(wantShifts), len(res.Shifts), res.Shifts)
	}
	for _, sh := range res.Shifts {
		wantTo, ok := wantShifts[sh.ID]
		if !ok {
			t.Fatalf("unexpected shift of %s", sh.ID)
		}
		if sh.ToIndex != wantTo {
			t.Fatalf("shift of %s: expected to index %d, got %d", sh.ID, wantTo, sh.ToIndex)
		}
	}
}

// TestSchedule_NeverMovesImmovables checks P1: blocked/break/reserved
// cells never appear in the shift list and never change identity.
func TestSchedule_NeverMovesImmovables(t *testing.T) {
	times := sessionTimes(t, "10:00", 6, 15)
	now := mustParse(t, "2006-01-02 15:04", "2026-01-05 10:00")

	in := Input{
		SlotTimes:   times,
		StepMinutes: 15,
		Now:         now,
		Spacing:     1,
		Occupants: []OccupantEntry{
			{SlotIndex: 0, Tag: TagShiftable, ID: "adv-0"},
			{SlotIndex: 1, Tag: TagReserved, ID: "__reserved_"},
			{SlotIndex: 2, Tag: TagShiftable, ID: "adv-2"},
		},
		Candidates: []Candidate{
			{ID: "walkin-1", NumericToken: 1, CreatedAt: 1, PreferredSlot: -1},
		},
	}

	res, err := Schedule(in)
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	for _, sh := range res.Shifts {
		if sh.ID == "__reserved_" {
			t.Fatalf("reserved occupant must never move")
		}
	}
	got := res.Assignments["walkin-1"]
	if got.SlotIndex == 1 {
		t.Fatalf("walk-in must not land on the reserved slot")
	}
}

// TestSchedule_CapacityExhausted checks that Schedule fails cleanly
// once the occupancy array, including its synthetic overflow band, has
// no empty slot left for a candidate.
func TestSchedule_CapacityExhausted(t *testing.T) {
	const count = 4
	times := sessionTimes(t, "10:00", count, 15)
	now := mustParse(t, "2006-01-02 15:04", "2026-01-05 09:00")

	// occLen = max(4, 4) + 10 synthetic overflow slots = 14, so there
	// are exactly 10 empty future slots (indices 4..13) once 0..3 are
	// taken by advances. Requesting 11 walk-ins in one call must fail.
	occupants := shiftableOccupants("adv-0", "adv-1", "adv-2", "adv-3")

	var candidates []Candidate
	for i := 0; i < 11; i++ {
		candidates = append(candidates, Candidate{
			ID:            "walkin-" + string(rune('A'+i)),
			NumericToken:  i + 1,
			CreatedAt:     int64(i),
			PreferredSlot: -1,
		})
	}

	in := Input{
		SlotTimes:   times,
		StepMinutes: 15,
		Now:         now,
		Spacing:     1,
		Occupants:   occupants,
		Candidates:  candidates,
	}

	if _, err := Schedule(in); err == nil {
		t.Fatalf("expected an error once the occupancy array (incl. overflow) is exhausted")
	}
}

// TestSortCandidates checks the (numericToken asc, createdAt asc)
// ordering rule, including the createdAt tiebreak.
func TestSortCandidates(t *testing.T) {
	in := []Candidate{
		{ID: "b", NumericToken: 2, CreatedAt: 1},
		{ID: "a", NumericToken: 1, CreatedAt: 2},
		{ID: "c", NumericToken: 1, CreatedAt: 1},
	}
	got := SortCandidates(in)
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}
