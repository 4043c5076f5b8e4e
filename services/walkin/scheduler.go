// Package walkin implements C4: the deterministic walk-in placement
// algorithm that slots a walk-in patient into a single session's
// occupancy array without ever moving a blocked/break/reserved cell and
// without ever reordering two advance appointments relative to each
// other.
package walkin

import (
	"time"

	"bloomify/models"
	"bloomify/services/scheduleerr"
)

// gapFillWindow bounds how far ahead of "now" the gap-fill and
// always-fill-empty passes are willing to look (§4.4).
const gapFillWindow = 60 * time.Minute

// Input is everything Schedule needs for one session. Slots/Occupants
// use session-relative positions: position 0 is the session's first
// physical slot. Occupants not listed are implicitly empty.
type Input struct {
	SlotTimes   []time.Time // session-relative index -> wall-clock time
	StepMinutes int         // consult length, used to extrapolate overflow slot times
	Now         time.Time
	Spacing     int
	Occupants   []OccupantEntry
	Candidates  []Candidate // already unsorted is fine; Schedule sorts them
}

// Shift records one advance occupant that moved to make room for a
// walk-in.
type Shift struct {
	ID        string
	FromIndex int
	ToIndex   int
}

// Assignment is where a candidate landed.
type Assignment struct {
	SlotIndex int
	Time      time.Time
}

// Result is the full outcome of one Schedule call.
type Result struct {
	Assignments map[string]Assignment
	Shifts      []Shift
}

// Schedule places every candidate into the occupancy array built from
// Slots/Occupants, applying the gap-fill, preferred-retention, spacing,
// always-fill-empty and fallback passes in order, with makeSpace doing
// the actual cascading shift. It is a pure function: no I/O, no clock
// reads beyond in.Now.
func Schedule(in Input) (Result, error) {
	occLen := len(in.SlotTimes)
	for _, o := range in.Occupants {
		if o.SlotIndex+1 > occLen {
			occLen = o.SlotIndex + 1
		}
	}
	occLen += SyntheticOverflowSlotCount(occLen)

	occ := make([]occupant, occLen)
	for _, o := range in.Occupants {
		occ[o.SlotIndex] = occupant{tag: o.Tag, id: o.ID}
	}

	timeFor := func(idx int) time.Time {
		if idx < len(in.SlotTimes) {
			return in.SlotTimes[idx]
		}
		last := in.SlotTimes[len(in.SlotTimes)-1]
		step := time.Duration(in.StepMinutes) * time.Minute
		return last.Add(time.Duration(idx-len(in.SlotTimes)+1) * step)
	}

	firstFutureIdx := 0
	for firstFutureIdx < occLen && timeFor(firstFutureIdx).Before(in.Now) {
		firstFutureIdx++
	}

	result := Result{Assignments: map[string]Assignment{}}
	lastWalkInPos := -1

	for _, cand := range SortCandidates(in.Candidates) {
		target := -1

		if t, ok := findGapFill(occ, in.Now, timeFor); ok {
			target = t
		} else if cand.PreferredSlot >= 0 {
			target = resolvePreferred(occ, lastWalkInPos, cand.PreferredSlot)
		}

		if target == -1 {
			anchor := lastWalkInPos
			if anchor < 0 {
				anchor = firstFutureIdx
			}
			target = spacingTarget(occ, anchor, in.Spacing)
		}

		if target == -1 {
			if t, ok := findEmptyInWindow(occ, in.Now, timeFor); ok {
				target = t
			}
		}

		if target == -1 {
			if t, ok := findAnyEmptyFuture(occ, in.Now, timeFor); ok {
				target = t
			}
		}

		if target == -1 {
			return result, scheduleerr.New(scheduleerr.KindNoWalkInSlots,
				"no slot available for walk-in candidate %s", cand.ID)
		}

		freed, shifts, ok := makeSpace(occ, target)
		if !ok {
			return result, scheduleerr.New(scheduleerr.KindNoWalkInSlots,
				"could not make space for walk-in candidate %s", cand.ID)
		}

		for _, sh := range shifts {
			result.Shifts = append(result.Shifts, Shift{ID: sh.id, FromIndex: sh.from, ToIndex: sh.to})
		}

		occ[freed] = occupant{tag: TagWalkIn, id: cand.ID}
		result.Assignments[cand.ID] = Assignment{SlotIndex: freed, Time: timeFor(freed)}
		lastWalkInPos = freed
	}

	return result, nil
}

// SyntheticOverflowSlotCount is how many virtual slots Schedule adds
// past the last physically- or occupant-referenced index, giving
// makeSpace room to cascade shifts beyond the end of the session
// (§4.4's "synthesizes virtual overflow slots").
func SyntheticOverflowSlotCount(baseLen int) int {
	return models.SyntheticOverflowSlots
}

// findGapFill implements pass 1: the earliest empty slot within
// [now, now+60m] that has some later occupant after it — a true hole
// left by a cancellation, as opposed to simply the unoccupied tail end
// of the session.
func findGapFill(occ []occupant, now time.Time, timeFor func(int) time.Time) (int, bool) {
	deadline := now.Add(gapFillWindow)
	for i, o := range occ {
		t := timeFor(i)
		if t.Before(now) || t.After(deadline) {
			continue
		}
		if !o.isEmpty() {
			continue
		}
		if hasLaterOccupant(occ, i) {
			return i, true
		}
	}
	return 0, false
}

func hasLaterOccupant(occ []occupant, from int) bool {
	for j := from + 1; j < len(occ); j++ {
		if !occ[j].isEmpty() {
			return true
		}
	}
	return false
}

// resolvePreferred implements pass 2: try to retain the candidate's
// previously-assigned slot via makeSpace, but prefer the slot right
// after the last walk-in if that's empty and no later than preferred
// (tighter packing after an earlier cancellation).
func resolvePreferred(occ []occupant, lastWalkInPos, preferred int) int {
	if lastWalkInPos >= 0 {
		candidate := lastWalkInPos + 1
		if candidate <= preferred && candidate < len(occ) && occ[candidate].isEmpty() {
			return candidate
		}
	}
	freed, _, ok := makeSpace(occ, preferred)
	if ok {
		return freed
	}
	return -1
}

// spacingTarget implements pass 3: keep at least Spacing advance
// appointments between consecutive walk-ins when there are enough of
// them left, otherwise land right after the last one, otherwise fall
// through to the caller's empty-slot search.
func spacingTarget(occ []occupant, anchor, spacing int) int {
	var afterAnchor []int
	for i := anchor + 1; i < len(occ); i++ {
		if occ[i].tag == TagShiftable {
			afterAnchor = append(afterAnchor, i)
		}
	}

	switch {
	case spacing > 0 && len(afterAnchor) >= spacing:
		return afterAnchor[spacing-1] + 1
	case len(afterAnchor) >= 1:
		return afterAnchor[len(afterAnchor)-1] + 1
	default:
		return -1
	}
}

// findEmptyInWindow implements pass 4: any empty slot within
// [now, now+60m], used when spacing left no target.
func findEmptyInWindow(occ []occupant, now time.Time, timeFor func(int) time.Time) (int, bool) {
	deadline := now.Add(gapFillWindow)
	for i, o := range occ {
		t := timeFor(i)
		if t.Before(now) || t.After(deadline) {
			continue
		}
		if o.isEmpty() {
			return i, true
		}
	}
	return 0, false
}

// findAnyEmptyFuture implements the final fallback: the first empty
// future slot anywhere, however far out.
func findAnyEmptyFuture(occ []occupant, now time.Time, timeFor func(int) time.Time) (int, bool) {
	for i, o := range occ {
		if timeFor(i).Before(now) {
			continue
		}
		if o.isEmpty() {
			return i, true
		}
	}
	return 0, false
}

type shiftEntry struct {
	id   string
	from int
	to   int
}

// makeSpace walks right from target: it skips over blocked/break/
// reserved cells by restarting the search beyond them, and otherwise
// collects the contiguous run of shiftable occupants starting at
// target and slides the whole run one step right into the next empty
// slot, freeing target. Returns ok=false if the occupancy array (incl.
// synthetic overflow) is exhausted before an empty slot is found.
func makeSpace(occ []occupant, target int) (freed int, shifts []shiftEntry, ok bool) {
	pos := target
	for {
		if pos < 0 || pos >= len(occ) {
			return 0, nil, false
		}
		if occ[pos].isEmpty() {
			return pos, shifts, true
		}
		if occ[pos].isImmovable() {
			pos++
			continue
		}

		runStart := pos
		scan := pos
		var run []int
		blocked := false
		for scan < len(occ) && !occ[scan].isEmpty() {
			if occ[scan].isImmovable() {
				blocked = true
				break
			}
			run = append(run, scan)
			scan++
		}
		if blocked {
			pos = scan + 1
			continue
		}
		if scan >= len(occ) {
			return 0, nil, false
		}

		for i := len(run) - 1; i >= 0; i-- {
			from := run[i]
			to := from + 1
			shifts = append(shifts, shiftEntry{id: occ[from].id, from: from, to: to})
			occ[to] = occ[from]
		}
		occ[runStart] = occupant{}
		return runStart, shifts, true
	}
}
