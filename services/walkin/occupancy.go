package walkin

import "sort"

// Tag distinguishes what kind of thing, if anything, sits in a cell of
// the occupancy array (§4.4).
type Tag int

const (
	TagEmpty Tag = iota
	TagShiftable
	TagBlocked
	TagBreak
	TagReserved
	TagWalkIn
)

// occupant is one cell of the occupancy array.
type occupant struct {
	tag Tag
	id  string
}

func (o occupant) isEmpty() bool { return o.tag == TagEmpty }

func (o occupant) isImmovable() bool {
	return o.tag == TagBlocked || o.tag == TagBreak || o.tag == TagReserved
}

// OccupantEntry seeds the occupancy array with an existing occupant at a
// given (session-relative) slot position.
type OccupantEntry struct {
	SlotIndex int
	Tag       Tag
	ID        string
}

// Candidate is one walk-in awaiting placement.
type Candidate struct {
	ID           string
	NumericToken int
	CreatedAt    int64 // unix nanos; secondary sort key
	// PreferredSlot is the candidate's previously-assigned slot index, if
	// any (used by the preferred-retention pass). -1 when absent.
	PreferredSlot int
}

// SortCandidates orders candidates by (numericToken asc, createdAt asc)
// per §4.4's "sorted by" clause, deterministically.
func SortCandidates(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].NumericToken != sorted[j].NumericToken {
			return sorted[i].NumericToken < sorted[j].NumericToken
		}
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})
	return sorted
}
