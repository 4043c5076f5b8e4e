// File: bloomify/models/slot.go
package models

import "time"

// PhysicalSlot is a derived (never persisted) physical time step inside a
// doctor's day. absoluteIndex is dense across every session on that day.
type PhysicalSlot struct {
	AbsoluteIndex int
	SessionIndex  int
	Time          time.Time
}

// OverflowBand is the slot-index offset used to namespace walk-in
// overtime/cross-session remaps on persisted rows (see DESIGN NOTES).
const OverflowBand = 10000

// SyntheticOverflowSlots is how many virtual slots the walk-in scheduler
// appends past the last physical slot so shift logic always has room.
const SyntheticOverflowSlots = 10
