// Package token implements C10: shape-checked advance/walk-in token
// strings.
package token

import (
	"fmt"
	"regexp"
)

// advanceTokenPattern / walkInTokenPattern match the §6 "bit-exact"
// token string formats: A{s}-{nnn} / W{s}-{nnn}, s >= 1.
var (
	advanceTokenPattern = regexp.MustCompile(`^A(\d+)-(\d{3,})$`)
	walkInTokenPattern  = regexp.MustCompile(`^W(\d+)-(\d{3,})$`)
)

// Advance formats an advance token: "A{sessionIndex+1}-{numericToken:03}".
func Advance(sessionIndex, numericToken int) string {
	return fmt.Sprintf("A%d-%03d", sessionIndex+1, numericToken)
}

// WalkIn formats a walk-in token: "W{sessionIndex+1}-{numericToken:03}".
func WalkIn(sessionIndex, numericToken int) string {
	return fmt.Sprintf("W%d-%03d", sessionIndex+1, numericToken)
}

// Classic formats the separate zero-padded 3-digit classic token kept
// alongside the advance/walk-in token in classic-mode clinics.
func Classic(counter int) string {
	return fmt.Sprintf("%03d", counter)
}

// IsValidAdvance reports whether s matches the advance token shape.
func IsValidAdvance(s string) bool { return advanceTokenPattern.MatchString(s) }

// IsValidWalkIn reports whether s matches the walk-in token shape.
func IsValidWalkIn(s string) bool { return walkInTokenPattern.MatchString(s) }
