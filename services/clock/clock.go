// Package clock implements C1: every "now/date/time" decision in the
// scheduler flows through here, so that comparisons never mix zones.
package clock

import (
	"fmt"
	"time"

	"bloomify/services/scheduleerr"
)

const (
	dateLayout = "2006-01-02"
	// displayDateLayout renders "4 January 2026" (§6: "d MMMM yyyy").
	displayDateLayout = "2 January 2006"
	// displayTimeLayout renders "02:30 PM" (§6: "hh:mm AM/PM" with leading zero).
	displayTimeLayout = "03:04 PM"
)

// Clock produces clinic-local time values in a fixed IANA zone.
type Clock struct {
	loc *time.Location
}

// New builds a Clock for the given IANA zone name (default Asia/Kolkata
// is the caller's responsibility to pass when config is empty).
func New(zoneName string) (*Clock, error) {
	if zoneName == "" {
		zoneName = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("clock: unknown timezone %q: %w", zoneName, err)
	}
	return &Clock{loc: loc}, nil
}

// Now returns the current wall-clock instant in the clinic's zone.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clinic's IANA location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Weekday renders the clinic-local day of week (0=Sunday..6=Saturday)
// for a given instant.
func (c *Clock) Weekday(t time.Time) int {
	return int(t.In(c.loc).Weekday())
}

// FormatDate renders "d MMMM yyyy", e.g. "4 January 2026".
func (c *Clock) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(displayDateLayout)
}

// FormatISODate renders "yyyy-MM-dd".
func (c *Clock) FormatISODate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// FormatTime renders "hh:mm AM/PM" with a leading zero, e.g. "02:30 PM".
func (c *Clock) FormatTime(t time.Time) string {
	return t.In(c.loc).Format(displayTimeLayout)
}

// ParseISODate parses a "yyyy-MM-dd" string into a clinic-local midnight
// instant.
func (c *Clock) ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, invalidInput("could not parse ISO date %q", s)
	}
	return t, nil
}

// ParseTimeOfDay parses either "HH:MM" (24h) or "hh:mm AM/PM" (12h) on a
// given calendar date, returning the combined clinic-local instant.
func (c *Clock) ParseTimeOfDay(date time.Time, s string) (time.Time, error) {
	layouts := []string{"15:04", displayTimeLayout, "3:04 PM"}
	var lastErr error
	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, s, c.loc)
		if err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(),
				parsed.Hour(), parsed.Minute(), 0, 0, c.loc), nil
		}
		lastErr = err
	}
	return time.Time{}, invalidInputWrap(lastErr, "could not parse time of day %q", s)
}

func invalidInput(format string, args ...any) error {
	return scheduleerr.New(scheduleerr.KindInvalidInput, format, args...)
}

func invalidInputWrap(cause error, format string, args ...any) error {
	return scheduleerr.Wrap(scheduleerr.KindInvalidInput, cause, format, args...)
}
