package slotgen

import (
	"testing"
	"time"

	"bloomify/models"
	"bloomify/services/clock"
	"bloomify/services/scheduleerr"
)

func testDoctor() models.Doctor {
	return models.Doctor{
		ID:   "doc-1",
		Name: "Dr Test",
		Availability: models.WeeklyAvailability{
			1: {{From: "10:00", To: "11:00"}, {From: "14:00", To: "14:30"}},
		},
		AverageConsultMins: 15,
	}
}

func testClock(t *testing.T) *clock.Clock {
	t.Helper()
	c, err := clock.New("UTC")
	if err != nil {
		t.Fatalf("clock.New: %v", err)
	}
	return c
}

// 2026-01-05 is a Monday (weekday 1).
const testDate = "2026-01-05"

func TestGenerate_ProducesDenseAbsoluteIndex(t *testing.T) {
	c := testClock(t)
	date, err := c.ParseISODate(testDate)
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}

	slots, err := Generate(c, testDoctor(), date)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Session 0: 10:00-11:00 @ 15min = 4 slots. Session 1: 14:00-14:30 = 2 slots.
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.AbsoluteIndex != i {
			t.Fatalf("slot %d: expected absoluteIndex %d, got %d", i, i, s.AbsoluteIndex)
		}
	}
	if slots[0].SessionIndex != 0 || slots[4].SessionIndex != 1 {
		t.Fatalf("expected slots grouped into sessions 0 and 1, got %d and %d", slots[0].SessionIndex, slots[4].SessionIndex)
	}
	if !slots[0].Time.Equal(date.Add(10 * time.Hour)) {
		t.Fatalf("expected first slot at 10:00, got %v", slots[0].Time)
	}
}

func TestGenerate_AppliesSessionExtension(t *testing.T) {
	c := testClock(t)
	date, err := c.ParseISODate(testDate)
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}

	doctor := testDoctor()
	doctor.Extensions = map[string]models.DateExtensions{
		testDate: {Sessions: map[int]models.SessionExtension{0: {NewEndTime: "11:30"}}},
	}

	slots, err := Generate(c, doctor, date)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Session 0 now runs 10:00-11:30 @ 15min = 6 slots, plus 2 for session 1.
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots with the extension applied, got %d", len(slots))
	}
}

func TestGenerate_ErrorsWithNoAvailability(t *testing.T) {
	c := testClock(t)
	date, err := c.ParseISODate(testDate)
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}
	doctor := testDoctor()
	doctor.Availability = models.WeeklyAvailability{}

	_, err = Generate(c, doctor, date)
	if scheduleerr.KindOf(err) != scheduleerr.KindNotAvailable {
		t.Fatalf("expected KindNotAvailable, got %v", err)
	}
}

func TestSessionBounds_MatchesGenerateExtension(t *testing.T) {
	c := testClock(t)
	date, err := c.ParseISODate(testDate)
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}
	doctor := testDoctor()
	doctor.Extensions = map[string]models.DateExtensions{
		testDate: {Sessions: map[int]models.SessionExtension{0: {NewEndTime: "11:30"}}},
	}

	start, end, err := SessionBounds(c, doctor, date, 0)
	if err != nil {
		t.Fatalf("SessionBounds: %v", err)
	}
	if !start.Equal(date.Add(10 * time.Hour)) {
		t.Fatalf("expected start at 10:00, got %v", start)
	}
	if !end.Equal(date.Add(11*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected extended end at 11:30, got %v", end)
	}
}

func TestSessionBounds_RejectsOutOfRangeIndex(t *testing.T) {
	c := testClock(t)
	date, err := c.ParseISODate(testDate)
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}

	_, _, err = SessionBounds(c, testDoctor(), date, 5)
	if scheduleerr.KindOf(err) != scheduleerr.KindInvalidInput {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}
