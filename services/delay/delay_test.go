package delay

import (
	"testing"
	"time"

	"bloomify/models"
)

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", "2026-01-05 "+hhmm)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return parsed
}

func TestCompute_BeforeStart(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "09:55")
	if got := Compute(models.StatusIn, start, now, 0, 15, 0); got != 0 {
		t.Fatalf("expected 0 before session start, got %d", got)
	}
}

func TestCompute_NotYetStarted(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "10:20")
	if got := Compute(models.StatusOut, start, now, 0, 15, 0); got != 20 {
		t.Fatalf("expected 20 minutes behind, got %d", got)
	}
}

func TestCompute_OnPace(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "10:30")
	// 2 consults of 15 min exactly accounts for elapsed time.
	if got := Compute(models.StatusIn, start, now, 2, 15, 0); got != 0 {
		t.Fatalf("expected on pace (0 delay), got %d", got)
	}
}

func TestCompute_BehindPace(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "10:45")
	if got := Compute(models.StatusIn, start, now, 2, 15, 0); got != 15 {
		t.Fatalf("expected 15 minutes behind, got %d", got)
	}
}

func TestCompute_NeverNegative(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "10:10")
	// Ahead of pace would go negative without clamping.
	if got := Compute(models.StatusIn, start, now, 2, 15, 0); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestCompute_PassedBreakMinutesOffsetDelay(t *testing.T) {
	start := at(t, "10:00")
	now := at(t, "10:45")
	// Without the 15-minute break absorbed, this would read as 15 min
	// behind; with it, the doctor is exactly on pace.
	if got := Compute(models.StatusIn, start, now, 2, 15, 15); got != 0 {
		t.Fatalf("expected break minutes to offset delay to 0, got %d", got)
	}
}

func TestEffectiveSessionStart_AbsorbsInitialBreak(t *testing.T) {
	sessionStart := at(t, "10:00")
	breaks := []models.BreakPeriod{
		{StartTime: "10:00", EndTime: "10:15"},
	}
	parse := func(hhmm string) (time.Time, error) {
		return at(t, hhmm), nil
	}
	got := EffectiveSessionStart(sessionStart, breaks, parse)
	want := at(t, "10:15")
	if !got.Equal(want) {
		t.Fatalf("expected effective start %v, got %v", want, got)
	}
}

func TestEffectiveSessionStart_IgnoresLaterBreak(t *testing.T) {
	sessionStart := at(t, "10:00")
	breaks := []models.BreakPeriod{
		{StartTime: "11:00", EndTime: "11:15"},
	}
	parse := func(hhmm string) (time.Time, error) {
		return at(t, hhmm), nil
	}
	got := EffectiveSessionStart(sessionStart, breaks, parse)
	if !got.Equal(sessionStart) {
		t.Fatalf("expected session start unchanged, got %v", got)
	}
}
