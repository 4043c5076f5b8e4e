package queue

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

func TestProject_AdvancedOrdering(t *testing.T) {
	appointments := []models.Appointment{
		{ID: "b", Status: models.StatusConfirmed, SessionIndex: 0, SlotIndex: 3},
		{ID: "a", Status: models.StatusConfirmed, SessionIndex: 0, SlotIndex: 1},
	}
	state := Project(appointments, models.DistributionAdvanced, models.StatusIn, 0, 15, at(t, "10:00"))
	if len(state.ArrivedQueue) != 2 || state.ArrivedQueue[0].ID != "a" {
		t.Fatalf("expected a before b, got %+v", state.ArrivedQueue)
	}
}

func TestProject_ClassicOrdering(t *testing.T) {
	appointments := []models.Appointment{
		{ID: "b", Status: models.StatusConfirmed, ClassicTokenNumber: "003"},
		{ID: "a", Status: models.StatusConfirmed, ClassicTokenNumber: "001"},
	}
	state := Project(appointments, models.DistributionClassic, models.StatusIn, 0, 15, at(t, "10:00"))
	if state.ArrivedQueue[0].ID != "a" {
		t.Fatalf("expected a before b, got %+v", state.ArrivedQueue)
	}
}

func TestProject_CurrentConsultationIsBufferHead(t *testing.T) {
	appointments := []models.Appointment{
		{ID: "a", Status: models.StatusConfirmed, SlotIndex: 0, IsInBuffer: true},
		{ID: "b", Status: models.StatusConfirmed, SlotIndex: 1, IsInBuffer: true},
	}
	state := Project(appointments, models.DistributionAdvanced, models.StatusIn, 0, 15, at(t, "10:00"))
	if state.CurrentConsultation == nil || state.CurrentConsultation.ID != "a" {
		t.Fatalf("expected current consultation to be buffer head a, got %+v", state.CurrentConsultation)
	}
}

func TestProject_NextBreakDurationOnlyWhenOut(t *testing.T) {
	breakRow := models.Appointment{
		ID: "brk", Status: models.StatusCompleted, BookedVia: models.BookedViaBreakBlock,
		Time: at(t, "10:00"),
	}

	out := Project([]models.Appointment{breakRow}, models.DistributionAdvanced, models.StatusOut, 0, 15, at(t, "10:05"))
	if out.NextBreakDurationMinutes == nil || *out.NextBreakDurationMinutes != 10 {
		t.Fatalf("expected 10 minutes remaining, got %v", out.NextBreakDurationMinutes)
	}

	in := Project([]models.Appointment{breakRow}, models.DistributionAdvanced, models.StatusIn, 0, 15, at(t, "10:05"))
	if in.NextBreakDurationMinutes != nil {
		t.Fatalf("expected nil when doctor is In, got %v", in.NextBreakDurationMinutes)
	}
}

func TestProject_NextBreakDurationSpansContiguousRun(t *testing.T) {
	breaks := []models.Appointment{
		{ID: "b1", BookedVia: models.BookedViaBreakBlock, Time: at(t, "10:00")},
		{ID: "b2", BookedVia: models.BookedViaBreakBlock, Time: at(t, "10:15")},
	}
	state := Project(breaks, models.DistributionAdvanced, models.StatusOut, 0, 15, at(t, "10:20"))
	if state.NextBreakDurationMinutes == nil || *state.NextBreakDurationMinutes != 10 {
		t.Fatalf("expected 10 minutes remaining across the contiguous run, got %v", state.NextBreakDurationMinutes)
	}
}
