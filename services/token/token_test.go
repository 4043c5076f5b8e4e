package token

import "testing"

func TestAdvance_FormatsSessionAndTokenOneIndexed(t *testing.T) {
	if got := Advance(0, 7); got != "A1-007" {
		t.Fatalf("expected A1-007, got %s", got)
	}
	if got := Advance(2, 123); got != "A3-123" {
		t.Fatalf("expected A3-123, got %s", got)
	}
}

func TestWalkIn_FormatsSessionAndTokenOneIndexed(t *testing.T) {
	if got := WalkIn(0, 7); got != "W1-007" {
		t.Fatalf("expected W1-007, got %s", got)
	}
	if got := WalkIn(1, 4200); got != "W2-4200" {
		t.Fatalf("expected W2-4200, got %s", got)
	}
}

func TestClassic_ZeroPadsToThreeDigits(t *testing.T) {
	if got := Classic(5); got != "005" {
		t.Fatalf("expected 005, got %s", got)
	}
	if got := Classic(1234); got != "1234" {
		t.Fatalf("expected 1234 unpadded beyond 3 digits, got %s", got)
	}
}

func TestIsValidAdvance(t *testing.T) {
	if !IsValidAdvance("A1-007") {
		t.Fatalf("expected A1-007 to be a valid advance token")
	}
	if IsValidAdvance("W1-007") {
		t.Fatalf("expected a walk-in token to be rejected as an advance token")
	}
	if IsValidAdvance("A1-7") {
		t.Fatalf("expected a non-zero-padded token to be rejected")
	}
}

func TestIsValidWalkIn(t *testing.T) {
	if !IsValidWalkIn("W2-042") {
		t.Fatalf("expected W2-042 to be a valid walk-in token")
	}
	if IsValidWalkIn("A2-042") {
		t.Fatalf("expected an advance token to be rejected as a walk-in token")
	}
}
