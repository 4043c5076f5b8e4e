// Package scheduleerr defines the §7 error taxonomy shared by every
// scheduler component (C1-C9). It has no dependencies of its own so
// every layer — from the clock up to the HTTP handlers — can import it
// without creating a cycle.
package scheduleerr

import (
	"errors"
	"fmt"
)

// Kind is the §7 error taxonomy surfaced at the public API boundary.
type Kind string

const (
	KindNoWalkInSlots        Kind = "NoWalkInSlots"
	KindCapacityReached      Kind = "CapacityReached"
	KindNoCandidate          Kind = "NoCandidate"
	KindReservationConflict  Kind = "ReservationConflict"
	KindDuplicateAppointment Kind = "DuplicateAppointment"
	KindNotAvailable         Kind = "NotAvailable"
	KindInvalidBreak         Kind = "InvalidBreak"
	KindInvalidInput         Kind = "InvalidInput"
	KindTimeout              Kind = "Timeout"
	KindPermissionDenied     Kind = "PermissionDenied"
	KindUnknown              Kind = "Unknown"
)

// Error is the typed error every public C2-C9 operation returns,
// generalizing the teacher's MatchError (Code/Message) into the full
// §7 taxonomy with an unwrap-capable cause, in the style of
// region23-queue's BotError (Code/Message/Err/Unwrap).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &Error{Kind: X}) work by comparing kinds only.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New builds a bare Error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
