// File: bloomify/models/appointment.go
package models

import "time"

// BookedVia records which channel created the appointment.
type BookedVia string

const (
	BookedViaAdvance    BookedVia = "Advance"
	BookedViaWalkIn     BookedVia = "Walk-in"
	BookedViaBreakBlock BookedVia = "BreakBlock"
)

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusSkipped   AppointmentStatus = "Skipped"
	StatusCompleted AppointmentStatus = "Completed"
	StatusNoShow    AppointmentStatus = "No-show"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// IsTerminal reports whether the appointment can no longer change state.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusNoShow, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the appointment still occupies a live queue slot.
func (s AppointmentStatus) IsActive() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSkipped:
		return true
	default:
		return false
	}
}

// Appointment is the central scheduling record. Created and mutated only
// by the transactional allocator (C5) and the break service (C7).
type Appointment struct {
	ID                 string            `bson:"id" json:"id"`
	ClinicID           string            `bson:"clinicId" json:"clinicId"`
	DoctorID           string            `bson:"doctorId" json:"doctorId"`
	Date               string            `bson:"date" json:"date"` // yyyy-MM-dd
	Time               time.Time         `bson:"time" json:"time"`
	ArriveByTime       time.Time         `bson:"arriveByTime" json:"arriveByTime"`
	PatientID          string            `bson:"patientId" json:"patientId"`
	BookedVia          BookedVia         `bson:"bookedVia" json:"bookedVia"`
	Status             AppointmentStatus `bson:"status" json:"status"`
	SlotIndex          int               `bson:"slotIndex" json:"slotIndex"`
	SessionIndex       int               `bson:"sessionIndex" json:"sessionIndex"`
	NumericToken       int               `bson:"numericToken" json:"numericToken"`
	TokenNumber        string            `bson:"tokenNumber" json:"tokenNumber"`
	ClassicTokenNumber string            `bson:"classicTokenNumber,omitempty" json:"classicTokenNumber,omitempty"`
	CancelledByBreak   bool              `bson:"cancelledByBreak" json:"cancelledByBreak"`
	IsInBuffer         bool              `bson:"isInBuffer" json:"isInBuffer"`
	IsForceBooked      bool              `bson:"isForceBooked" json:"isForceBooked"`
	CutOffTime         time.Time         `bson:"cutOffTime" json:"cutOffTime"`
	NoShowTime         time.Time         `bson:"noShowTime" json:"noShowTime"`

	ReminderEveningSent bool `bson:"reminderEveningSent" json:"reminderEveningSent"`
	ReminderMorningSent bool `bson:"reminderMorningSent" json:"reminderMorningSent"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsBreakBlock reports whether this row is a dummy break occupant.
func (a Appointment) IsBreakBlock() bool {
	return a.BookedVia == BookedViaBreakBlock
}

// CutOffAndNoShow derives the two offset fields from a slot time, per §3.
func CutOffAndNoShow(slotTime time.Time) (cutOff, noShow time.Time) {
	return slotTime.Add(-15 * time.Minute), slotTime.Add(15 * time.Minute)
}
