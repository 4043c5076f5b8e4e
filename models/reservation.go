// File: bloomify/models/reservation.go
package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReservationStatus is the lifecycle of a SlotReservation document.
type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "reserved"
	ReservationBooked   ReservationStatus = "booked"
)

// StaleReservationAge is the §3 rule: a reservation not yet transitioned
// to booked within this window is considered abandoned.
const StaleReservationAge = 30 * time.Second

// SlotReservation is the single-document race primitive that makes "who
// gets this slot" atomic under the store's optimistic transactions.
type SlotReservation struct {
	ID           string            `bson:"id" json:"id"`
	ReservedAt   time.Time         `bson:"reservedAt" json:"reservedAt"`
	ReservedBy   string            `bson:"reservedBy" json:"reservedBy"`
	Status       ReservationStatus `bson:"status" json:"status"`
	AppointmentID string           `bson:"appointmentId" json:"appointmentId"`
}

// IsStale reports whether a still-"reserved" reservation is older than
// StaleReservationAge as of now.
func (r SlotReservation) IsStale(now time.Time) bool {
	return r.Status == ReservationReserved && now.Sub(r.ReservedAt) > StaleReservationAge
}

var reservationIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ReservationID builds the alphanumeric+underscore doc id named in §6:
// clinicId_doctorName_date_slot_{idx}.
func ReservationID(clinicID, doctorName, date string, slotIndex int) string {
	raw := clinicID + "_" + doctorName + "_" + date + "_slot_" + strconv.Itoa(slotIndex)
	raw = strings.Join(strings.Fields(raw), "_")
	return reservationIDSanitizer.ReplaceAllString(raw, "")
}
