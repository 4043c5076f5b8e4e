// File: bloomify/models/counter.go
package models

import "strconv"

// CounterKind distinguishes the three TokenCounter namespaces named in
// §3. Modeled as an enum rather than a string suffix per DESIGN NOTES.
type CounterKind string

const (
	CounterAdvance      CounterKind = "advance"
	CounterWalkIn       CounterKind = "walk-in"
	CounterClassicPerSession CounterKind = "classic-per-session"
)

// TokenCounter is a monotonic per-(clinic,doctor,date,kind) counter,
// mutated only inside a transaction. Advance tokens never read it
// (numericToken derives from slotIndex); it backs walk-in numbering and
// the classic per-session token.
type TokenCounter struct {
	ID       string      `bson:"id" json:"id"`
	ClinicID string      `bson:"clinicId" json:"clinicId"`
	DoctorID string      `bson:"doctorId" json:"doctorId"`
	Date     string      `bson:"date" json:"date"`
	Kind     CounterKind `bson:"kind" json:"kind"`
	SessionIndex *int     `bson:"sessionIndex,omitempty" json:"sessionIndex,omitempty"` // classic-per-session only
	Value    int         `bson:"value" json:"value"`
}

// CounterID builds the §6 counter doc id:
// clinicId_doctorName_date with optional _W / _{sessionIndex} suffix.
func CounterID(clinicID, doctorName, date string, kind CounterKind, sessionIndex *int) string {
	base := clinicID + "_" + doctorName + "_" + date
	switch kind {
	case CounterWalkIn:
		return base + "_W"
	case CounterClassicPerSession:
		if sessionIndex != nil {
			return base + "_" + strconv.Itoa(*sessionIndex)
		}
		return base
	default:
		return base
	}
}

// ConsultationCounterID builds the doc id for a (clinic, doctor, date,
// sessionIndex) consultation counter, following the same
// underscore-joined convention as CounterID.
func ConsultationCounterID(clinicID, doctorID, date string, sessionIndex int) string {
	return clinicID + "_" + doctorID + "_" + date + "_" + strconv.Itoa(sessionIndex)
}

// ConsultationCounter counts Completed appointments per (clinic, doctor,
// date, sessionIndex); incremented each time C5 marks a row Completed.
type ConsultationCounter struct {
	ID           string `bson:"id" json:"id"`
	ClinicID     string `bson:"clinicId" json:"clinicId"`
	DoctorID     string `bson:"doctorId" json:"doctorId"`
	Date         string `bson:"date" json:"date"`
	SessionIndex int    `bson:"sessionIndex" json:"sessionIndex"`
	Completed    int    `bson:"completed" json:"completed"`
}
