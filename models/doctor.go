// File: bloomify/models/doctor.go
package models

// ConsultationStatus tracks whether a doctor is currently seeing patients.
type ConsultationStatus string

const (
	StatusIn  ConsultationStatus = "In"
	StatusOut ConsultationStatus = "Out"
)

// Session is a contiguous consultation window on a given weekday,
// expressed as clinic-local "HH:MM" time-of-day strings so it survives
// JSON/bson round trips without timezone ambiguity.
type Session struct {
	From string `bson:"from" json:"from"` // "10:00"
	To   string `bson:"to" json:"to"`     // "13:00"
}

// WeeklyAvailability maps weekday (0=Sunday..6=Saturday) to its ordered,
// non-overlapping sessions.
type WeeklyAvailability map[int][]Session

// SessionExtension overrides one session's end time for one calendar date.
type SessionExtension struct {
	NewEndTime string `bson:"newEndTime" json:"newEndTime"`
}

// DateExtensions holds the per-session extensions for a single date.
type DateExtensions struct {
	Sessions map[int]SessionExtension `bson:"sessions" json:"sessions"`
}

// Doctor is the scheduling subject: one doctor has one slot timeline per
// calendar date, derived from WeeklyAvailability plus any date-specific
// overrides.
type Doctor struct {
	ID                 string                    `bson:"id" json:"id"`
	ClinicID           string                    `bson:"clinicId" json:"clinicId"`
	Name               string                    `bson:"name" json:"name"`
	Availability       WeeklyAvailability        `bson:"availability" json:"availability"`
	AverageConsultMins int                       `bson:"averageConsultationMinutes" json:"averageConsultationMinutes"` // D, default 15
	BreakPeriods       map[string][]BreakPeriod  `bson:"breakPeriods" json:"breakPeriods"`                           // date -> breaks
	Extensions         map[string]DateExtensions `bson:"availabilityExtensions" json:"availabilityExtensions"`       // date -> extensions
	Status             ConsultationStatus        `bson:"consultationStatus" json:"consultationStatus"`
	FreeFollowUpDays    *int                     `bson:"freeFollowUpDays,omitempty" json:"freeFollowUpDays,omitempty"`
}

// EffectiveConsultMinutes defaults to 15 when unset.
func (d Doctor) EffectiveConsultMinutes() int {
	if d.AverageConsultMins <= 0 {
		return 15
	}
	return d.AverageConsultMins
}

// SessionsOn returns the ordered sessions configured for a weekday.
func (d Doctor) SessionsOn(weekday int) []Session {
	return d.Availability[weekday]
}

// ExtensionFor returns the (possibly absent) extension for a session on a date.
func (d Doctor) ExtensionFor(date string, sessionIndex int) (SessionExtension, bool) {
	de, ok := d.Extensions[date]
	if !ok {
		return SessionExtension{}, false
	}
	ext, ok := de.Sessions[sessionIndex]
	return ext, ok
}

// BreaksOn returns the breaks configured for a date, ordered by session then start.
func (d Doctor) BreaksOn(date string) []BreakPeriod {
	return d.BreakPeriods[date]
}
