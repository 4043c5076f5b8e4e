// Package allocator implements C5: the transactional booking/cancel/
// rebalance operations wrapping the store, clock, slotgen, capacity and
// walkin packages under optimistic-concurrency retry.
package allocator

import (
	"strconv"
	"time"

	"bloomify/database/store"
	"bloomify/models"
)

// Doc <-> model conversion is hand-written rather than reflected,
// matching the teacher's bson.M literal style in its repository layer.

func clinicToDoc(c models.Clinic) store.Doc {
	return store.Doc{
		"id":                   c.ID,
		"name":                 c.Name,
		"shortCode":            c.ShortCode,
		"walkInTokenAllotment": c.WalkInSpacing,
		"tokenDistribution":    string(c.TokenDistribution),
		"createdAt":            c.CreatedAt,
		"updatedAt":            c.UpdatedAt,
	}
}

func clinicFromDoc(d store.Doc) models.Clinic {
	return models.Clinic{
		ID:                getString(d, "id"),
		Name:              getString(d, "name"),
		ShortCode:         getString(d, "shortCode"),
		WalkInSpacing:     getInt(d, "walkInTokenAllotment"),
		TokenDistribution: models.TokenDistributionMode(getString(d, "tokenDistribution")),
		CreatedAt:         getString(d, "createdAt"),
		UpdatedAt:         getString(d, "updatedAt"),
	}
}

func doctorFromDoc(d store.Doc) models.Doctor {
	doc := models.Doctor{
		ID:                 getString(d, "id"),
		ClinicID:           getString(d, "clinicId"),
		Name:               getString(d, "name"),
		AverageConsultMins: getInt(d, "averageConsultationMinutes"),
		Status:             models.ConsultationStatus(getString(d, "consultationStatus")),
	}
	doc.Availability = decodeAvailability(d["availability"])
	doc.BreakPeriods = decodeBreakPeriods(d["breakPeriods"])
	doc.Extensions = decodeExtensions(d["availabilityExtensions"])
	if n, ok := d["freeFollowUpDays"].(int); ok {
		doc.FreeFollowUpDays = &n
	}
	return doc
}

// doctorToDoc is the inverse of doctorFromDoc, re-keying the int-keyed
// weekday/session maps back to strings since store.Doc is schema-less.
func doctorToDoc(doc models.Doctor) store.Doc {
	availability := map[string]any{}
	for weekday, sessions := range doc.Availability {
		list := make([]any, 0, len(sessions))
		for _, s := range sessions {
			list = append(list, map[string]any{"from": s.From, "to": s.To})
		}
		availability[strconv.Itoa(weekday)] = list
	}

	breakPeriods := map[string]any{}
	for date, breaks := range doc.BreakPeriods {
		list := make([]any, 0, len(breaks))
		for _, b := range breaks {
			slotTimes := make([]any, 0, len(b.SlotTimes))
			for _, st := range b.SlotTimes {
				slotTimes = append(slotTimes, st)
			}
			list = append(list, map[string]any{
				"id":              b.ID,
				"sessionIndex":    b.SessionIndex,
				"startTime":       b.StartTime,
				"endTime":         b.EndTime,
				"durationMinutes": b.DurationMinutes,
				"slotTimes":       slotTimes,
			})
		}
		breakPeriods[date] = list
	}

	extensions := map[string]any{}
	for date, dateExt := range doc.Extensions {
		sessions := map[string]any{}
		for idx, ext := range dateExt.Sessions {
			sessions[strconv.Itoa(idx)] = map[string]any{"newEndTime": ext.NewEndTime}
		}
		extensions[date] = map[string]any{"sessions": sessions}
	}

	d := store.Doc{
		"id":                         doc.ID,
		"clinicId":                   doc.ClinicID,
		"name":                       doc.Name,
		"availability":               availability,
		"averageConsultationMinutes": doc.AverageConsultMins,
		"breakPeriods":               breakPeriods,
		"availabilityExtensions":     extensions,
		"consultationStatus":         string(doc.Status),
	}
	if doc.FreeFollowUpDays != nil {
		d["freeFollowUpDays"] = *doc.FreeFollowUpDays
	}
	return d
}

func decodeAvailability(v any) models.WeeklyAvailability {
	raw, ok := v.(map[string]any)
	if !ok {
		return models.WeeklyAvailability{}
	}
	avail := models.WeeklyAvailability{}
	for k, sessionsRaw := range raw {
		weekday, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		list, _ := sessionsRaw.([]any)
		sessions := make([]models.Session, 0, len(list))
		for _, s := range list {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			sessions = append(sessions, models.Session{From: getString(sm, "from"), To: getString(sm, "to")})
		}
		avail[weekday] = sessions
	}
	return avail
}

func decodeBreakPeriods(v any) map[string][]models.BreakPeriod {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string][]models.BreakPeriod{}
	}
	out := map[string][]models.BreakPeriod{}
	for date, listRaw := range raw {
		list, _ := listRaw.([]any)
		breaks := make([]models.BreakPeriod, 0, len(list))
		for _, b := range list {
			bm, ok := b.(map[string]any)
			if !ok {
				continue
			}
			slotTimesRaw, _ := bm["slotTimes"].([]any)
			slotTimes := make([]string, 0, len(slotTimesRaw))
			for _, st := range slotTimesRaw {
				if s, ok := st.(string); ok {
					slotTimes = append(slotTimes, s)
				}
			}
			breaks = append(breaks, models.BreakPeriod{
				ID:              getString(bm, "id"),
				SessionIndex:    getInt(bm, "sessionIndex"),
				StartTime:       getString(bm, "startTime"),
				EndTime:         getString(bm, "endTime"),
				DurationMinutes: getInt(bm, "durationMinutes"),
				SlotTimes:       slotTimes,
			})
		}
		out[date] = breaks
	}
	return out
}

func decodeExtensions(v any) map[string]models.DateExtensions {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]models.DateExtensions{}
	}
	out := map[string]models.DateExtensions{}
	for date, dateExtRaw := range raw {
		dm, ok := dateExtRaw.(map[string]any)
		if !ok {
			continue
		}
		sessionsRaw, _ := dm["sessions"].(map[string]any)
		sessions := map[int]models.SessionExtension{}
		for k, extRaw := range sessionsRaw {
			idx, err := strconv.Atoi(k)
			if err != nil {
				continue
			}
			em, ok := extRaw.(map[string]any)
			if !ok {
				continue
			}
			sessions[idx] = models.SessionExtension{NewEndTime: getString(em, "newEndTime")}
		}
		out[date] = models.DateExtensions{Sessions: sessions}
	}
	return out
}

func appointmentToDoc(a models.Appointment) store.Doc {
	return store.Doc{
		"id":                  a.ID,
		"clinicId":            a.ClinicID,
		"doctorId":            a.DoctorID,
		"date":                a.Date,
		"time":                a.Time,
		"arriveByTime":        a.ArriveByTime,
		"patientId":           a.PatientID,
		"bookedVia":           string(a.BookedVia),
		"status":              string(a.Status),
		"slotIndex":           a.SlotIndex,
		"sessionIndex":        a.SessionIndex,
		"numericToken":        a.NumericToken,
		"tokenNumber":         a.TokenNumber,
		"classicTokenNumber":  a.ClassicTokenNumber,
		"cancelledByBreak":    a.CancelledByBreak,
		"isInBuffer":          a.IsInBuffer,
		"isForceBooked":       a.IsForceBooked,
		"cutOffTime":          a.CutOffTime,
		"noShowTime":          a.NoShowTime,
		"reminderEveningSent": a.ReminderEveningSent,
		"reminderMorningSent": a.ReminderMorningSent,
		"createdAt":           a.CreatedAt,
		"updatedAt":           a.UpdatedAt,
	}
}

func appointmentFromDoc(d store.Doc) models.Appointment {
	return models.Appointment{
		ID:                  getString(d, "id"),
		ClinicID:            getString(d, "clinicId"),
		DoctorID:            getString(d, "doctorId"),
		Date:                getString(d, "date"),
		Time:                getTime(d, "time"),
		ArriveByTime:        getTime(d, "arriveByTime"),
		PatientID:           getString(d, "patientId"),
		BookedVia:           models.BookedVia(getString(d, "bookedVia")),
		Status:              models.AppointmentStatus(getString(d, "status")),
		SlotIndex:           getInt(d, "slotIndex"),
		SessionIndex:        getInt(d, "sessionIndex"),
		NumericToken:        getInt(d, "numericToken"),
		TokenNumber:         getString(d, "tokenNumber"),
		ClassicTokenNumber:  getString(d, "classicTokenNumber"),
		CancelledByBreak:    getBool(d, "cancelledByBreak"),
		IsInBuffer:          getBool(d, "isInBuffer"),
		IsForceBooked:       getBool(d, "isForceBooked"),
		CutOffTime:          getTime(d, "cutOffTime"),
		NoShowTime:          getTime(d, "noShowTime"),
		ReminderEveningSent: getBool(d, "reminderEveningSent"),
		ReminderMorningSent: getBool(d, "reminderMorningSent"),
		CreatedAt:           getTime(d, "createdAt"),
		UpdatedAt:           getTime(d, "updatedAt"),
	}
}

func reservationToDoc(r models.SlotReservation) store.Doc {
	return store.Doc{
		"id":            r.ID,
		"reservedAt":    r.ReservedAt,
		"reservedBy":    r.ReservedBy,
		"status":        string(r.Status),
		"appointmentId": r.AppointmentID,
	}
}

func reservationFromDoc(d store.Doc) models.SlotReservation {
	return models.SlotReservation{
		ID:            getString(d, "id"),
		ReservedAt:    getTime(d, "reservedAt"),
		ReservedBy:    getString(d, "reservedBy"),
		Status:        models.ReservationStatus(getString(d, "status")),
		AppointmentID: getString(d, "appointmentId"),
	}
}

func counterFromDoc(d store.Doc) models.TokenCounter {
	c := models.TokenCounter{
		ID:       getString(d, "id"),
		ClinicID: getString(d, "clinicId"),
		DoctorID: getString(d, "doctorId"),
		Date:     getString(d, "date"),
		Kind:     models.CounterKind(getString(d, "kind")),
		Value:    getInt(d, "value"),
	}
	if n, ok := d["sessionIndex"].(int); ok {
		c.SessionIndex = &n
	}
	return c
}

func counterToDoc(c models.TokenCounter) store.Doc {
	doc := store.Doc{
		"id":       c.ID,
		"clinicId": c.ClinicID,
		"doctorId": c.DoctorID,
		"date":     c.Date,
		"kind":     string(c.Kind),
		"value":    c.Value,
	}
	if c.SessionIndex != nil {
		doc["sessionIndex"] = *c.SessionIndex
	}
	return doc
}

// Exported codec wrappers let the break service (C7) reuse the same
// doc <-> model conversions instead of duplicating them.

func ClinicFromDoc(d store.Doc) models.Clinic { return clinicFromDoc(d) }
func DoctorFromDoc(d store.Doc) models.Doctor { return doctorFromDoc(d) }
func DoctorToDoc(doc models.Doctor) store.Doc { return doctorToDoc(doc) }
func AppointmentFromDoc(d store.Doc) models.Appointment { return appointmentFromDoc(d) }
func AppointmentToDoc(a models.Appointment) store.Doc   { return appointmentToDoc(a) }

func getString(d store.Doc, key string) string {
	if d == nil {
		return ""
	}
	s, _ := d[key].(string)
	return s
}

func getInt(d store.Doc, key string) int {
	if d == nil {
		return 0
	}
	switch v := d[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getBool(d store.Doc, key string) bool {
	if d == nil {
		return false
	}
	b, _ := d[key].(bool)
	return b
}

func getTime(d store.Doc, key string) time.Time {
	if d == nil {
		return time.Time{}
	}
	t, _ := d[key].(time.Time)
	return t
}
