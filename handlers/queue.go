package handlers

import (
	"net/http"

	"bloomify/database/store"
	"bloomify/models"
	"bloomify/services/allocator"
	"bloomify/services/clock"
	"bloomify/services/queue"
	"bloomify/utils"

	"github.com/gin-gonic/gin"
)

// Store and Clock back the read-side queue projection (C6), wired by
// main.go.
var (
	Store      store.Store
	ClockHandle *clock.Clock
)

// QueueHandler handles GET /api/queue: the live queue view for one
// (clinic, doctor, date, session).
func QueueHandler(c *gin.Context) {
	clinicID := c.Query("clinicId")
	doctorID := c.Query("doctorId")
	date := c.Query("date")
	if clinicID == "" || doctorID == "" || date == "" {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "clinicId, doctorId and date are required")
		return
	}
	sessionIndex, err := parseIntQuery(c, "sessionIndex", 0)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid sessionIndex", err.Error())
		return
	}

	ctx := c.Request.Context()

	clinicDoc, err := Store.Get(ctx, "clinics", clinicID)
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	if clinicDoc == nil {
		utils.JSONError(c, http.StatusNotFound, "clinic not found", clinicID)
		return
	}
	clinic := allocator.ClinicFromDoc(clinicDoc)

	doctorDoc, err := Store.Get(ctx, "doctors", doctorID)
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	if doctorDoc == nil {
		utils.JSONError(c, http.StatusNotFound, "doctor not found", doctorID)
		return
	}
	doctor := allocator.DoctorFromDoc(doctorDoc)

	docs, err := Store.Query(ctx, "appointments", store.Filter{
		"clinicId": clinicID,
		"doctorId": doctorID,
		"date":     date,
	}, nil)
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}

	var session []models.Appointment
	for _, d := range docs {
		appt := allocator.AppointmentFromDoc(d)
		if appt.SessionIndex == sessionIndex {
			session = append(session, appt)
		}
	}

	consultationCount := 0
	counterDoc, err := Store.Get(ctx, "consultationCounters", models.ConsultationCounterID(clinicID, doctorID, date, sessionIndex))
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	if counterDoc != nil {
		if v, ok := counterDoc["completed"].(int64); ok {
			consultationCount = int(v)
		} else if v, ok := counterDoc["completed"].(int); ok {
			consultationCount = v
		}
	}

	state := queue.Project(session, clinic.TokenDistribution, doctor.Status, consultationCount, doctor.EffectiveConsultMinutes(), ClockHandle.Now())
	c.JSON(http.StatusOK, state)
}
