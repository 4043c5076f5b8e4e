package handlers

import (
	"net/http"

	"bloomify/services/allocator"
	"bloomify/utils"

	"github.com/gin-gonic/gin"
)

// Allocator is the transactional booking service (C5), wired by main.go.
var Allocator *allocator.Allocator

type bookAdvanceInput struct {
	ClinicID  string `json:"clinicId" binding:"required"`
	DoctorID  string `json:"doctorId" binding:"required"`
	Date      string `json:"date" binding:"required"`
	SlotIndex int    `json:"slotIndex"`
	PatientID string `json:"patientId" binding:"required"`
}

// BookAdvanceHandler handles POST /api/appointments/advance.
func BookAdvanceHandler(c *gin.Context) {
	var in bookAdvanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	appt, err := Allocator.BookAdvance(c.Request.Context(), allocator.BookAdvanceRequest{
		ClinicID:  in.ClinicID,
		DoctorID:  in.DoctorID,
		Date:      in.Date,
		SlotIndex: in.SlotIndex,
		PatientID: in.PatientID,
	})
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

type bookWalkInInput struct {
	ClinicID     string `json:"clinicId" binding:"required"`
	DoctorID     string `json:"doctorId" binding:"required"`
	Date         string `json:"date" binding:"required"`
	SessionIndex int    `json:"sessionIndex"`
	ForceBook    bool   `json:"forceBook"`
	PatientID    string `json:"patientId" binding:"required"`
}

// BookWalkInHandler handles POST /api/appointments/walk-in.
func BookWalkInHandler(c *gin.Context) {
	var in bookWalkInInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	appt, err := Allocator.BookWalkIn(c.Request.Context(), allocator.BookWalkInRequest{
		ClinicID:     in.ClinicID,
		DoctorID:     in.DoctorID,
		Date:         in.Date,
		SessionIndex: in.SessionIndex,
		ForceBook:    in.ForceBook,
		PatientID:    in.PatientID,
	})
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// PreviewWalkInHandler handles GET /api/appointments/walk-in/preview.
func PreviewWalkInHandler(c *gin.Context) {
	var in bookWalkInInput
	in.ClinicID = c.Query("clinicId")
	in.DoctorID = c.Query("doctorId")
	in.Date = c.Query("date")
	if in.ClinicID == "" || in.DoctorID == "" || in.Date == "" {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "clinicId, doctorId and date are required")
		return
	}
	sessionIndex, err := parseIntQuery(c, "sessionIndex", -1)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid sessionIndex", err.Error())
		return
	}
	forceBook, err := parseBoolQuery(c, "forceBook", false)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid forceBook", err.Error())
		return
	}

	preview, err := Allocator.PreviewWalkInPlacement(c.Request.Context(), allocator.BookWalkInRequest{
		ClinicID:     in.ClinicID,
		DoctorID:     in.DoctorID,
		Date:         in.Date,
		SessionIndex: sessionIndex,
		ForceBook:    forceBook,
	})
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"placeholderAssignment": preview.PlaceholderAssignment,
		"advanceShifts":         preview.AdvanceShifts,
		"walkInAssignments":     preview.WalkInAssignments,
	})
}
