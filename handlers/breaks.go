package handlers

import (
	"net/http"

	"bloomify/services/breaks"
	"bloomify/utils"

	"github.com/gin-gonic/gin"
)

// Breaks is the break/extension service (C7), wired by main.go.
var Breaks *breaks.Service

type addBreakInput struct {
	Date         string `json:"date" binding:"required"`
	SessionIndex int    `json:"sessionIndex"`
	SlotIndices  []int  `json:"slotIndices" binding:"required"`
}

// AddBreakHandler handles POST /api/doctors/:id/breaks.
func AddBreakHandler(c *gin.Context) {
	var in addBreakInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	err := Breaks.AddBreak(c.Request.Context(), breaks.AddBreakRequest{
		DoctorID:     c.Param("id"),
		Date:         in.Date,
		SessionIndex: in.SessionIndex,
		SlotIndices:  in.SlotIndices,
	})
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveBreakHandler handles DELETE /api/doctors/:id/breaks/:breakId.
func RemoveBreakHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		utils.JSONError(c, http.StatusBadRequest, "invalid request", "date query param is required")
		return
	}
	sessionIndex, err := parseIntQuery(c, "sessionIndex", 0)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid sessionIndex", err.Error())
		return
	}

	err = Breaks.RemoveBreak(c.Request.Context(), breaks.RemoveBreakRequest{
		DoctorID:     c.Param("id"),
		Date:         date,
		SessionIndex: sessionIndex,
		BreakID:      c.Param("breakId"),
	})
	if err != nil {
		utils.RespondSchedulerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
