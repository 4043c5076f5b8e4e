package utils

import (
	"errors"
	"net/http"

	"bloomify/services/scheduleerr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    string(scheduleerr.KindUnknown),
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// httpStatusForKind maps the §7 error taxonomy onto the HTTP codes the
// spec names: 409 for Duplicate/NoSlot, 429 for CapacityReached, 500 for
// Unknown; everything else gets its own sensible client/server split.
func httpStatusForKind(kind scheduleerr.Kind) int {
	switch kind {
	case scheduleerr.KindDuplicateAppointment, scheduleerr.KindNoWalkInSlots, scheduleerr.KindNoCandidate:
		return http.StatusConflict
	case scheduleerr.KindCapacityReached:
		return http.StatusTooManyRequests
	case scheduleerr.KindInvalidBreak, scheduleerr.KindInvalidInput:
		return http.StatusBadRequest
	case scheduleerr.KindNotAvailable:
		return http.StatusNotFound
	case scheduleerr.KindReservationConflict:
		return http.StatusConflict
	case scheduleerr.KindTimeout:
		return http.StatusGatewayTimeout
	case scheduleerr.KindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RespondSchedulerError writes the appropriate HTTP response for any
// error returned by the allocator/breaks services.
func RespondSchedulerError(c *gin.Context, err error) {
	kind := scheduleerr.KindOf(err)
	status := httpStatusForKind(kind)

	var se *scheduleerr.Error
	message := err.Error()
	if errors.As(err, &se) {
		message = se.Message
	}

	GetLogger().Warn("scheduler operation failed",
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	c.JSON(status, ErrorResponse{
		Code:    string(kind),
		Message: message,
	})
}
