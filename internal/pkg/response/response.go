package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sportclub/internal/logging"
	"sportclub/internal/pkg/apperr"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// windowCodes are policy codes about timing rather than state; they map to 422.
var windowCodes = map[string]bool{
	"outside_booking_window": true,
	"within_time_limit":      true,
}

// FromError writes the envelope for a service error. Policy violations carry
// their own code; everything else is classified by its sentinel.
func FromError(c *gin.Context, err error) {
	if p, ok := apperr.AsPolicy(err); ok {
		status := http.StatusConflict
		if windowCodes[p.Code] {
			status = http.StatusUnprocessableEntity
		}
		Error(c, status, p.Code, p.Message)
		return
	}

	switch {
	case errors.Is(err, apperr.ErrValidation):
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, apperr.ErrTransient):
		c.Header("Retry-After", "1")
		Error(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Temporarily unavailable, retry shortly")
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
