package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/edupulse/portal-backend/internal/clock"
	"github.com/edupulse/portal-backend/internal/response"
	"github.com/gin-gonic/gin"
)

// TimeHandler serves the trusted server time.
type TimeHandler struct {
	clk clock.Clock
}

// NewTimeHandler creates a new TimeHandler.
func NewTimeHandler(clk clock.Clock) *TimeHandler {
	return &TimeHandler{clk: clk}
}

// GetServerTime godoc
// GET /api/v1/time
// Returns the trusted server time. 503 while the clock is still syncing.
func (h *TimeHandler) GetServerTime(c *gin.Context) {
	now, err := h.clk.Now(c.Request.Context())
	if err != nil {
		if errors.Is(err, clock.ErrNoReading) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrTimeUnavailable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"server_time": now.Format(time.RFC3339),
	})
}

// HealthCheck godoc
// GET /health
func (h *TimeHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
