package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/planify/backend-go/internal/service"
)

const defaultRunWindow = 7 * 24 * time.Hour

type RunHandler struct {
	planning *service.PlanningService
}

func NewRunHandler(planning *service.PlanningService) *RunHandler {
	return &RunHandler{planning: planning}
}

// ListRuns reports the tracked runs of the last ?days days (default 7).
func (h *RunHandler) ListRuns(c *gin.Context) {
	window := defaultRunWindow
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	report, err := h.planning.RecentRuns(c.Request.Context(), time.Now().Add(-window), limit)
	if errors.Is(err, service.ErrRunHistoryDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *RunHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.planning.Metrics())
}
