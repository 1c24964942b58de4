package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/planify/backend-go/internal/service"
)

// AnalysisHandler serves the single-series endpoints that run one stage of
// the engine without a full plan.
type AnalysisHandler struct {
	planning *service.PlanningService
}

func NewAnalysisHandler(planning *service.PlanningService) *AnalysisHandler {
	return &AnalysisHandler{planning: planning}
}

func (h *AnalysisHandler) PredictForecast(c *gin.Context) {
	var req service.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.planning.PredictForecast(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AnalysisHandler) AnalyzeInventory(c *gin.Context) {
	var req service.InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.planning.AnalyzeInventory(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AnalysisHandler) EvaluatePurchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, err := h.planning.EvaluatePurchase(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
