package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
	"github.com/andresuchdata/planify/backend-go/internal/pipeline"
	"github.com/andresuchdata/planify/backend-go/internal/service"
)

type PlanHandler struct {
	planning  *service.PlanningService
	uploadDir string
}

func NewPlanHandler(planning *service.PlanningService, uploadDir string) *PlanHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &PlanHandler{
		planning:  planning,
		uploadDir: uploadDir,
	}
}

type planSummaryResponse struct {
	RunID       string              `json:"run_id"`
	Fingerprint string              `json:"fingerprint"`
	AsOf        string              `json:"as_of"`
	SKUs        int                 `json:"skus"`
	Summary     []domain.SKUSummary `json:"summary"`
	Totals      domain.PlanTotals   `json:"totals"`
}

func newPlanSummaryResponse(res *domain.PlanResult) planSummaryResponse {
	return planSummaryResponse{
		RunID:       res.RunID,
		Fingerprint: res.Fingerprint,
		AsOf:        domain.FormatMonth(res.AsOf),
		SKUs:        len(res.SKUs),
		Summary:     res.Summary,
		Totals:      res.Totals,
	}
}

// CreatePlan accepts the input tables as multipart files and runs a plan.
// Files sent under the "files" field are matched to a table by name; files
// sent under a field named after a table are taken as that table.
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form data"})
		return
	}

	batchDir := filepath.Join(h.uploadDir, uuid.New().String())
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}
	defer os.RemoveAll(batchDir)

	var uploaded []*domain.UploadedFile
	for field, files := range form.File {
		table := ""
		if field != "files" {
			table = field
		}
		for i, file := range files {
			dst := filepath.Join(batchDir, fmt.Sprintf("%s-%d-%s", field, i, filepath.Base(file.Filename)))
			if err := c.SaveUploadedFile(file, dst); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
				return
			}
			uploaded = append(uploaded, &domain.UploadedFile{
				Filename: file.Filename,
				Path:     dst,
				Size:     file.Size,
				Table:    table,
			})
		}
	}

	if len(uploaded) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	res, err := h.planning.PlanFiles(c.Request.Context(), uploaded)
	if err != nil {
		log.Error().Err(err).Int("files", len(uploaded)).Msg("plan request failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newPlanSummaryResponse(res))
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	res, err := h.planning.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("full") == "true" {
		c.JSON(http.StatusOK, res)
		return
	}
	c.JSON(http.StatusOK, newPlanSummaryResponse(res))
}

// GetPlanTable streams one output table of a plan as CSV.
func (h *PlanHandler) GetPlanTable(c *gin.Context) {
	res, err := h.planning.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	table, ok := ingest.FindOutputTable(res, c.Param("table"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown table"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", table.Name))
	c.Status(http.StatusOK)
	if err := table.Write(c.Writer); err != nil {
		log.Error().Err(err).Str("table", table.Name).Msg("failed to write table")
	}
}

func respondError(c *gin.Context, err error) {
	var (
		schemaErr *ingest.SchemaError
		badReq    *service.BadRequestError
	)
	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           schemaErr.Error(),
			"table":           schemaErr.Table,
			"missing_columns": schemaErr.Missing,
		})
	case errors.As(err, &badReq):
		c.JSON(http.StatusBadRequest, gin.H{"error": badReq.Error()})
	case errors.Is(err, ingest.ErrUnknownTable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ingest.ErrNoDemand), errors.Is(err, pipeline.ErrNoDemand):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
