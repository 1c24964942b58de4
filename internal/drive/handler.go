package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/planify/backend-go/internal/domain"
	"github.com/andresuchdata/planify/backend-go/internal/ingest"
)

type Handler struct {
	files    FileStore
	importer *Importer
}

func NewHandler(files FileStore, importer *Importer) *Handler {
	return &Handler{
		files:    files,
		importer: importer,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/files/download", h.DownloadFile).Methods(http.MethodGet)
	router.HandleFunc("/api/drive/plans", h.ImportPlan).Methods(http.MethodPost)
}

// folderID resolves the folderId or path query parameter.
func (h *Handler) folderID(r *http.Request) (string, error) {
	query := r.URL.Query()
	if path := query.Get("path"); path != "" {
		return h.files.FindFolderByPath(r.Context(), path)
	}
	return query.Get("folderId"), nil
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.folderID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	files, err := h.files.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		http.Error(w, "fileId parameter is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=data.csv")

	if err := h.files.DownloadFile(r.Context(), fileID, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ImportPlan downloads a folder and answers with the plan summary.
func (h *Handler) ImportPlan(w http.ResponseWriter, r *http.Request) {
	folderID, err := h.folderID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if folderID == "" {
		http.Error(w, "folderId or path parameter is required", http.StatusBadRequest)
		return
	}

	res, err := h.importer.ImportFolder(r.Context(), folderID)
	if err != nil {
		log.Error().Err(err).Str("folder", folderID).Msg("drive plan import failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, planResponse{
		RunID:       res.RunID,
		Fingerprint: res.Fingerprint,
		SKUs:        len(res.SKUs),
		Summary:     res.Summary,
		Totals:      res.Totals,
	})
}

type planResponse struct {
	RunID       string              `json:"run_id"`
	Fingerprint string              `json:"fingerprint"`
	SKUs        int                 `json:"skus"`
	Summary     []domain.SKUSummary `json:"summary"`
	Totals      domain.PlanTotals   `json:"totals"`
}

func writeError(w http.ResponseWriter, err error) {
	var schemaErr *ingest.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           schemaErr.Error(),
			"table":           schemaErr.Table,
			"missing_columns": schemaErr.Missing,
		})
	case errors.Is(err, ErrFolderNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ingest.ErrNoDemand):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, fmt.Sprintf("request failed: %v", err), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
