package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/court-watch/internal/delivery/http/response"
	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/internal/usecase"
)

type Handler struct {
	scanner usecase.Scanner
	history repository.ScanHistoryRepository
	// baseCtx outlives requests; background scans stop when it is cancelled.
	baseCtx context.Context
	logger  *slog.Logger
}

// NewHandler creates the API handler. history may be nil when no database is configured.
func NewHandler(baseCtx context.Context, scanner usecase.Scanner, history repository.ScanHistoryRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scanner: scanner,
		history: history,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

func (h *Handler) HandleStartScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner.Running() {
		h.writeJSONError(w, usecase.ErrScanRunning.Error(), http.StatusConflict)
		return
	}

	go func() {
		result, err := h.scanner.Scan(h.baseCtx)
		switch {
		case errors.Is(err, usecase.ErrScanRunning):
			h.logger.Info("Scan request dropped, another scan started first")
		case err != nil:
			h.logger.Error("Background scan failed", "error_kind", entity.ErrorKind(err), "error", err)
		default:
			h.logger.Info("Background scan finished", "run_id", result.RunID, "slots", len(result.Slots))
		}
	}()

	h.writeJSON(w, http.StatusAccepted, response.ScanAcceptedResponse{
		Status:  "accepted",
		Message: "Scan started",
	})
}

func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSONError(w, "Scan history is not configured", http.StatusServiceUnavailable)
		return
	}

	run, err := h.history.LatestRun(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		h.writeJSONError(w, "No scan has been recorded yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get latest run", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slots, err := h.history.SlotsForRun(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("Failed to get slots of run", "run_id", run.ID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []entity.SlotRecord{}
	}

	h.writeJSON(w, http.StatusOK, response.LatestRunResponse{
		ID:           run.ID,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		ErrorKind:    run.ErrorKind,
		ErrorMessage: run.ErrorMessage,
		ReachedURL:   run.ReachedURL,
		SlotCount:    run.SlotCount,
		Slots:        slots,
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok", ScanRunning: h.scanner.Running()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
