package response

import (
	"time"

	"github.com/user/court-watch/internal/entity"
)

type ScanAcceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// LatestRunResponse is a DTO for the latest run, mirroring entity.ScanRun plus its slots.
type LatestRunResponse struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"` // "running", "ok", "failed"
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	ErrorKind    string              `json:"error_kind,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	ReachedURL   string              `json:"reached_url,omitempty"`
	SlotCount    int                 `json:"slot_count"`
	Slots        []entity.SlotRecord `json:"slots"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	ScanRunning bool   `json:"scan_running"`
}
