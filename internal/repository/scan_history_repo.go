package repository

import (
	"context"
	"errors"

	"github.com/user/court-watch/internal/entity"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ScanHistoryRepository defines the interface for storing scan runs and their slots.
type ScanHistoryRepository interface {
	// StartRun records a run in the "running" state.
	StartRun(ctx context.Context, run *entity.ScanRun) error
	// FinishRun stores the final state of a run together with its slots.
	FinishRun(ctx context.Context, run *entity.ScanRun, slots []entity.SlotRecord) error
	// LatestRun returns the most recently started run, or ErrNotFound.
	LatestRun(ctx context.Context) (*entity.ScanRun, error)
	// SlotsForRun returns the slots stored for a run, in extraction order.
	SlotsForRun(ctx context.Context, runID string) ([]entity.SlotRecord, error)
}
