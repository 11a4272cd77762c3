package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/pkg/metrics"
)

// ErrScanRunning is returned when a scan is requested while another one runs.
var ErrScanRunning = errors.New("a scan is already running")

// BrowserOpener starts a fresh browser for one run. close releases it.
type BrowserOpener func(ctx context.Context) (browser repository.BrowserRepository, close func(), err error)

// ArtifactOpener prepares artifact storage for one run.
type ArtifactOpener func(runID string, startedAt time.Time) (repository.ArtifactRepository, error)

// Scanner runs complete scans.
type Scanner interface {
	Scan(ctx context.Context) (*entity.ScanResult, error)
	// Running reports whether a scan is in progress.
	Running() bool
}

type scanUseCase struct {
	openBrowser   BrowserOpener
	openArtifacts ArtifactOpener
	history       repository.ScanHistoryRepository
	notifier      *Notifier
	cfg           EngineConfig
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewScanUseCase creates the scan orchestrator. openArtifacts and history may be nil.
func NewScanUseCase(
	openBrowser BrowserOpener,
	openArtifacts ArtifactOpener,
	history repository.ScanHistoryRepository,
	notifier *Notifier,
	cfg EngineConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &scanUseCase{
		openBrowser:   openBrowser,
		openArtifacts: openArtifacts,
		history:       history,
		notifier:      notifier,
		cfg:           cfg,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

func (uc *scanUseCase) Running() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.running
}

// Scan performs one run: navigate, extract, aggregate, record and notify.
// Only one scan runs at a time since a run owns its browser page exclusively.
func (uc *scanUseCase) Scan(ctx context.Context) (*entity.ScanResult, error) {
	uc.mu.Lock()
	if uc.running {
		uc.mu.Unlock()
		return nil, ErrScanRunning
	}
	uc.running = true
	uc.mu.Unlock()
	defer func() {
		uc.mu.Lock()
		uc.running = false
		uc.mu.Unlock()
	}()

	runID := uuid.NewString()
	started := uc.now()
	logger := uc.logger.With("run_id", runID)
	logger.Info("Scan started", "mode", uc.cfg.ScanMode, "facilities", len(uc.cfg.Facilities))

	run := &entity.ScanRun{ID: runID, StartedAt: started, Status: "running"}
	if uc.history != nil {
		if err := uc.history.StartRun(ctx, run); err != nil {
			logger.Warn("Failed to record scan start", "error", err)
		}
	}

	outcome, err := uc.navigate(ctx, runID, started, logger)

	result := Aggregate(outcome.Results)
	result.RunID = runID
	result.ReachedURL = outcome.ReachedURL
	result.Diagnostics = outcome.Diagnostics
	result.StartedAt = started
	result.FinishedAt = uc.now()

	uc.record(ctx, run, &result, err, logger)
	if uc.metrics != nil {
		uc.metrics.ObserveScan(entity.ErrorKind(err), result.FinishedAt.Sub(started), result.FinishedAt)
		if err == nil {
			uc.metrics.SetSlots(CountByFacility(result.Slots))
		}
	}

	if err != nil {
		if uc.notifier != nil {
			// A cancelled run is still reported.
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			uc.notifier.NotifyFailure(notifyCtx, runID, err, result.ReachedURL, result.Diagnostics)
			cancel()
		}
		return &result, err
	}

	logger.Info("Scan finished", "slots", len(result.Slots), "facilities", result.Facilities(), "duration", result.FinishedAt.Sub(started))
	if uc.notifier != nil {
		uc.notifier.NotifySlots(ctx, result)
	}
	return &result, nil
}

func (uc *scanUseCase) navigate(ctx context.Context, runID string, started time.Time, logger *slog.Logger) (*Outcome, error) {
	var artifacts repository.ArtifactRepository
	if uc.openArtifacts != nil {
		a, err := uc.openArtifacts(runID, started)
		if err != nil {
			logger.Warn("Artifacts disabled for this run", "error", err)
		} else {
			artifacts = a
		}
	}

	browser, closeBrowser, err := uc.openBrowser(ctx)
	if err != nil {
		return &Outcome{Diagnostics: map[string]string{}}, fmt.Errorf("start browser: %w", err)
	}
	defer closeBrowser()

	return NewNavigator(browser, artifacts, uc.cfg, uc.metrics, logger).Run(ctx)
}

func (uc *scanUseCase) record(ctx context.Context, run *entity.ScanRun, result *entity.ScanResult, runErr error, logger *slog.Logger) {
	finished := result.FinishedAt
	run.FinishedAt = &finished
	run.ReachedURL = result.ReachedURL
	run.SlotCount = len(result.Slots)
	run.Status = "ok"
	if runErr != nil {
		run.Status = "failed"
		run.ErrorKind = entity.ErrorKind(runErr)
		run.ErrorMessage = runErr.Error()
	}
	if uc.history == nil {
		return
	}
	// The run context may already be cancelled; the record should still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := uc.history.FinishRun(saveCtx, run, result.Slots); err != nil {
		logger.Warn("Failed to record scan result", "error", err)
	}
}
