package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id            TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	error_kind    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	reached_url   TEXT NOT NULL DEFAULT '',
	slot_count    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS scan_runs_started_at_idx ON scan_runs (started_at DESC);
CREATE TABLE IF NOT EXISTS scan_slots (
	run_id     TEXT NOT NULL REFERENCES scan_runs (id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	facility   TEXT NOT NULL,
	slot_date  TEXT NOT NULL,
	court      TEXT NOT NULL,
	slot_time  TEXT NOT NULL,
	raw_marker TEXT NOT NULL,
	raw_line   TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// ScanHistoryRepoImpl provides a concrete implementation for the ScanHistoryRepository interface using PostgreSQL.
type ScanHistoryRepoImpl struct {
	db *pgxpool.Pool
}

// NewScanHistoryRepo creates a new instance of ScanHistoryRepoImpl.
func NewScanHistoryRepo(db *pgxpool.Pool) *ScanHistoryRepoImpl {
	return &ScanHistoryRepoImpl{db: db}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (r *ScanHistoryRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

// StartRun inserts the run in its initial state.
func (r *ScanHistoryRepoImpl) StartRun(ctx context.Context, run *entity.ScanRun) error {
	query := `
		INSERT INTO scan_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.db.Exec(ctx, query, run.ID, run.StartedAt, run.Status)
	return err
}

// FinishRun updates the run and replaces its slots within a single transaction.
func (r *ScanHistoryRepoImpl) FinishRun(ctx context.Context, run *entity.ScanRun, slots []entity.SlotRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scan_runs (id, started_at, finished_at, status, error_kind, error_message, reached_url, slot_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			reached_url = EXCLUDED.reached_url,
			slot_count = EXCLUDED.slot_count;`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status,
		run.ErrorKind, run.ErrorMessage, run.ReachedURL, run.SlotCount,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM scan_slots WHERE run_id = $1;`, run.ID); err != nil {
		return err
	}
	if len(slots) > 0 {
		batch := &pgx.Batch{}
		for i, s := range slots {
			batch.Queue(`INSERT INTO scan_slots (run_id, position, facility, slot_date, court, slot_time, raw_marker, raw_line, mode)
			             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				run.ID, i, s.Facility, s.Date, s.Court, s.Time, s.RawMarker, s.RawLine, string(s.Mode))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// LatestRun retrieves the most recently started run.
func (r *ScanHistoryRepoImpl) LatestRun(ctx context.Context) (*entity.ScanRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, error_kind, error_message, reached_url, slot_count
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT 1;
	`
	var run entity.ScanRun
	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ErrorKind,
		&run.ErrorMessage,
		&run.ReachedURL,
		&run.SlotCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// SlotsForRun retrieves the slots of a run in extraction order.
func (r *ScanHistoryRepoImpl) SlotsForRun(ctx context.Context, runID string) ([]entity.SlotRecord, error) {
	query := `
		SELECT facility, slot_date, court, slot_time, raw_marker, raw_line, mode
		FROM scan_slots
		WHERE run_id = $1
		ORDER BY position ASC;
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []entity.SlotRecord
	for rows.Next() {
		var s entity.SlotRecord
		var mode string
		if err := rows.Scan(&s.Facility, &s.Date, &s.Court, &s.Time, &s.RawMarker, &s.RawLine, &mode); err != nil {
			return nil, err
		}
		s.Mode = entity.ExtractionMode(mode)
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
