package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/court-watch/internal/delivery/http/handler"
	"github.com/user/court-watch/internal/delivery/http/response"
	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/pkg/logger"
	"github.com/user/court-watch/pkg/metrics"
)

type fakeScanner struct {
	running atomic.Bool
	scanned chan struct{}
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{scanned: make(chan struct{}, 1)}
}

func (s *fakeScanner) Scan(ctx context.Context) (*entity.ScanResult, error) {
	s.scanned <- struct{}{}
	return &entity.ScanResult{RunID: "run-1"}, nil
}

func (s *fakeScanner) Running() bool { return s.running.Load() }

type fakeHistory struct {
	run   *entity.ScanRun
	slots []entity.SlotRecord
}

func (h *fakeHistory) StartRun(ctx context.Context, run *entity.ScanRun) error { return nil }

func (h *fakeHistory) FinishRun(ctx context.Context, run *entity.ScanRun, slots []entity.SlotRecord) error {
	return nil
}

func (h *fakeHistory) LatestRun(ctx context.Context) (*entity.ScanRun, error) {
	if h.run == nil {
		return nil, repository.ErrNotFound
	}
	return h.run, nil
}

func (h *fakeHistory) SlotsForRun(ctx context.Context, runID string) ([]entity.SlotRecord, error) {
	return h.slots, nil
}

func newServer(t *testing.T, scanner *fakeScanner, history repository.ScanHistoryRepository) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	log := logger.New(io.Discard, logger.ParseLevel("error"), "json")
	m := metrics.New()
	h := handler.NewHandler(context.Background(), scanner, history, log)
	srv := httptest.NewServer(New(h, m, log))
	t.Cleanup(srv.Close)
	return srv, m
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, newFakeScanner(), nil)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body response.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.ScanRunning)
}

func TestLatestRun(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		srv, _ := newServer(t, newFakeScanner(), nil)
		resp, err := http.Get(srv.URL + "/api/runs/latest")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("no runs yet", func(t *testing.T) {
		srv, _ := newServer(t, newFakeScanner(), &fakeHistory{})
		resp, err := http.Get(srv.URL + "/api/runs/latest")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("with slots", func(t *testing.T) {
		finished := time.Date(2026, 1, 20, 7, 1, 0, 0, time.UTC)
		history := &fakeHistory{
			run: &entity.ScanRun{
				ID: "run-9", Status: "ok", SlotCount: 1,
				StartedAt:  finished.Add(-time.Minute),
				FinishedAt: &finished,
			},
			slots: []entity.SlotRecord{{Facility: "駒場", Date: "1月21日(水)", Court: "A面", Time: "9:00-11:00", RawMarker: "○", Mode: entity.ModeAligned}},
		}
		srv, _ := newServer(t, newFakeScanner(), history)

		resp, err := http.Get(srv.URL + "/api/runs/latest")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body response.LatestRunResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "run-9", body.ID)
		assert.Equal(t, history.slots, body.Slots)
	})
}

func TestStartScan(t *testing.T) {
	scanner := newFakeScanner()
	srv, _ := newServer(t, scanner, nil)

	resp, err := http.Post(srv.URL+"/api/scan", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-scanner.scanned:
	case <-time.After(5 * time.Second):
		t.Fatal("scan was not started")
	}
}

func TestStartScanWhileRunning(t *testing.T) {
	scanner := newFakeScanner()
	scanner.running.Store(true)
	srv, _ := newServer(t, scanner, nil)

	resp, err := http.Post(srv.URL+"/api/scan", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Empty(t, scanner.scanned)
}

func TestMetricsEndpointUsesRoutePatterns(t *testing.T) {
	srv, _ := newServer(t, newFakeScanner(), nil)

	for _, path := range []string{"/api/health", "/nope"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(b)
	assert.True(t, strings.Contains(text, `http_requests_total{method="GET",path="/api/health",status="200"} 1`), text)
	assert.True(t, strings.Contains(text, `path="unmatched",status="404"`), text)
	assert.Contains(t, text, "courtwatch_")
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t, newFakeScanner(), nil)

	resp, err := http.Get(srv.URL + "/api/scan")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
