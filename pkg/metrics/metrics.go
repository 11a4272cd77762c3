package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "courtwatch"

// Metrics holds all Prometheus metrics for the application, registered on
// their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ScansTotal         *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	NavigationAttempts *prometheus.CounterVec
	SlotsFound         *prometheus.GaugeVec
	NotificationsTotal *prometheus.CounterVec
	LastSuccess        prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ScansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_total",
				Help:      "Total number of scans.",
			},
			[]string{"status", "error_kind"}, // status: ok, failed
		),
		ScanDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of complete scans.",
				Buckets:   []float64{5, 15, 30, 60, 120, 240, 480},
			},
		),
		NavigationAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigation_attempts_total",
				Help:      "Navigation attempts per step.",
			},
			[]string{"step", "outcome"}, // outcome: ok, failed
		),
		SlotsFound: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "slots_found",
				Help:      "Open slots found by the last scan.",
			},
			[]string{"facility"},
		),
		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification mails by kind and outcome.",
			},
			[]string{"kind", "outcome"}, // kind: slots, failure, heartbeat
		),
		LastSuccess: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful scan.",
			},
		),
	}
}

func (m *Metrics) ObserveNavigation(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.NavigationAttempts.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) ObserveScan(errorKind string, d time.Duration, finished time.Time) {
	status := "ok"
	if errorKind != "" {
		status = "failed"
	} else {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
	m.ScansTotal.WithLabelValues(status, errorKind).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

// SetSlots replaces the per-facility slot gauge with counts.
func (m *Metrics) SetSlots(counts map[string]int) {
	m.SlotsFound.Reset()
	for facility, n := range counts {
		m.SlotsFound.WithLabelValues(facility).Set(float64(n))
	}
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.NotificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Push sends the registry to a Pushgateway. One-shot runs exit before they
// could be scraped.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(m.Registry).PushContext(ctx)
}
