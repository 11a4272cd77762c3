package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/pkg/metrics"
	"github.com/user/court-watch/pkg/utils"
)

const heartbeatKey = "heartbeat"

// NotifyConfig controls when mails go out.
type NotifyConfig struct {
	OnError bool
	// DedupTTL suppresses a repeated identical slot mail for this long. Zero disables it.
	DedupTTL time.Duration
	// HeartbeatInterval sends a "nothing found" mail at most this often. Zero disables it.
	HeartbeatInterval time.Duration
}

// Notifier turns scan outcomes into mails. Delivery problems are logged and
// never turned into errors.
type Notifier struct {
	mailer  repository.Mailer
	store   repository.NotificationRepository
	cfg     NotifyConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewNotifier creates a Notifier. A nil mailer disables mail, a nil store
// disables deduplication.
func NewNotifier(mailer repository.Mailer, store repository.NotificationRepository, cfg NotifyConfig, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{mailer: mailer, store: store, cfg: cfg, metrics: m, logger: logger, now: time.Now}
}

// NotifySlots sends the slot mail when the result has slots, otherwise a
// heartbeat if one is due.
func (n *Notifier) NotifySlots(ctx context.Context, result entity.ScanResult) {
	if len(result.Slots) == 0 {
		n.heartbeat(ctx, result.RunID)
		return
	}

	keys := make([]string, 0, len(result.Slots))
	for _, s := range result.Slots {
		k := s.Key()
		keys = append(keys, k.Facility+"|"+k.Date+"|"+k.Court+"|"+k.Time+"|"+k.RawLine)
	}
	dedupKey := "slots:" + utils.HashStrings(keys...)

	if n.cfg.DedupTTL > 0 && n.seen(ctx, dedupKey) {
		n.logger.Info("MAIL: skipped, same slots already notified", "run_id", result.RunID, "slots", len(result.Slots))
		return
	}
	if n.send(ctx, SlotsMessage(result)) && n.cfg.DedupTTL > 0 {
		n.mark(ctx, dedupKey, n.cfg.DedupTTL)
	}
}

// NotifyFailure reports a failed run when failure mails are enabled.
func (n *Notifier) NotifyFailure(ctx context.Context, runID string, err error, reachedURL string, diagnostics map[string]string) {
	if !n.cfg.OnError {
		return
	}
	n.send(ctx, FailureMessage(runID, err, reachedURL, diagnostics))
}

func (n *Notifier) heartbeat(ctx context.Context, runID string) {
	if n.cfg.HeartbeatInterval <= 0 {
		return
	}
	if n.seen(ctx, heartbeatKey) {
		return
	}
	if n.send(ctx, HeartbeatMessage(runID, n.now())) {
		n.mark(ctx, heartbeatKey, n.cfg.HeartbeatInterval)
	}
}

func (n *Notifier) send(ctx context.Context, msg entity.Message) bool {
	if n.mailer == nil {
		n.logger.Info("MAIL: skipped (mail not configured)", "kind", msg.Kind, "subject", msg.Subject)
		return false
	}
	id, err := n.mailer.Send(ctx, msg)
	if n.metrics != nil {
		n.metrics.ObserveNotification(string(msg.Kind), err)
	}
	if err != nil {
		n.logger.Error("MAIL: send failed", "kind", msg.Kind, "error", err)
		return false
	}
	n.logger.Info("MAIL: sent", "kind", msg.Kind, "id", id)
	return true
}

func (n *Notifier) seen(ctx context.Context, key string) bool {
	if n.store == nil {
		return false
	}
	ok, err := n.store.IsNotified(ctx, key)
	if err != nil {
		n.logger.Warn("Notification store lookup failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (n *Notifier) mark(ctx context.Context, key string, ttl time.Duration) {
	if n.store == nil {
		return
	}
	if err := n.store.MarkNotified(ctx, key, ttl); err != nil {
		n.logger.Warn("Failed to record notification", "key", key, "error", err)
	}
}
