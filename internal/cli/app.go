package cli

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/user/court-watch/internal/adapter/chromedp_browser"
	"github.com/user/court-watch/internal/adapter/filesystem"
	"github.com/user/court-watch/internal/adapter/postgres"
	redis_adapter "github.com/user/court-watch/internal/adapter/redis"
	resend_adapter "github.com/user/court-watch/internal/adapter/resend"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/internal/usecase"
	"github.com/user/court-watch/pkg/config"
	"github.com/user/court-watch/pkg/metrics"
)

// app holds everything a command needs, wired from the configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	scanner usecase.Scanner
	history repository.ScanHistoryRepository

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	engine, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	// --- Scan history (PostgreSQL, optional) ---
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		repo := postgres.NewScanHistoryRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.history = repo
		logger.Info("PostgreSQL connection pool established")
	}

	// --- Notification state (Redis, optional) ---
	var store repository.NotificationRepository
	if cfg.RedisAddr != "" {
		client, err := redis_adapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store = redis_adapter.NewNotificationRepo(client)
		logger.Info("Redis connection established")
	}

	// --- Mail ---
	var mailer repository.Mailer
	if cfg.MailConfigured() {
		mailer = resend_adapter.NewMailer(cfg.ResendAPIKey, cfg.MailFrom, recipients(cfg.NotifyEmail)...)
	} else {
		logger.Warn("Mail disabled, RESEND_API_KEY or NOTIFY_EMAIL missing")
	}

	notifier := usecase.NewNotifier(mailer, store, usecase.NotifyConfig{
		OnError:           cfg.NotifyOnError,
		DedupTTL:          cfg.NotifyDedupTTL(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	}, a.metrics, logger)

	a.scanner = usecase.NewScanUseCase(
		browserOpener(cfg, logger),
		artifactOpener(cfg.ArtifactsDir),
		a.history,
		notifier,
		engine,
		a.metrics,
		logger,
	)
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func engineConfig(cfg *config.Config) (usecase.EngineConfig, error) {
	facilities, err := cfg.Facilities()
	if err != nil {
		return usecase.EngineConfig{}, err
	}
	engine := usecase.DefaultEngineConfig(cfg.BaseURL)
	engine.Facilities = facilities
	engine.ExtraDelay = cfg.ExtraDelay()
	engine.MaxMarksPerFacility = cfg.MaxMarksPerFacility
	engine.ScanMode = cfg.ScanMode
	engine.NavMinInterval = cfg.NavMinInterval()
	return engine, nil
}

func browserOpener(cfg *config.Config, logger *slog.Logger) usecase.BrowserOpener {
	identity := chromedp_browser.NewIdentityManager(cfg.ProxyServer, nil)
	return func(ctx context.Context) (repository.BrowserRepository, func(), error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return chromedp_browser.NewChromedpBrowser(chromedp_browser.Options{
			Headless:        cfg.Headless,
			ProxyServer:     identity.Proxy(),
			ProxyUsername:   cfg.ProxyUsername,
			ProxyPassword:   cfg.ProxyPassword,
			UserAgent:       identity.UserAgent(),
			PageLoadTimeout: cfg.PageLoadTimeout(),
			Logger:          logger,
		})
	}
}

func artifactOpener(dir string) usecase.ArtifactOpener {
	if dir == "" {
		return nil
	}
	return func(runID string, startedAt time.Time) (repository.ArtifactRepository, error) {
		return filesystem.NewArtifactStore(dir, runID, startedAt)
	}
}

func recipients(raw string) []string {
	var out []string
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
