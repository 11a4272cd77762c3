package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/court-watch/internal/delivery/http/handler"
	"github.com/user/court-watch/internal/delivery/http/router"
	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/usecase"
	"github.com/user/court-watch/pkg/config"
	"github.com/user/court-watch/pkg/logger"
)

func newServeCmd(envFile *string) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API and metrics, optionally scanning on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}
			log := logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if interval > 0 {
				go schedule(ctx, a, interval)
			}

			h := handler.NewHandler(ctx, a.scanner, a.history, log)
			server := &http.Server{
				Addr:         ":" + cfg.ServerPort,
				Handler:      router.New(h, a.metrics, log),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("Starting server", "port", cfg.ServerPort, "interval", interval)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("Shutting down server")
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "scan periodically at this interval (0 disables)")
	return cmd
}

// schedule runs a scan every interval until ctx is done. Ticks that find a
// scan still running are skipped.
func schedule(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.scanner.Scan(ctx)
			switch {
			case errors.Is(err, usecase.ErrScanRunning):
				a.logger.Info("Scheduled scan skipped, a scan is running")
			case err != nil:
				a.logger.Error("Scheduled scan failed", "error_kind", entity.ErrorKind(err), "error", err)
			}
		}
	}
}
