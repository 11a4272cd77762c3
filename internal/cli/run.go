package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/pkg/config"
	"github.com/user/court-watch/pkg/logger"
)

const pushJob = "courtwatch"

func newRunCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scan and mail what was found",
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

			result, scanErr := a.scanner.Scan(ctx)

			if cfg.PushgatewayURL != "" {
				// The run context may be cancelled already; metrics of a failed run matter most.
				pushCtx, cancelPush := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancelPush()
				if err := a.metrics.Push(pushCtx, cfg.PushgatewayURL, pushJob); err != nil {
					log.Warn("Failed to push metrics", "error", err)
				}
			}

			if scanErr != nil {
				log.Error("Scan failed", "error_kind", entity.ErrorKind(scanErr), "error", scanErr)
				return scanErr
			}
			log.Info("Done", "run_id", result.RunID, "slots", len(result.Slots))
			return nil
		},
	}
}
