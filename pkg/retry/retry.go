// Package retry runs an operation a bounded number of times with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/court-watch/internal/entity"
)

const (
	DefaultTries     = 3
	DefaultBaseDelay = 1500 * time.Millisecond
)

// Options controls a retried operation.
type Options struct {
	Tries     int
	BaseDelay time.Duration
	Logger    *slog.Logger
	// Retryable decides whether a failed attempt may be followed by another.
	// Defaults to IsRetryable.
	Retryable func(error) bool
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d attempts failed: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{entity.ErrRetryExhausted, e.Err}
}

// IsRetryable rejects hard blocks and context errors.
func IsRetryable(err error) bool {
	return !errors.Is(err, entity.ErrHardBlock) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Delay is the wait after the given failed attempt (1-based).
func Delay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

// Do runs fn until it succeeds or the attempts run out. Attempts never overlap.
func Do(ctx context.Context, name string, fn func(ctx context.Context, attempt int) error, opts Options) error {
	_, err := DoValue(ctx, name, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, fn(ctx, attempt)
	}, opts)
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, name string, fn func(ctx context.Context, attempt int) (T, error), opts Options) (T, error) {
	if opts.Tries <= 0 {
		opts.Tries = DefaultTries
	}
	if opts.BaseDelay < 0 {
		opts.BaseDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Retryable == nil {
		opts.Retryable = IsRetryable
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= opts.Tries; attempt++ {
		v, err := fn(ctx, attempt)
		if err == nil {
			opts.Logger.Info("attempt succeeded", "step", name, "attempt", attempt, "tries", opts.Tries)
			return v, nil
		}
		lastErr = err
		opts.Logger.Warn("attempt failed", "step", name, "attempt", attempt, "tries", opts.Tries, "error", err)

		if !opts.Retryable(err) {
			return zero, err
		}
		if attempt == opts.Tries {
			break
		}

		timer := time.NewTimer(Delay(opts.BaseDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return zero, &ExhaustedError{Name: name, Attempts: opts.Tries, Err: lastErr}
}
