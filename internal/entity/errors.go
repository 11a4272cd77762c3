package entity

import (
	"context"
	"errors"
)

var (
	// ErrRetryExhausted is matched by every bounded operation that failed on all attempts.
	ErrRetryExhausted = errors.New("retries exhausted")
	// ErrHardBlock means the site is actively denying access. Never retried.
	ErrHardBlock = errors.New("blocked by site")
	// ErrNavigationMismatch means the reached page is not the expected target.
	ErrNavigationMismatch = errors.New("navigation target mismatch")
	// ErrUnverifiedPage means extraction was requested on a page not classified as valid.
	ErrUnverifiedPage = errors.New("page not verified as valid")
	// ErrInvalidConfig is returned for unusable configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind maps an error to a stable label for logs, metrics and reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrHardBlock):
		return "hard_block"
	case errors.Is(err, ErrNavigationMismatch):
		return "navigation_mismatch"
	case errors.Is(err, ErrUnverifiedPage):
		return "unverified_page"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}
