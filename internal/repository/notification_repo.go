package repository

import (
	"context"
	"time"
)

// NotificationRepository remembers which notifications went out recently.
type NotificationRepository interface {
	// MarkNotified records key as sent for the given time.
	MarkNotified(ctx context.Context, key string, expiry time.Duration) error
	// IsNotified checks if key has been sent within its expiry.
	IsNotified(ctx context.Context, key string) (bool, error)
}
