package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const notifiedPrefix = "courtwatch:notified:"

// NotificationRepoImpl provides a concrete implementation for the NotificationRepository interface using Redis.
type NotificationRepoImpl struct {
	client *redis.Client
}

// NewNotificationRepo creates a new instance of NotificationRepoImpl.
func NewNotificationRepo(client *redis.Client) *NotificationRepoImpl {
	return &NotificationRepoImpl{client: client}
}

// Connect creates a client and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return client, nil
}

func (r *NotificationRepoImpl) generateKey(key string) string {
	return notifiedPrefix + key
}

// MarkNotified sets the key with an expiry. SETEX is atomic.
func (r *NotificationRepoImpl) MarkNotified(ctx context.Context, key string, expiry time.Duration) error {
	return r.client.SetEx(ctx, r.generateKey(key), "1", expiry).Err()
}

// IsNotified checks for the existence of the key.
func (r *NotificationRepoImpl) IsNotified(ctx context.Context, key string) (bool, error) {
	val, err := r.client.Exists(ctx, r.generateKey(key)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
