package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher is the subset of *redis.Client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Redis publishes events as JSON on a per-user pub/sub channel so a local UI
// process can follow the session.
type Redis struct {
	client  Publisher
	prefix  string
	timeout time.Duration
}

func NewRedis(client Publisher, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, timeout: 2 * time.Second}
}

func (r *Redis) Channel(userID string) string {
	return r.prefix + userID
}

func (r *Redis) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.Channel(e.UserID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
