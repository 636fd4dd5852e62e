// Package notifier holds the toast sinks behind domain.Notifier.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/dealboard/internal/domain"
)

// LogNotifier writes toasts to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "toast")}
}

func (n *LogNotifier) Notify(ctx context.Context, toast domain.Toast) error {
	level := slog.LevelInfo
	if toast.Severity == domain.SeverityDestructive {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, toast.Title, "description", toast.Description)
	return nil
}

// Publisher is the subset of *redis.Client the Redis notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes toasts as JSON on a pub/sub channel so a browser
// bridge can display them.
type RedisNotifier struct {
	client  Publisher
	channel string
}

func NewRedisNotifier(client Publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, toast domain.Toast) error {
	if toast.Severity == "" {
		toast.Severity = domain.SeverityDefault
	}
	payload, err := json.Marshal(toast)
	if err != nil {
		return fmt.Errorf("failed to marshal toast: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish toast: %w", err)
	}
	return nil
}

// Multi delivers every toast to all sinks and joins their errors.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, toast domain.Toast) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, toast); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
