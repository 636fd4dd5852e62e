package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// StreamAdder is the subset of *redis.Client the stream publisher uses.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamPublisher appends changes to a capped Redis stream. Observe
// only enqueues; Run performs the writes.
type RedisStreamPublisher struct {
	client   StreamAdder
	stream   string
	maxLen   int64
	redactor *pii.Redactor
	logger   *slog.Logger
	queue    chan Event
}

// NewRedisStreamPublisher creates a publisher that keeps roughly maxLen
// entries in stream and buffers up to buffer pending events.
func NewRedisStreamPublisher(client StreamAdder, stream string, maxLen int64, buffer int, redactor *pii.Redactor, logger *slog.Logger) *RedisStreamPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &RedisStreamPublisher{
		client:   client,
		stream:   stream,
		maxLen:   maxLen,
		redactor: redactor,
		logger:   logger.With("component", "redis_stream_publisher"),
		queue:    make(chan Event, buffer),
	}
}

// Observe is a pipeline.Listener. Events are dropped when the queue is full.
func (p *RedisStreamPublisher) Observe(snap pipeline.Snapshot) {
	event := NewEvent(snap, p.redactor)
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("change stream queue full, dropping event", "version", event.Version, "deal_id", event.DealID)
	}
}

// Run writes queued events until ctx is cancelled.
func (p *RedisStreamPublisher) Run(ctx context.Context) {
	p.logger.Info("Starting change stream publisher", "stream", p.stream)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping change stream publisher")
			return
		case event := <-p.queue:
			if err := p.add(ctx, event); err != nil {
				p.logger.Error("failed to publish change event", "error", err, "version", event.Version)
			}
		}
	}
}

func (p *RedisStreamPublisher) add(ctx context.Context, event Event) error {
	payload, err := event.marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"op":      string(event.Op),
			"deal_id": event.DealID,
			"payload": payload,
		},
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}
