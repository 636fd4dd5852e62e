package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes every change to a Kafka topic, keyed by deal id so
// that changes to one deal stay ordered within a partition.
type KafkaPublisher struct {
	writer   MessageWriter
	redactor *pii.Redactor
	logger   *slog.Logger
	timeout  time.Duration
}

// NewKafkaPublisher creates an asynchronous Kafka writer for topic.
func NewKafkaPublisher(brokers []string, topic string, redactor *pii.Redactor, logger *slog.Logger) *KafkaPublisher {
	logger = logger.With("component", "kafka_publisher")
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to deliver change events", "error", err, "count", len(messages))
			}
		},
	}
	return NewKafkaPublisherWithWriter(w, redactor, logger)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, redactor *pii.Redactor, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:   w,
		redactor: redactor,
		logger:   logger,
		timeout:  time.Second,
	}
}

// Observe is a pipeline.Listener.
func (p *KafkaPublisher) Observe(snap pipeline.Snapshot) {
	event := NewEvent(snap, p.redactor)
	payload, err := event.marshal()
	if err != nil {
		p.logger.Error("failed to marshal change event", "error", err, "version", snap.Version)
		return
	}

	key := event.DealID
	if key == "" {
		key = string(event.Op)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "op", Value: []byte(event.Op)},
		},
	}); err != nil {
		p.logger.Error("failed to publish change event", "error", err, "deal_id", event.DealID)
	}
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
