package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return m.err
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type mockStream struct {
	added chan *redis.XAddArgs
	err   error
}

func (m *mockStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	m.added <- a
	return redis.NewStringResult("1-0", m.err)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore() *pipeline.Store {
	return pipeline.NewStore(domain.DefaultRegistry(), pipeline.WithLogger(testLogger()))
}

func addDeal(t *testing.T, store *pipeline.Store) domain.Deal {
	t.Helper()
	d, err := store.Add(domain.NewDealFields{
		Title: "Renewal", Email: "jane@acme.com", Value: 10, Probability: 50,
		Stage: domain.StageQualified, Priority: domain.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return d
}

func TestKafkaPublisher_Observe(t *testing.T) {
	writer := &mockWriter{}
	redactor := pii.NewRedactor([]string{"email"}, testLogger())
	pub := NewKafkaPublisherWithWriter(writer, redactor, testLogger())

	store := newStore()
	store.Subscribe(pub.Observe)
	deal := addDeal(t, store)
	if _, err := store.Move(deal.ID, domain.StageProposal); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if len(writer.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(writer.messages))
	}
	msg := writer.messages[1]
	if string(msg.Key) != deal.ID {
		t.Errorf("key got = %s, want %s", msg.Key, deal.ID)
	}

	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if event.Op != pipeline.OpMoved || event.FromStage != domain.StageQualified || event.ToStage != domain.StageProposal {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Deal == nil || event.Deal.Email != pii.RedactedPlaceholder {
		t.Errorf("expected redacted deal in event, got %+v", event.Deal)
	}
	if event.Version != 2 {
		t.Errorf("version got = %d, want 2", event.Version)
	}

	if err := pub.Close(); err != nil || !writer.closed {
		t.Errorf("expected writer to be closed, err = %v", err)
	}
}

func TestKafkaPublisher_WriteErrorDoesNotPanic(t *testing.T) {
	writer := &mockWriter{err: errors.New("broker down")}
	pub := NewKafkaPublisherWithWriter(writer, nil, testLogger())

	store := newStore()
	store.Subscribe(pub.Observe)
	addDeal(t, store)

	if store.Len() != 1 {
		t.Error("publisher failure must not affect the store")
	}
}

func TestKafkaPublisher_ImportKeyedByOp(t *testing.T) {
	writer := &mockWriter{}
	pub := NewKafkaPublisherWithWriter(writer, nil, testLogger())

	pub.Observe(pipeline.Snapshot{Version: 1, Change: pipeline.Change{Op: pipeline.OpImported, Count: 4}})

	if string(writer.messages[0].Key) != "imported" {
		t.Errorf("key got = %s, want imported", writer.messages[0].Key)
	}
	var event Event
	if err := json.Unmarshal(writer.messages[0].Value, &event); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if event.Deal != nil || event.Count != 4 {
		t.Errorf("unexpected import event: %+v", event)
	}
}

func TestRedisStreamPublisher_Run(t *testing.T) {
	client := &mockStream{added: make(chan *redis.XAddArgs, 4)}
	pub := NewRedisStreamPublisher(client, "dealboard:changes", 1000, 8, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	store := newStore()
	store.Subscribe(pub.Observe)
	deal := addDeal(t, store)

	select {
	case args := <-client.added:
		if args.Stream != "dealboard:changes" || args.MaxLen != 1000 || !args.Approx {
			t.Errorf("unexpected XADD args: %+v", args)
		}
		values := args.Values.(map[string]interface{})
		if values["deal_id"] != deal.ID || values["op"] != "created" {
			t.Errorf("unexpected values: %v", values)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for XADD")
	}
}

func TestRedisStreamPublisher_DropsWhenFull(t *testing.T) {
	client := &mockStream{added: make(chan *redis.XAddArgs, 4)}
	pub := NewRedisStreamPublisher(client, "s", 10, 1, nil, testLogger())

	// no Run loop: the second event overflows the queue
	pub.Observe(pipeline.Snapshot{Version: 1, Change: pipeline.Change{Op: pipeline.OpImported}})
	pub.Observe(pipeline.Snapshot{Version: 2, Change: pipeline.Change{Op: pipeline.OpImported}})

	if len(pub.queue) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(pub.queue))
	}
	if got := (<-pub.queue).Version; got != 1 {
		t.Errorf("expected the first event to be kept, got version %d", got)
	}
}
