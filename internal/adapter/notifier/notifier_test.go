package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/dealboard/internal/domain"
	"github.com/V4T54L/dealboard/internal/domain/mocks"
)

type mockPublisher struct {
	channel string
	message []byte
	err     error
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.channel = channel
	m.message, _ = message.([]byte)
	return redis.NewIntResult(1, m.err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Notify(context.Background(), domain.Toast{
		Title:       "Deal Deleted",
		Description: "Deal has been removed from pipeline.",
		Severity:    domain.SeverityDestructive,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"msg":"Deal Deleted"`, `"component":"toast"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s missing %s", out, want)
		}
	}
}

func TestRedisNotifier(t *testing.T) {
	tests := []struct {
		name      string
		toast     domain.Toast
		pubErr    error
		wantErr   bool
		wantLevel domain.Severity
	}{
		{
			name:      "Default severity filled in",
			toast:     domain.Toast{Title: "Deal Created", Description: "x has been added to your pipeline."},
			wantLevel: domain.SeverityDefault,
		},
		{
			name:      "Destructive kept",
			toast:     domain.Toast{Title: "Deal Deleted", Severity: domain.SeverityDestructive},
			wantLevel: domain.SeverityDestructive,
		},
		{
			name:    "Publish error",
			toast:   domain.Toast{Title: "Deal Moved"},
			pubErr:  errors.New("connection refused"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockPublisher{err: tt.pubErr}
			n := NewRedisNotifier(client, "dealboard:toasts")

			err := n.Notify(context.Background(), tt.toast)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Notify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if client.channel != "dealboard:toasts" {
				t.Errorf("channel got = %q", client.channel)
			}
			var got domain.Toast
			if err := json.Unmarshal(client.message, &got); err != nil {
				t.Fatalf("failed to unmarshal payload: %v", err)
			}
			if got.Title != tt.toast.Title || got.Severity != tt.wantLevel {
				t.Errorf("payload got = %+v", got)
			}
		})
	}
}

func TestMulti(t *testing.T) {
	ok := &mocks.MockNotifier{}
	failing := &mocks.MockNotifier{NotifyErr: errors.New("sink offline")}
	m := Multi{failing, ok}

	err := m.Notify(context.Background(), domain.Toast{Title: "Deal Created"})
	if err == nil || !strings.Contains(err.Error(), "sink offline") {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(ok.Sent()) != 1 || len(failing.Sent()) != 1 {
		t.Error("expected every sink to receive the toast")
	}
}
