package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/V4T54L/dealboard/internal/adapter/pii"
	"github.com/V4T54L/dealboard/internal/pipeline"
)

// ClientGauge tracks the number of connected stream clients.
type ClientGauge interface {
	Inc()
	Dec()
}

// SSEBroker pushes every pipeline snapshot to connected browsers.
type SSEBroker struct {
	logger   *slog.Logger
	redactor *pii.Redactor
	gauge    ClientGauge
	buffer   int

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	last    []byte
	closed  bool
}

// NewSSEBroker creates a new SSEBroker. Each client may fall behind by at
// most buffer messages before messages to it are dropped. gauge may be nil.
func NewSSEBroker(redactor *pii.Redactor, buffer int, gauge ClientGauge, logger *slog.Logger) *SSEBroker {
	if buffer <= 0 {
		buffer = 16
	}
	return &SSEBroker{
		logger:   logger.With("component", "sse_broker"),
		redactor: redactor,
		gauge:    gauge,
		buffer:   buffer,
		clients:  make(map[chan []byte]struct{}),
	}
}

// Observe is a pipeline.Listener. It never blocks on a slow client.
func (b *SSEBroker) Observe(snap pipeline.Snapshot) {
	if b.redactor != nil {
		snap = b.redactor.RedactSnapshot(snap)
	}
	jsonData, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error("Failed to marshal SSE message", "error", err)
		return
	}
	b.broadcast(jsonData)
}

// ServeHTTP handles new client connections for the SSE stream. The latest
// snapshot is sent immediately so a new client starts with the full board.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	messageChan := make(chan []byte, b.buffer)
	if !b.addClient(messageChan) {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.removeClient(messageChan)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return // Channel was closed
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client and rejects new ones.
func (b *SSEBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for client := range b.clients {
		delete(b.clients, client)
		close(client)
		if b.gauge != nil {
			b.gauge.Dec()
		}
	}
}

func (b *SSEBroker) addClient(client chan []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	if b.last != nil {
		client <- b.last
	}
	b.clients[client] = struct{}{}
	if b.gauge != nil {
		b.gauge.Inc()
	}
	b.logger.Info("SSE client connected", "clients", len(b.clients))
	return true
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		if b.gauge != nil {
			b.gauge.Dec()
		}
		b.logger.Info("SSE client disconnected", "clients", len(b.clients))
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = msg
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			b.logger.Warn("SSE client is falling behind, dropping message")
		}
	}
}
