package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/dealboard/internal/domain"
)

// MockNotifier is a mock implementation of domain.Notifier for testing.
type MockNotifier struct {
	mu        sync.Mutex
	Toasts    []domain.Toast
	NotifyErr error
}

func (m *MockNotifier) Notify(ctx context.Context, toast domain.Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Toasts = append(m.Toasts, toast)
	return m.NotifyErr
}

// Sent returns a copy of the toasts received so far.
func (m *MockNotifier) Sent() []domain.Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Toast, len(m.Toasts))
	copy(out, m.Toasts)
	return out
}
