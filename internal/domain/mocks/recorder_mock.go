package mocks

import "sync"

// MockRecorder counts recorded mutation outcomes keyed by "op/status".
type MockRecorder struct {
	mu     sync.Mutex
	Counts map[string]int
}

func (m *MockRecorder) RecordMutation(op, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Counts == nil {
		m.Counts = make(map[string]int)
	}
	m.Counts[op+"/"+status]++
}

// Count returns how often op finished with status.
func (m *MockRecorder) Count(op, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[op+"/"+status]
}
