package domain

import "context"

// Severity selects how a toast is styled.
type Severity string

const (
	SeverityDefault     Severity = "default"
	SeverityDestructive Severity = "destructive"
)

// Toast is the user feedback emitted after a pipeline mutation.
type Toast struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity,omitempty"`
}

// Notifier delivers toasts. Delivery is fire-and-forget: callers log a
// returned error and never undo the mutation that triggered the toast.
type Notifier interface {
	Notify(ctx context.Context, toast Toast) error
}
