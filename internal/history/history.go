package history

import (
	"context"
	"time"
)

// EventType defines the kind of supervision lifecycle event.
type EventType string

const (
	EventStateChange     EventType = "state_change"
	EventRestartAttempt  EventType = "restart_attempt"
	EventRestartSuccess  EventType = "restart_success"
	EventRestartFailure  EventType = "restart_failure"
	EventBudgetExhausted EventType = "budget_exhausted"
	EventOperatorClear   EventType = "operator_clear"
)

// Event is one supervision lifecycle event, exported to external analytics
// systems.
type Event struct {
	Type          EventType `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	Service       string    `json:"service"`
	FromState     string    `json:"from_state,omitempty"`
	ToState       string    `json:"to_state,omitempty"`
	PID           int       `json:"pid,omitempty"`
	RestartsToday int       `json:"restarts_today"`
	Detail        string    `json:"detail,omitempty"`
}

// Sink is a destination for history events. Implementations must be safe for
// concurrent use; delivery is best-effort from the supervisor's point of view.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
