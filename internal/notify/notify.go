package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event is one operator-facing lifecycle notification.
type Event struct {
	Service    string    `json:"service"`
	Kind       string    `json:"kind"` // restart_attempt, restart_success, budget_exhausted, recovered, ...
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers an event to an operator channel. Delivery is best-effort:
// callers log and swallow errors, supervision never stops because a channel
// is down.
type Notifier interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to several notifiers. Individual failures are
// logged and do not prevent delivery to the remaining channels; Send always
// returns nil.
type Multi struct {
	Notifiers []Notifier
	Logger    *slog.Logger
}

func (m Multi) Send(ctx context.Context, e Event) error {
	for _, n := range m.Notifiers {
		if err := n.Send(ctx, e); err != nil {
			if m.Logger != nil {
				m.Logger.Warn("notification delivery failed",
					"service", e.Service, "kind", e.Kind, "error", err)
			}
		}
	}
	return nil
}
