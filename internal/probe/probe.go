package probe

import (
	"context"
	"errors"
	"fmt"
)

// Probe performs a bounded health check against a single service. The caller
// provides the deadline through ctx; implementations must not outlive it.
type Probe interface {
	Check(ctx context.Context) error
	Describe() string
}

// ErrTimeout marks a probe that exceeded its deadline. ErrConnection marks a
// probe that could not reach the service at all. ErrUnhealthy marks a reply
// that was received but indicates the service is not serving.
var (
	ErrTimeout    = errors.New("health check timed out")
	ErrConnection = errors.New("health check connection failed")
	ErrUnhealthy  = errors.New("health check reported unhealthy")
)

// StatusError wraps ErrUnhealthy with the HTTP status code that triggered it.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d", e.Code) }
func (e *StatusError) Unwrap() error { return ErrUnhealthy }
