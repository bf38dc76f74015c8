package store

import (
	"context"
	"errors"
	"time"
)

// Record is the supervision state persisted for one monitored service. It is
// written on every state transition so a supervisor restart resumes
// restart-budget accounting without loss. DayKey is the calendar date
// (YYYY-MM-DD, local time) the counter belongs to; the counter rolls to zero
// exactly when the derived day key changes.
type Record struct {
	Name          string    `json:"name"`
	PID           int       `json:"pid"`
	State         string    `json:"state"`
	RestartsToday int       `json:"restarts_today"`
	LastRestartAt time.Time `json:"last_restart_at"`
	DayKey        string    `json:"day_key"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ErrNotFound is returned by Get when no record exists for a service.
var ErrNotFound = errors.New("supervision record not found")

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store persists supervision records. Each service's record has a single
// writer (its watcher goroutine); implementations only need to make
// individual Save calls atomic.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, name string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Config selects and parameterizes a store backend.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "file", "sqlite", "postgres"

	// file: directory for per-service JSON records; sqlite: database path
	Path string `toml:"path,omitempty" mapstructure:"path"`

	// postgres
	Host     string `toml:"host,omitempty" mapstructure:"host"`
	Port     int    `toml:"port,omitempty" mapstructure:"port"`
	Database string `toml:"database,omitempty" mapstructure:"database"`
	Username string `toml:"username,omitempty" mapstructure:"username"`
	Password string `toml:"password,omitempty" mapstructure:"password"`
	SSLMode  string `toml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
	DSN      string `toml:"dsn,omitempty" mapstructure:"dsn"` // overrides the fields above
}
