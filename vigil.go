package vigil

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	cfg "github.com/loykin/vigil/internal/config"
	"github.com/loykin/vigil/internal/history"
	"github.com/loykin/vigil/internal/metrics"
	"github.com/loykin/vigil/internal/notify"
	iapi "github.com/loykin/vigil/internal/server"
	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
	"github.com/loykin/vigil/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = service.Spec

type Status = service.Status

type RestartPolicy = supervisor.RestartPolicy

type StoreConfig = store.Config

type Store = store.Store

type HistoryConfig = history.Config

type HistorySink = history.Sink

type Notifier = notify.Notifier

// Supervisor is a thin facade over internal/supervisor.Supervisor for
// embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

// Options mirrors supervisor.Options for embedders.
type Options struct {
	Store    Store
	Notifier Notifier
	Sinks    []HistorySink
	Logger   *slog.Logger
	Policy   RestartPolicy
}

func New(opts Options) *Supervisor {
	return &Supervisor{inner: supervisor.New(supervisor.Options{
		Store:    opts.Store,
		Notifier: opts.Notifier,
		Sinks:    opts.Sinks,
		Logger:   opts.Logger,
		Policy:   opts.Policy,
	})}
}

func (s *Supervisor) Add(ctx context.Context, spec Spec) error { return s.inner.Add(ctx, spec) }
func (s *Supervisor) Start(ctx context.Context) error          { return s.inner.Start(ctx) }
func (s *Supervisor) Shutdown()                                { s.inner.Shutdown() }
func (s *Supervisor) Status(name string) (Status, error)       { return s.inner.Status(name) }
func (s *Supervisor) Statuses() []Status                       { return s.inner.Statuses() }
func (s *Supervisor) Clear(ctx context.Context, name string) error {
	return s.inner.Clear(ctx, name)
}
func (s *Supervisor) CheckNow(ctx context.Context, name string) error {
	return s.inner.CheckNow(ctx, name)
}

// NewStore builds a record store from config.
func NewStore(c StoreConfig) (Store, error) { return store.New(c) }

// NewHistorySink builds a history sink from config.
func NewHistorySink(c HistoryConfig) (HistorySink, error) { return history.NewSink(c) }

// LoadConfig parses and validates a TOML deployment config.
func LoadConfig(path string) (*cfg.FileConfig, error) { return cfg.Load(path) }

// NewHTTPServer starts an HTTP server exposing the control API using the
// given supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
