package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/loykin/vigil/internal/history"
	"github.com/loykin/vigil/internal/notify"
	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
)

// Options wires a Supervisor's dependencies. Store is required; the rest are
// optional.
type Options struct {
	Store    store.Store
	Notifier notify.Notifier
	Sinks    []history.Sink
	Logger   *slog.Logger
	Policy   RestartPolicy
}

// Supervisor owns one watcher goroutine per managed service. It never
// launches services itself; it observes them and invokes their restart
// commands when the policy allows.
type Supervisor struct {
	mu       sync.Mutex
	opts     Options
	watchers map[string]*watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Policy = opts.Policy.Normalized()
	return &Supervisor{opts: opts, watchers: make(map[string]*watcher)}
}

// Add registers a service. When the supervisor is already running the
// watcher starts immediately, resuming from any persisted record.
func (s *Supervisor) Add(ctx context.Context, spec service.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyManaged, spec.Name)
	}
	w := newWatcher(spec, s.opts.Policy, s.opts.Store, s.opts.Notifier, s.opts.Sinks, s.opts.Logger)
	s.watchers[spec.Name] = w
	if s.started {
		s.resumeLocked(ctx, w)
		s.launchLocked(ctx, w)
	}
	return nil
}

// Start ensures the store schema, resumes persisted records and launches one
// watcher goroutine per service. The context governs the whole supervision
// run: cancel it (or call Shutdown) to stop.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("supervisor already started")
	}
	if s.opts.Store == nil {
		return fmt.Errorf("supervisor requires a store")
	}
	if err := s.opts.Store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure store schema: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	for _, w := range s.watchers {
		s.resumeLocked(runCtx, w)
		s.launchLocked(runCtx, w)
	}
	s.opts.Logger.Info("supervisor started", "services", len(s.watchers))
	return nil
}

func (s *Supervisor) resumeLocked(ctx context.Context, w *watcher) {
	rec, err := s.opts.Store.Get(ctx, w.spec.Name)
	switch {
	case err == nil:
		w.resume(rec)
		s.opts.Logger.Info("resumed supervision record",
			"service", w.spec.Name, "state", rec.State,
			"restarts_today", rec.RestartsToday, "day_key", rec.DayKey)
	case store.IsNotFound(err):
	default:
		s.opts.Logger.Warn("failed to load supervision record", "service", w.spec.Name, "error", err)
	}
}

func (s *Supervisor) launchLocked(ctx context.Context, w *watcher) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run(ctx)
	}()
}

// Shutdown stops all watchers and waits for them to flush their records.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()
	cancel()
	s.wg.Wait()
	s.opts.Logger.Info("supervisor stopped")
}

// Status returns the snapshot for one service.
func (s *Supervisor) Status(name string) (service.Status, error) {
	s.mu.Lock()
	w, ok := s.watchers[name]
	s.mu.Unlock()
	if !ok {
		return service.Status{}, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return w.Status(), nil
}

// Statuses returns snapshots for all services, sorted by name.
func (s *Supervisor) Statuses() []service.Status {
	s.mu.Lock()
	ws := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.mu.Unlock()
	out := make([]service.Status, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear resets a service's restart counters and lifts failed_permanently.
// Executed on the watcher goroutine to keep single-writer discipline.
func (s *Supervisor) Clear(ctx context.Context, name string) error {
	return s.control(ctx, name, ctrlClear)
}

// CheckNow schedules an immediate health check outside the regular interval.
func (s *Supervisor) CheckNow(ctx context.Context, name string) error {
	return s.control(ctx, name, ctrlCheck)
}

func (s *Supervisor) control(ctx context.Context, name string, typ ctrlType) error {
	s.mu.Lock()
	w, ok := s.watchers[name]
	started := s.started
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	if !started {
		return fmt.Errorf("supervisor not started")
	}
	reply := make(chan error, 1)
	select {
	case w.ctrl <- ctrlMsg{typ: typ, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return fmt.Errorf("watcher for %s has stopped", name)
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return fmt.Errorf("watcher for %s has stopped", name)
	}
}
