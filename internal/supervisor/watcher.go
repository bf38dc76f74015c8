package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/vigil/internal/history"
	"github.com/loykin/vigil/internal/metrics"
	"github.com/loykin/vigil/internal/notify"
	"github.com/loykin/vigil/internal/probe"
	"github.com/loykin/vigil/internal/runner"
	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
)

// restarter invokes the restart command for a service. Satisfied by
// runner.Runner; replaced by fakes in tests.
type restarter interface {
	Restart(ctx context.Context, spec service.Spec) error
}

type ctrlType int

const (
	ctrlCheck ctrlType = iota
	ctrlClear
)

type ctrlMsg struct {
	typ   ctrlType
	reply chan error
}

// watcher owns the supervision state machine for a single service. All
// mutations happen on the run goroutine (single-writer discipline); mu only
// guards concurrent snapshot reads by Status callers.
type watcher struct {
	spec   service.Spec
	policy RestartPolicy
	probe  probe.Probe
	rst    restarter
	st     store.Store
	notif  notify.Notifier
	sinks  []history.Sink
	log    *slog.Logger
	now    func() time.Time

	mu               sync.RWMutex
	state            service.State
	pid              int
	consecutiveFails int
	restartsToday    int
	dayKey           string
	lastRestartAt    time.Time
	lastCheckedAt    time.Time
	lastErr          string
	persistOK        bool

	ctrl chan ctrlMsg
	done chan struct{}
}

func newWatcher(spec service.Spec, pol RestartPolicy, st store.Store, notif notify.Notifier, sinks []history.Sink, log *slog.Logger) *watcher {
	var p probe.Probe
	if spec.HealthURL != "" {
		p = probe.HTTPProbe{URL: spec.HealthURL}
	} else {
		p = probe.CommandProbe{Command: spec.HealthCommand}
	}
	if log == nil {
		log = slog.Default()
	}
	return &watcher{
		spec:      spec,
		policy:    pol.Merge(spec),
		probe:     p,
		rst:       runner.Runner{},
		st:        st,
		notif:     notif,
		sinks:     sinks,
		log:       log,
		now:       time.Now,
		state:     service.StateUnknown,
		persistOK: true,
		ctrl:      make(chan ctrlMsg, 4),
		done:      make(chan struct{}),
	}
}

// resume seeds the watcher from a persisted record so restart-budget
// accounting survives a supervisor restart. Live health is unknown at boot
// except for a terminal record, which stays terminal until cleared.
func (w *watcher) resume(rec store.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pid = rec.PID
	w.restartsToday = rec.RestartsToday
	w.dayKey = rec.DayKey
	w.lastRestartAt = rec.LastRestartAt
	if service.ParseState(rec.State) == service.StateFailedPermanently {
		w.state = service.StateFailedPermanently
	}
}

func (w *watcher) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.policy.CheckInterval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			// Flush state before exiting; the parent context is gone so the
			// flush gets its own bounded one.
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = w.persist(fctx)
			cancel()
			return
		case msg := <-w.ctrl:
			var err error
			switch msg.typ {
			case ctrlCheck:
				w.tick(ctx)
			case ctrlClear:
				err = w.clear(ctx)
			}
			if msg.reply != nil {
				msg.reply <- err
			}
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one probe and applies the restart policy to the result.
func (w *watcher) tick(ctx context.Context) {
	if w.state == service.StateFailedPermanently {
		return
	}
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, w.policy.ProbeTimeout)
	err := w.probe.Check(cctx)
	cancel()
	metrics.ObserveCheckDuration(w.spec.Name, time.Since(start).Seconds())
	metrics.IncHealthCheck(w.spec.Name, err == nil)

	if err == nil {
		hadFails := w.consecutiveFails
		w.setCheckResult(0, "")
		if w.state != service.StateHealthy {
			w.transition(ctx, service.StateHealthy, "")
			if hadFails > 0 {
				w.notify(ctx, "recovered",
					fmt.Sprintf("🟢 %s is healthy again after %d failed checks", w.spec.Name, hadFails))
			}
			_ = w.persist(ctx)
		}
		return
	}

	fails := w.consecutiveFails + 1
	w.setCheckResult(fails, err.Error())
	w.log.Warn("health check failed", "service", w.spec.Name, "consecutive", fails, "error", err)
	if w.state != service.StateUnhealthy {
		w.transition(ctx, service.StateUnhealthy, err.Error())
		_ = w.persist(ctx)
	}
	if fails < w.policy.AlertAfter {
		return
	}
	// One restart per detected failure, not per poll: after an attempt the
	// service must stay down past the cooldown before the next attempt.
	if !w.lastRestartAt.IsZero() && w.now().Sub(w.lastRestartAt) < w.policy.Cooldown {
		return
	}
	if rerr := w.restart(ctx, err); rerr != nil {
		w.log.Error("restart not performed", "service", w.spec.Name, "error", rerr)
	}
}

// restart spends one unit of the daily budget and invokes the restart
// command. The spend is persisted before the command runs; if it cannot be
// recorded durably the restart is withheld rather than performed untracked.
func (w *watcher) restart(ctx context.Context, cause error) error {
	today := DayKey(w.now())
	if today != w.dayKey {
		w.setDay(today, 0)
	}
	if w.restartsToday >= w.policy.MaxRestartsPerDay {
		w.transition(ctx, service.StateFailedPermanently, ErrRestartBudgetExhausted.Error())
		_ = w.persist(ctx)
		metrics.IncBudgetExhausted(w.spec.Name)
		w.event(ctx, history.EventBudgetExhausted, "", "", cause.Error())
		w.notify(ctx, "budget_exhausted",
			fmt.Sprintf("⚠️ %s: restart budget exhausted (%d/%d today), manual intervention required",
				w.spec.Name, w.restartsToday, w.policy.MaxRestartsPerDay))
		return ErrRestartBudgetExhausted
	}

	prevCount, prevAt := w.restartsToday, w.lastRestartAt
	w.setRestartAttempt(prevCount+1, w.now())
	if err := w.persist(ctx); err != nil {
		w.setRestartAttempt(prevCount, prevAt)
		return fmt.Errorf("%w: %v", ErrStatePersistence, err)
	}

	w.transition(ctx, service.StateRestarting, "")
	metrics.IncRestart(w.spec.Name)
	w.event(ctx, history.EventRestartAttempt, "", "", cause.Error())
	w.notify(ctx, "restart_attempt",
		fmt.Sprintf("🔴 %s is unhealthy (%v), attempting restart %d/%d",
			w.spec.Name, cause, w.restartsToday, w.policy.MaxRestartsPerDay))

	rctx, cancel := context.WithTimeout(ctx, w.policy.CommandTimeout)
	err := w.rst.Restart(rctx, w.spec)
	cancel()
	if err != nil {
		metrics.IncRestartFailure(w.spec.Name)
		w.transition(ctx, service.StateUnhealthy, err.Error())
		_ = w.persist(ctx)
		w.event(ctx, history.EventRestartFailure, "", "", err.Error())
		w.notify(ctx, "restart_failure",
			fmt.Sprintf("🔴 %s: restart command failed: %v", w.spec.Name, err))
		return fmt.Errorf("%w: %v", ErrRestartCommandFailed, err)
	}

	if w.awaitHealthy(ctx) {
		if w.spec.PIDFile != "" {
			if pid, perr := runner.ReadPID(w.spec.PIDFile); perr == nil {
				w.setPID(pid)
			}
		}
		w.setCheckResult(0, "")
		w.transition(ctx, service.StateHealthy, "")
		w.event(ctx, history.EventRestartSuccess, "", "", "")
		w.notify(ctx, "restart_success",
			fmt.Sprintf("🟢 %s is available again after restart", w.spec.Name))
	} else {
		w.transition(ctx, service.StateUnhealthy, "still unhealthy after restart")
	}
	_ = w.persist(ctx)
	return nil
}

// awaitHealthy polls the probe until it succeeds or the startup grace window
// is spent. Attempt-bounded so the wait is deterministic.
func (w *watcher) awaitHealthy(ctx context.Context) bool {
	step := w.policy.StartupGrace / 10
	if step < 50*time.Millisecond {
		step = 50 * time.Millisecond
	}
	attempts := int(w.policy.StartupGrace/step) + 1
	for i := 0; i < attempts; i++ {
		cctx, cancel := context.WithTimeout(ctx, w.policy.ProbeTimeout)
		err := w.probe.Check(cctx)
		cancel()
		if err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
	return false
}

// clear is the operator path out of failed_permanently: counters reset,
// state back to unknown, record persisted.
func (w *watcher) clear(ctx context.Context) error {
	w.setDay(DayKey(w.now()), 0)
	w.setCheckResult(0, "")
	w.setRestartAttempt(0, time.Time{})
	w.transition(ctx, service.StateUnknown, "operator clear")
	if err := w.persist(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersistence, err)
	}
	w.event(ctx, history.EventOperatorClear, "", "", "")
	w.notify(ctx, "operator_clear",
		fmt.Sprintf("%s: restart budget cleared by operator", w.spec.Name))
	return nil
}

func (w *watcher) persist(ctx context.Context) error {
	w.mu.RLock()
	rec := store.Record{
		Name:          w.spec.Name,
		PID:           w.pid,
		State:         w.state.String(),
		RestartsToday: w.restartsToday,
		LastRestartAt: w.lastRestartAt,
		DayKey:        w.dayKey,
	}
	prevOK := w.persistOK
	w.mu.RUnlock()

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := w.st.Save(sctx, rec)
	cancel()

	w.mu.Lock()
	w.persistOK = err == nil
	w.mu.Unlock()

	if err != nil {
		w.log.Error("failed to persist supervision record", "service", w.spec.Name, "error", err)
		if prevOK {
			// Alert once per persistence outage, not once per write.
			w.notify(ctx, "persistence_error",
				fmt.Sprintf("⚠️ %s: cannot persist supervision state: %v", w.spec.Name, err))
		}
		return err
	}
	return nil
}

func (w *watcher) transition(ctx context.Context, to service.State, detail string) {
	w.mu.Lock()
	from := w.state
	w.state = to
	w.mu.Unlock()
	if from == to {
		return
	}
	metrics.RecordStateTransition(w.spec.Name, from.String(), to.String())
	metrics.SetCurrentState(w.spec.Name, from.String(), false)
	metrics.SetCurrentState(w.spec.Name, to.String(), true)
	w.log.Info("state transition", "service", w.spec.Name, "from", from.String(), "to", to.String())
	w.event(ctx, history.EventStateChange, from.String(), to.String(), detail)
}

// event exports a lifecycle event to the configured history sinks.
// Best-effort: sink errors are logged and swallowed.
func (w *watcher) event(ctx context.Context, typ history.EventType, from, to, detail string) {
	if len(w.sinks) == 0 {
		return
	}
	e := history.Event{
		Type:          typ,
		OccurredAt:    w.now().UTC(),
		Service:       w.spec.Name,
		FromState:     from,
		ToState:       to,
		PID:           w.pid,
		RestartsToday: w.restartsToday,
		Detail:        detail,
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, s := range w.sinks {
		if err := s.Send(sctx, e); err != nil {
			w.log.Warn("history sink send failed", "service", w.spec.Name, "error", err)
		}
	}
}

func (w *watcher) notify(ctx context.Context, kind, message string) {
	if w.notif == nil {
		return
	}
	nctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := w.notif.Send(nctx, notify.Event{
		Service:    w.spec.Name,
		Kind:       kind,
		Message:    message,
		OccurredAt: w.now(),
	})
	if err != nil {
		w.log.Warn("notification delivery failed", "service", w.spec.Name, "kind", kind, "error", err)
	}
}

// --- snapshot field setters (run goroutine only) ---

func (w *watcher) setCheckResult(fails int, lastErr string) {
	w.mu.Lock()
	w.consecutiveFails = fails
	w.lastErr = lastErr
	w.lastCheckedAt = w.now()
	w.mu.Unlock()
}

func (w *watcher) setRestartAttempt(count int, at time.Time) {
	w.mu.Lock()
	w.restartsToday = count
	w.lastRestartAt = at
	w.mu.Unlock()
}

func (w *watcher) setDay(key string, count int) {
	w.mu.Lock()
	w.dayKey = key
	w.restartsToday = count
	w.mu.Unlock()
}

func (w *watcher) setPID(pid int) {
	w.mu.Lock()
	w.pid = pid
	w.mu.Unlock()
}

// Status returns a point-in-time snapshot, safe to call from any goroutine.
func (w *watcher) Status() service.Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return service.Status{
		Name:             w.spec.Name,
		State:            w.state.String(),
		PID:              w.pid,
		ConsecutiveFails: w.consecutiveFails,
		RestartsToday:    w.restartsToday,
		DayKey:           w.dayKey,
		LastRestartAt:    w.lastRestartAt,
		LastCheckedAt:    w.lastCheckedAt,
		LastError:        w.lastErr,
		ProbedBy:         w.probe.Describe(),
	}
}
