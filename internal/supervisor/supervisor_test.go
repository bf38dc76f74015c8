package supervisor

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh on Unix-like systems")
	}
}

func waitUntilS(timeout, step time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(step)
	}
	return fn()
}

func TestSupervisorRunsCommandProbe(t *testing.T) {
	requireUnix(t)
	sup := New(Options{
		Store: newMemStore(),
		Policy: RestartPolicy{
			CheckInterval: 50 * time.Millisecond,
			ProbeTimeout:  20 * time.Millisecond,
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := sup.Add(ctx, service.Spec{
		Name:          "ok",
		HealthCommand: "true",
		RestartCmd:    "true",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Shutdown()

	ok := waitUntilS(2*time.Second, 20*time.Millisecond, func() bool {
		st, err := sup.Status("ok")
		return err == nil && st.State == "healthy"
	})
	if !ok {
		st, _ := sup.Status("ok")
		t.Fatalf("service never became healthy: %+v", st)
	}
}

func TestSupervisorRejectsDuplicatesAndInvalid(t *testing.T) {
	sup := New(Options{Store: newMemStore()})
	ctx := context.Background()
	spec := service.Spec{Name: "a", HealthCommand: "true", RestartCmd: "true"}
	if err := sup.Add(ctx, spec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sup.Add(ctx, spec); !errors.Is(err, ErrAlreadyManaged) {
		t.Fatalf("duplicate Add err = %v", err)
	}
	bad := service.Spec{Name: "b", RestartCmd: "true"} // no probe at all
	if err := sup.Add(ctx, bad); err == nil {
		t.Fatalf("invalid spec accepted")
	}
}

func TestSupervisorUnknownService(t *testing.T) {
	sup := New(Options{Store: newMemStore()})
	if _, err := sup.Status("ghost"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("Status err = %v", err)
	}
	ctx := context.Background()
	if err := sup.Clear(ctx, "ghost"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("Clear err = %v", err)
	}
	if err := sup.CheckNow(ctx, "ghost"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("CheckNow err = %v", err)
	}
}

func TestSupervisorResumesRecords(t *testing.T) {
	requireUnix(t)
	ms := newMemStore()
	_ = ms.Save(context.Background(), store.Record{
		Name:          "ok",
		State:         "unhealthy",
		RestartsToday: 4,
		DayKey:        DayKey(time.Now()),
	})
	sup := New(Options{
		Store: ms,
		Policy: RestartPolicy{
			CheckInterval: 50 * time.Millisecond,
			ProbeTimeout:  20 * time.Millisecond,
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Add(ctx, service.Spec{Name: "ok", HealthCommand: "true", RestartCmd: "true"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Shutdown()

	ok := waitUntilS(2*time.Second, 20*time.Millisecond, func() bool {
		st, err := sup.Status("ok")
		return err == nil && st.RestartsToday == 4
	})
	if !ok {
		st, _ := sup.Status("ok")
		t.Fatalf("budget accounting not resumed: %+v", st)
	}
}

func TestSupervisorClearViaControl(t *testing.T) {
	requireUnix(t)
	ms := newMemStore()
	_ = ms.Save(context.Background(), store.Record{
		Name:          "ok",
		State:         "failed_permanently",
		RestartsToday: 5,
		DayKey:        DayKey(time.Now()),
	})
	sup := New(Options{
		Store: ms,
		Policy: RestartPolicy{
			CheckInterval: 50 * time.Millisecond,
			ProbeTimeout:  20 * time.Millisecond,
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Add(ctx, service.Spec{Name: "ok", HealthCommand: "true", RestartCmd: "true"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Shutdown()

	st, err := sup.Status("ok")
	if err != nil || st.State != "failed_permanently" {
		t.Fatalf("terminal state not resumed: %+v err=%v", st, err)
	}
	cctx, ccancel := context.WithTimeout(ctx, 2*time.Second)
	defer ccancel()
	if err := sup.Clear(cctx, "ok"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	ok := waitUntilS(2*time.Second, 20*time.Millisecond, func() bool {
		st, err := sup.Status("ok")
		return err == nil && st.State == "healthy" && st.RestartsToday == 0
	})
	if !ok {
		st, _ := sup.Status("ok")
		t.Fatalf("service not supervised again after clear: %+v", st)
	}
}

func TestSupervisorStatusesSorted(t *testing.T) {
	sup := New(Options{Store: newMemStore()})
	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		spec := service.Spec{Name: name, HealthCommand: "true", RestartCmd: "true"}
		if err := sup.Add(ctx, spec); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
	}
	got := sup.Statuses()
	if len(got) != 3 || got[0].Name != "alpha" || got[1].Name != "mid" || got[2].Name != "zeta" {
		t.Fatalf("statuses not sorted: %+v", got)
	}
}
