package probe

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh on Unix-like systems")
	}
}

func TestCommandProbeExitZero(t *testing.T) {
	requireUnix(t)
	p := CommandProbe{Command: "true"}
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("healthy command reported error: %v", err)
	}
}

func TestCommandProbeExitNonZero(t *testing.T) {
	requireUnix(t)
	p := CommandProbe{Command: "false"}
	err := p.Check(context.Background())
	if !errors.Is(err, ErrUnhealthy) {
		t.Fatalf("err = %v, want ErrUnhealthy", err)
	}
}

func TestCommandProbeShellMetacharacters(t *testing.T) {
	requireUnix(t)
	p := CommandProbe{Command: "test -n \"$HOME\" && true"}
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("shell command failed: %v", err)
	}
}

func TestCommandProbeTimeout(t *testing.T) {
	requireUnix(t)
	p := CommandProbe{Command: "sleep 5"}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Check(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCommandProbeMissingBinary(t *testing.T) {
	requireUnix(t)
	p := CommandProbe{Command: "definitely-not-a-real-binary-12345"}
	if err := p.Check(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestCommandProbeDescribe(t *testing.T) {
	p := CommandProbe{Command: "pg_isready"}
	if got := p.Describe(); got != "cmd:pg_isready" {
		t.Fatalf("Describe = %q", got)
	}
}
