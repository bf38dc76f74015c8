package probe

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandProbe runs a shell command that exits 0 when the service is healthy.
// The command is killed when the context deadline expires.
type CommandProbe struct {
	Command string
}

// buildShellAwareCommand avoids invoking a shell unless shell metacharacters
// are present (G204 mitigation).
func buildShellAwareCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/true")
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.CommandContext(ctx, name, args...)
}

func (p CommandProbe) Check(ctx context.Context) error {
	cmd := buildShellAwareCommand(ctx, p.Command)
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, p.Command)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// non-zero exit code means the service is down
		return fmt.Errorf("%w: exit code %d", ErrUnhealthy, ee.ExitCode())
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

func (p CommandProbe) Describe() string { return "cmd:" + p.Command }
