package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/loykin/vigil/internal/service"
)

// Runner executes restart commands for monitored services. A restart command
// is expected to bring the service back up and exit (a launcher, an init
// script, a systemctl call); the command itself runs under the context
// deadline so a hung launcher cannot stall the watcher.
type Runner struct{}

// Restart invokes the spec's restart command. Stderr output is captured and
// folded into the returned error so operators see why a launcher failed.
func (Runner) Restart(ctx context.Context, spec service.Spec) error {
	cmd := BuildCommand(ctx, spec.RestartCmd)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("restart command: %w: %s", err, msg)
		}
		return fmt.Errorf("restart command: %w", err)
	}
	return nil
}

// BuildCommand constructs an *exec.Cmd for a command string. It avoids
// invoking a shell when not necessary and respects an explicit shell
// invocation already present in the string (e.g. "sh -c 'svc restart'"),
// avoiding double-wrapping with another shell.
func BuildCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// Absolute shell path so PATH overrides in Env cannot break startup.
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", afterC)
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

// parseExplicitShell detects "sh -c <ARG>" style prefixes and returns the
// argument after -c with one pair of surrounding quotes stripped.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if strings.HasPrefix(trim, p) {
			after := trim[len(p):]
			if n := len(after); n >= 2 {
				if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
					after = after[1 : n-1]
				}
			}
			return after, true
		}
	}
	return "", false
}

// ReadPID reads the service's own PID file (first line is the PID). The
// supervisor records the PID obtained this way right after a restart instead
// of rediscovering identity by scanning process tables.
func ReadPID(path string) (int, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return 0, fmt.Errorf("empty pid file path")
	}
	// #nosec G304
	b, err := os.ReadFile(clean)
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}
