package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{"serve": false, "status": false, "clear": false, "check": false, "validate": false}
	for _, c := range root.Commands() {
		name := c.Name()
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("subcommand %q missing", name)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[store]
type = "file"
path = "` + dir + `"

[[services]]
name = "web"
health_command = "true"
restart_command = "true"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := runValidateCommand(&ValidateFlags{ConfigPath: path}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := runValidateCommand(&ValidateFlags{}); err == nil {
		t.Fatalf("validate without config must fail")
	}
}

func TestServeRequiresConfig(t *testing.T) {
	if err := runServeCommand(&ServeFlags{}, nil); err == nil {
		t.Fatalf("serve without config must fail")
	}
}

func TestPidFileHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.pid")
	if err := writePidFile(path, 4242); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pidfile: %v", err)
	}
	if pid, err := strconv.Atoi(string(b)); err != nil || pid != 4242 {
		t.Fatalf("pidfile content %q", string(b))
	}
	if err := removePidFile(path); err != nil {
		t.Fatalf("removePidFile: %v", err)
	}
	if err := removePidFile(""); err != nil {
		t.Fatalf("empty pidfile path must be a no-op: %v", err)
	}
}
