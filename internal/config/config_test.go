package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
env = ["REGION=eu-west-1"]

[log]
level = "debug"

[policy]
check_interval = "30s"
probe_timeout = "5s"
cooldown = "2m"
max_restarts_per_day = 4

[store]
type = "sqlite"
path = "/var/lib/vigil/state.db"

[history]
type = "sqlite"
dsn = "/var/lib/vigil/history.db"

[notifications.telegram]
token = "bot-token"
chat_id = "42"

[[notifications.webhooks]]
url = "https://hooks.example.com/vigil"

[metrics]
enabled = true
listen = ":9090"

[server]
listen = ":8080"
base_path = "/api"

[[services]]
name = "web"
health_url = "http://127.0.0.1:8000/health"
restart_command = "systemctl restart web"
max_restarts_per_day = 2

[[services]]
name = "db"
health_command = "pg_isready -q"
restart_command = "systemctl restart postgresql"
env = ["PGHOST=localhost"]
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.Log.Level != "debug" {
		t.Fatalf("log level = %q", fc.Log.Level)
	}
	if fc.Policy.CheckInterval != 30*time.Second || fc.Policy.Cooldown != 2*time.Minute {
		t.Fatalf("policy not parsed: %+v", fc.Policy)
	}
	if fc.Store.Type != "sqlite" || fc.Store.Path == "" {
		t.Fatalf("store not parsed: %+v", fc.Store)
	}
	if fc.History == nil || fc.History.Type != "sqlite" {
		t.Fatalf("history not parsed: %+v", fc.History)
	}
	if fc.Notifications.Telegram == nil || fc.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("telegram not parsed: %+v", fc.Notifications.Telegram)
	}
	if len(fc.Notifications.Webhooks) != 1 {
		t.Fatalf("webhooks not parsed: %+v", fc.Notifications.Webhooks)
	}
	if !fc.Metrics.Enabled || fc.Metrics.Listen != ":9090" {
		t.Fatalf("metrics not parsed: %+v", fc.Metrics)
	}
	if len(fc.Services) != 2 {
		t.Fatalf("services = %d", len(fc.Services))
	}
	web := fc.Services[0]
	if web.Name != "web" || web.MaxRestarts != 2 {
		t.Fatalf("web spec: %+v", web)
	}
	db := fc.Services[1]
	// Global env prepends; per-service entries stay last so they win.
	if len(db.Env) != 2 || db.Env[0] != "REGION=eu-west-1" || db.Env[1] != "PGHOST=localhost" {
		t.Fatalf("env merge: %+v", db.Env)
	}
}

func TestLoadRejectsInvalidService(t *testing.T) {
	path := writeConfig(t, `
[[services]]
name = "broken"
restart_command = "true"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Fatalf("invalid service accepted: %v", err)
	}
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeConfig(t, `
[[services]]
name = "web"
health_command = "true"
restart_command = "true"

[[services]]
name = "web"
health_command = "true"
restart_command = "true"
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("duplicate names accepted: %v", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "svc.env")
	if err := os.WriteFile(envPath, []byte("# comment\nFROM_FILE=1\nOVERRIDDEN=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	path := writeConfig(t, `
env = ["OVERRIDDEN=toml"]
env_files = ["`+envPath+`"]

[[services]]
name = "web"
health_command = "true"
restart_command = "true"
`)
	fc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	env := map[string]bool{}
	for _, kv := range fc.Services[0].Env {
		env[kv] = true
	}
	if !env["FROM_FILE=1"] {
		t.Fatalf("env file not merged: %+v", fc.Services[0].Env)
	}
	if !env["OVERRIDDEN=toml"] || env["OVERRIDDEN=file"] {
		t.Fatalf("top-level env must win over env_files: %+v", fc.Services[0].Env)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("missing config accepted")
	}
}
