package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/vigil/internal/history"
	"github.com/loykin/vigil/internal/logger"
	"github.com/loykin/vigil/internal/service"
	"github.com/loykin/vigil/internal/store"
	"github.com/loykin/vigil/internal/supervisor"
	"github.com/spf13/viper"
)

// FileConfig is the top-level TOML structure for a supervisor deployment.
type FileConfig struct {
	Env      []string `toml:"env" mapstructure:"env"`
	EnvFiles []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Log           logger.Config            `toml:"log" mapstructure:"log"`
	Policy        supervisor.RestartPolicy `toml:"policy" mapstructure:"policy"`
	Store         store.Config             `toml:"store" mapstructure:"store"`
	History       *history.Config          `toml:"history" mapstructure:"history"`
	Notifications NotifyConfig             `toml:"notifications" mapstructure:"notifications"`
	Metrics       MetricsConfig            `toml:"metrics" mapstructure:"metrics"`
	Server        ServerConfig             `toml:"server" mapstructure:"server"`
	Services      []service.Spec           `toml:"services" mapstructure:"services"`
}

// NotifyConfig declares the operator notification channels.
type NotifyConfig struct {
	Telegram *TelegramConfig `toml:"telegram" mapstructure:"telegram"`
	Webhooks []WebhookConfig `toml:"webhooks" mapstructure:"webhooks"`
}

type TelegramConfig struct {
	Token  string `toml:"token" mapstructure:"token"`
	ChatID string `toml:"chat_id" mapstructure:"chat_id"`
}

type WebhookConfig struct {
	URL string `toml:"url" mapstructure:"url"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// ServerConfig controls the supervisor's HTTP control API.
type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
	PIDFile  string `toml:"pidfile" mapstructure:"pidfile"`
	LogFile  string `toml:"logfile" mapstructure:"logfile"`
}

// Load parses and validates a TOML config file. Service specs get the merged
// global environment appended ahead of their own entries.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	genv, err := fc.globalEnv()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(fc.Services))
	for i := range fc.Services {
		sp := &fc.Services[i]
		if err := sp.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[sp.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q", sp.Name)
		}
		seen[sp.Name] = struct{}{}
		if len(genv) > 0 {
			sp.Env = append(append([]string{}, genv...), sp.Env...)
		}
	}
	if fc.History != nil && fc.History.Type == "" {
		fc.History = nil
	}
	return &fc, nil
}

// globalEnv merges OS env (when enabled), env_files in order, then the
// top-level env list, later sources overriding earlier ones.
func (fc *FileConfig) globalEnv() ([]string, error) {
	m := make(map[string]string)
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				m[kv[:i]] = kv[i+1:]
			}
		}
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// loadEnvFile parses KEY=VALUE lines; # comments and blank lines are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			m[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return m, nil
}
