package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Spec describes one external service the supervisor watches. Exactly one of
// HealthURL or HealthCommand must be set; the restart command is mandatory.
type Spec struct {
	Name          string        `json:"name" mapstructure:"name"`
	HealthURL     string        `json:"health_url,omitempty" mapstructure:"health_url"`         // HTTP GET probe target
	HealthCommand string        `json:"health_command,omitempty" mapstructure:"health_command"` // exit 0 means healthy
	RestartCmd    string        `json:"restart_command" mapstructure:"restart_command"`
	WorkDir       string        `json:"work_dir,omitempty" mapstructure:"work_dir"`
	Env           []string      `json:"env,omitempty" mapstructure:"env"`
	PIDFile       string        `json:"pid_file,omitempty" mapstructure:"pid_file"` // written by the service; read after restart
	CheckInterval time.Duration `json:"check_interval,omitempty" mapstructure:"check_interval"`
	ProbeTimeout  time.Duration `json:"probe_timeout,omitempty" mapstructure:"probe_timeout"`
	Cooldown      time.Duration `json:"cooldown,omitempty" mapstructure:"cooldown"`
	MaxRestarts   int           `json:"max_restarts_per_day,omitempty" mapstructure:"max_restarts_per_day"`
	StartupGrace  time.Duration `json:"startup_grace,omitempty" mapstructure:"startup_grace"`
	AlertAfter    int           `json:"alert_after,omitempty" mapstructure:"alert_after"` // consecutive failures before restart/notify
}

// Validate checks structural correctness of a Spec before the supervisor
// accepts it.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("service name required")
	}
	hasURL := strings.TrimSpace(s.HealthURL) != ""
	hasCmd := strings.TrimSpace(s.HealthCommand) != ""
	if hasURL == hasCmd {
		return fmt.Errorf("service %s: exactly one of health_url or health_command must be set", s.Name)
	}
	if hasURL {
		u, err := url.Parse(s.HealthURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("service %s: invalid health_url %q", s.Name, s.HealthURL)
		}
	}
	if strings.TrimSpace(s.RestartCmd) == "" {
		return fmt.Errorf("service %s: restart_command required", s.Name)
	}
	if s.ProbeTimeout > 0 && s.CheckInterval > 0 && s.ProbeTimeout >= s.CheckInterval {
		return fmt.Errorf("service %s: probe_timeout must be shorter than check_interval", s.Name)
	}
	if s.MaxRestarts < 0 {
		return fmt.Errorf("service %s: max_restarts_per_day cannot be negative", s.Name)
	}
	return nil
}

// Status is a point-in-time snapshot of a watched service.
type Status struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	PID              int       `json:"pid,omitempty"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	RestartsToday    int       `json:"restarts_today"`
	DayKey           string    `json:"day_key,omitempty"`
	LastRestartAt    time.Time `json:"last_restart_at,omitempty"`
	LastCheckedAt    time.Time `json:"last_checked_at,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	ProbedBy         string    `json:"probed_by,omitempty"`
}
