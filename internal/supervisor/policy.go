package supervisor

import (
	"time"

	"github.com/loykin/vigil/internal/service"
)

// RestartPolicy bounds how aggressively a watcher may restart its service.
// The zero value is usable; Normalized fills in defaults.
type RestartPolicy struct {
	CheckInterval     time.Duration `toml:"check_interval" mapstructure:"check_interval"`
	ProbeTimeout      time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	Cooldown          time.Duration `toml:"cooldown" mapstructure:"cooldown"`
	MaxRestartsPerDay int           `toml:"max_restarts_per_day" mapstructure:"max_restarts_per_day"`
	StartupGrace      time.Duration `toml:"startup_grace" mapstructure:"startup_grace"`
	CommandTimeout    time.Duration `toml:"command_timeout" mapstructure:"command_timeout"`
	AlertAfter        int           `toml:"alert_after" mapstructure:"alert_after"`
}

const (
	defaultCheckInterval  = 60 * time.Second
	defaultProbeTimeout   = 10 * time.Second
	defaultCooldown       = 5 * time.Minute
	defaultMaxRestarts    = 5
	defaultStartupGrace   = 10 * time.Second
	defaultCommandTimeout = 60 * time.Second
)

// Normalized returns a copy with defaults applied. The probe timeout is
// clamped below the check interval so a stalled probe can never span ticks.
func (p RestartPolicy) Normalized() RestartPolicy {
	if p.CheckInterval <= 0 {
		p.CheckInterval = defaultCheckInterval
	}
	if p.ProbeTimeout <= 0 {
		p.ProbeTimeout = defaultProbeTimeout
	}
	if p.ProbeTimeout >= p.CheckInterval {
		p.ProbeTimeout = p.CheckInterval / 2
	}
	if p.Cooldown <= 0 {
		p.Cooldown = defaultCooldown
	}
	if p.MaxRestartsPerDay <= 0 {
		p.MaxRestartsPerDay = defaultMaxRestarts
	}
	if p.StartupGrace <= 0 {
		p.StartupGrace = defaultStartupGrace
	}
	if p.CommandTimeout <= 0 {
		p.CommandTimeout = defaultCommandTimeout
	}
	if p.AlertAfter <= 0 {
		p.AlertAfter = 1
	}
	return p
}

// Merge applies per-service overrides from a spec on top of the policy.
func (p RestartPolicy) Merge(s service.Spec) RestartPolicy {
	if s.CheckInterval > 0 {
		p.CheckInterval = s.CheckInterval
	}
	if s.ProbeTimeout > 0 {
		p.ProbeTimeout = s.ProbeTimeout
	}
	if s.Cooldown > 0 {
		p.Cooldown = s.Cooldown
	}
	if s.MaxRestarts > 0 {
		p.MaxRestartsPerDay = s.MaxRestarts
	}
	if s.StartupGrace > 0 {
		p.StartupGrace = s.StartupGrace
	}
	if s.AlertAfter > 0 {
		p.AlertAfter = s.AlertAfter
	}
	return p.Normalized()
}

// DayKey derives the calendar-date key the restart counter belongs to.
// Local time, so the budget rolls at the operator's midnight.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }
