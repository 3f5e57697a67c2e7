// Package config loads the fleet's optional tuning file. Every field
// has the reference default the specification names; the file's
// absence is not an error.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every ambient knob that is not part of the three
// required positional CLI arguments.
type Config struct {
	IdleTimeoutSeconds   int    `yaml:"idle_timeout_seconds"`
	RetirePollIntervalMs int    `yaml:"retire_poll_interval_ms"`
	RetireKillAfterMs    int    `yaml:"retire_kill_after_ms"`
	StatusPollIntervalMs int    `yaml:"status_poll_interval_ms"`
	StatusPollAttempts   int    `yaml:"status_poll_attempts"`
	RestockCeiling       int    `yaml:"restock_ceiling"`
	LogDir               string `yaml:"log_dir"`
	MetricsPort          int    `yaml:"metrics_port"`
}

// Default returns the reference values spec.md fixes or implies.
func Default() Config {
	return Config{
		IdleTimeoutSeconds:   10,
		RetirePollIntervalMs: 100,
		RetireKillAfterMs:    1000,
		StatusPollIntervalMs: 10,
		StatusPollAttempts:   50,
		RestockCeiling:       10,
		LogDir:               ".",
		MetricsPort:          0,
	}
}

// IdleTimeout is IdleTimeoutSeconds as a time.Duration.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// RetirePollInterval is RetirePollIntervalMs as a time.Duration.
func (c Config) RetirePollInterval() time.Duration {
	return time.Duration(c.RetirePollIntervalMs) * time.Millisecond
}

// RetireKillAfter is RetireKillAfterMs as a time.Duration.
func (c Config) RetireKillAfter() time.Duration {
	return time.Duration(c.RetireKillAfterMs) * time.Millisecond
}

// StatusPollInterval is StatusPollIntervalMs as a time.Duration.
func (c Config) StatusPollInterval() time.Duration {
	return time.Duration(c.StatusPollIntervalMs) * time.Millisecond
}

// Load reads path and overlays it onto Default(). A missing file is
// not an error: it simply yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
