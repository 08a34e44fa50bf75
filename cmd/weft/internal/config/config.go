// Package config loads the weft.yaml configuration used by the weft CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes either a Go duration string ("15s") or raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, perr := time.ParseDuration(s)
	if perr != nil {
		return fmt.Errorf("invalid duration %q: %w", s, perr)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the weft.yaml configuration.
type Config struct {
	// Server configuration for `weft serve`
	Server ServerConfig `yaml:"server"`

	// Scheduler configuration; serve reads it from weft.yaml, bench and
	// monitor build the same structure from their flags
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig configures the websocket demo server.
type ServerConfig struct {
	// Listen address, host:port
	Addr string `yaml:"addr"`

	// Interval between pings sent to each session
	PingInterval Duration `yaml:"pingInterval"`

	// Maximum concurrent sessions; 0 means unlimited
	MaxSessions int `yaml:"maxSessions"`
}

// SchedulerConfig configures the fiber runtime.
type SchedulerConfig struct {
	// Number of scheduler instances
	Workers int `yaml:"workers"`

	// Algorithm: "round-robin", "priority", "shared" or "work-stealing"
	Algorithm string `yaml:"algorithm"`

	// Stack size hint per fiber, bytes
	StackSize int `yaml:"stackSize"`
}

// Default returns the configuration used when no weft.yaml exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "localhost:8090",
			PingInterval: Duration(15 * time.Second),
		},
		Scheduler: SchedulerConfig{
			Workers:   4,
			Algorithm: "work-stealing",
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not an
// error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints.
func (c *Config) Validate() error {
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be >= 1, got %d", c.Scheduler.Workers)
	}
	switch c.Scheduler.Algorithm {
	case "", "round-robin", "priority", "shared", "work-stealing":
	default:
		return fmt.Errorf("unknown scheduler.algorithm %q", c.Scheduler.Algorithm)
	}
	if c.Server.PingInterval < 0 {
		return fmt.Errorf("server.pingInterval must not be negative")
	}
	return nil
}
