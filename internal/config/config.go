// Package config loads netpulse settings from a YAML file.
//
// Config file locations (priority order):
//  1. $NETPULSE_CONFIG
//  2. ./netpulse.yaml
//  3. $XDG_CONFIG_HOME/netpulse/config.yaml
//  4. ~/.config/netpulse/config.yaml
//  5. /etc/netpulse/config.yaml
//
// When no file is found the defaults are used.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultAddr         = ":5000"
	DefaultDatabasePath = "./netpulse.db"
	DefaultInterval     = 5 * time.Second
	DefaultProbeTimeout = 2 * time.Second
	DefaultMaxParallel  = 32
	DefaultBuffer       = 64
	DefaultTopic        = "netpulse.events"
)

// DefaultPorts are probed by the tcp method when a node has no port
var DefaultPorts = []int{22, 80, 443, 53}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes YAML config, fills defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = Duration(DefaultInterval)
	}
	if c.Probe.Method == "" {
		c.Probe.Method = ProbeTCP
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = Duration(DefaultProbeTimeout)
	}
	if c.Probe.MaxParallel == 0 {
		c.Probe.MaxParallel = DefaultMaxParallel
	}
	if len(c.Probe.Ports) == 0 {
		c.Probe.Ports = append([]int(nil), DefaultPorts...)
	}
	if c.Broadcast.Buffer == 0 {
		c.Broadcast.Buffer = DefaultBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultTopic
	}
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.Interval.Duration() < 0 {
		errs = append(errs, fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval.Duration()))
	}
	if c.Probe.Timeout.Duration() < 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout.Duration()))
	}
	if c.Probe.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("probe.max_parallel must be positive, got %d", c.Probe.MaxParallel))
	}
	switch c.Probe.Method {
	case ProbeTCP, ProbeNmap:
	default:
		errs = append(errs, fmt.Errorf("probe.method must be tcp or nmap, got %q", c.Probe.Method))
	}
	for _, p := range c.Probe.Ports {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("probe.ports: invalid port %d", p))
		}
	}
	if c.Broadcast.Buffer < 0 {
		errs = append(errs, fmt.Errorf("broadcast.buffer must be positive, got %d", c.Broadcast.Buffer))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Database: %s\n", c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("Monitor: every %s, probe %s (timeout %s, parallel %d)",
		c.Monitor.Interval.Duration(), c.Probe.Method, c.Probe.Timeout.Duration(), c.Probe.MaxParallel)
	if c.Seed.Path != "" {
		summary += fmt.Sprintf("\nSeed: %s (watch=%v)", c.Seed.Path, c.Seed.Watch)
	}
	if c.Kafka.Enabled() {
		summary += fmt.Sprintf("\nRelay: %v -> %s", c.Kafka.Brokers, c.Kafka.Topic)
	}
	return summary
}
