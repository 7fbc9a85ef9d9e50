package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Probe     ProbeConfig     `yaml:"probe"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Seed      SeedConfig      `yaml:"seed"`
	Log       LogConfig       `yaml:"log"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig controls the sweep loop
type MonitorConfig struct {
	Interval Duration `yaml:"interval"`
}

// ProbeMethod selects the reachability transport
type ProbeMethod string

const (
	ProbeTCP  ProbeMethod = "tcp"
	ProbeNmap ProbeMethod = "nmap"
)

// ProbeConfig controls individual probes
type ProbeConfig struct {
	Method      ProbeMethod `yaml:"method"`
	Timeout     Duration    `yaml:"timeout"`
	MaxParallel int         `yaml:"max_parallel"`
	Ports       []int       `yaml:"ports,omitempty"` // tcp only
}

// BroadcastConfig controls subscriber buffering
type BroadcastConfig struct {
	Buffer int `yaml:"buffer"`
}

// SeedConfig points at a YAML hierarchy loaded at startup
type SeedConfig struct {
	Path  string `yaml:"path,omitempty"`
	Watch bool   `yaml:"watch"` // reload on change
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// KafkaConfig enables the event relay when brokers are set
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether the relay should run
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
