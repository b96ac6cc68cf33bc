package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	MinPort = 1024
	MaxPort = 65535
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DashboardConfig describes the web dashboard served by the child itself.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// URL returns the local address of the child's dashboard.
func (d DashboardConfig) URL() string {
	return fmt.Sprintf("http://localhost:%d", d.Port)
}

// ChildConfig is the launch contract for the supervised client.
type ChildConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	// Entrypoint must exist inside Dir before launching; empty disables
	// the check.
	Entrypoint     string `yaml:"entrypoint"`
	GraceTimeoutMs int    `yaml:"graceTimeoutMs"`
}

func (c ChildConfig) GraceTimeout() time.Duration {
	return time.Duration(c.GraceTimeoutMs) * time.Millisecond
}

// ProvisionConfig controls the one-shot dependency install run before the
// first launch when Marker is missing from the child directory.
type ProvisionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Marker  string   `yaml:"marker"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type BrowserConfig struct {
	AutoOpen bool `yaml:"autoOpen"`
	DelayMs  int  `yaml:"delayMs"`
}

func (b BrowserConfig) Delay() time.Duration {
	return time.Duration(b.DelayMs) * time.Millisecond
}

// RedisConfig enables publishing status changes to a Redis channel.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Child     ChildConfig     `yaml:"child"`
	Provision ProvisionConfig `yaml:"provision"`
	Browser   BrowserConfig   `yaml:"browser"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
}

// ConfigError reports a configuration value that prevents startup.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "", Port: 8080},
		Dashboard: DashboardConfig{Port: 3000},
		Child: ChildConfig{
			Command:        "node",
			Args:           []string{"index.js"},
			Dir:            ".",
			Entrypoint:     "index.js",
			GraceTimeoutMs: 5000,
		},
		Provision: ProvisionConfig{
			Enabled: true,
			Marker:  "node_modules",
			Command: "npm",
			Args:    []string{"install"},
		},
		Browser: BrowserConfig{AutoOpen: true, DelayMs: 1000},
		Redis:   RedisConfig{Channel: "pairwatch:status"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the yaml file at path over the defaults, applies environment
// overrides and validates the result. A missing file is tolerated only
// when optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, &ConfigError{Field: "file", Reason: "failed to decode " + path, Err: err}
			}
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, &ConfigError{Field: "file", Reason: "failed to open " + path, Err: err}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	ports := []struct {
		env    string
		target *int
	}{
		{"PAIRWATCH_PORT", &cfg.Server.Port},
		{"PAIRWATCH_DASHBOARD_PORT", &cfg.Dashboard.Port},
	}
	for _, p := range ports {
		raw, ok := lookup(p.env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return &ConfigError{Field: p.env, Reason: "not an integer", Err: err}
		}
		*p.target = v
	}

	if raw, ok := lookup("PAIRWATCH_REDIS_URL"); ok {
		cfg.Redis.URL = strings.TrimSpace(raw)
	}
	return nil
}

// Validate checks the values that must hold before any listener starts.
func (c *Config) Validate() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := validatePort("dashboard.port", c.Dashboard.Port); err != nil {
		return err
	}
	if c.Server.Port == c.Dashboard.Port {
		return &ConfigError{Field: "dashboard.port", Reason: fmt.Sprintf("must differ from server.port (%d)", c.Server.Port)}
	}
	if strings.TrimSpace(c.Child.Command) == "" {
		return &ConfigError{Field: "child.command", Reason: "must not be empty"}
	}
	if c.Child.GraceTimeoutMs <= 0 {
		return &ConfigError{Field: "child.graceTimeoutMs", Reason: "must be positive"}
	}
	if c.Provision.Enabled && strings.TrimSpace(c.Provision.Command) == "" {
		return &ConfigError{Field: "provision.command", Reason: "must not be empty when provisioning is enabled"}
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < MinPort || port > MaxPort {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("must be between %d and %d, got %d", MinPort, MaxPort, port)}
	}
	return nil
}
