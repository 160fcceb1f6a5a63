// Package config loads bridge settings from an optional YAML file, with
// CANVASBRIDGE_* environment variables taking precedence over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults. The listener binds loopback; the executor plugin runs on the
// same machine as the design tool.
const (
	DefaultListenAddr    = "127.0.0.1:3055"
	DefaultCallTimeoutMS = 5000
	DefaultLogLevel      = "info"
)

// Config is the full runtime configuration.
type Config struct {
	// ListenAddr is the data-plane bind address.
	ListenAddr string `yaml:"listen_addr"`
	// CallTimeoutMS is the default per-call deadline in milliseconds.
	CallTimeoutMS int `yaml:"call_timeout_ms"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    DefaultListenAddr,
		CallTimeoutMS: DefaultCallTimeoutMS,
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads path (optional; empty means defaults only), applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CANVASBRIDGE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CANVASBRIDGE_CALL_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CANVASBRIDGE_CALL_TIMEOUT_MS: %w", err)
		}
		cfg.CallTimeoutMS = n
	}
	if v := os.Getenv("CANVASBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.CallTimeoutMS <= 0 {
		return fmt.Errorf("call_timeout_ms must be positive, got %d", c.CallTimeoutMS)
	}
	return nil
}

// CallTimeout returns the per-call deadline as a duration.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}
