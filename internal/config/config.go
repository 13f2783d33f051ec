// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the chamois YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/engine"
	"github.com/Thermoquad/chamois/pkg/toolchange"
	"gopkg.in/yaml.v3"
)

// Toolhead limits
const (
	DefaultToolheads = 4
	MinToolheads     = 1
	MaxToolheads     = 20
)

// Config is the complete chamois configuration
type Config struct {
	Address        string            `yaml:"address"`
	Port           int               `yaml:"port"`
	URL            string            `yaml:"url"`
	Username       string            `yaml:"username"`
	NoSSLVerify    bool              `yaml:"no_ssl_verify"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	ReadTimeout    time.Duration     `yaml:"read_timeout"`
	MaxRetries     int               `yaml:"max_retries"`
	Keepalive      time.Duration     `yaml:"keepalive"`
	Toolheads      int               `yaml:"toolheads"`
	Hooks          map[string]string `yaml:"hooks"`
	Log            LogConfig         `yaml:"log"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Port:           engine.DefaultPort,
		ConnectTimeout: engine.DefaultConnectTimeout,
		ReadTimeout:    engine.DefaultReadTimeout,
		MaxRetries:     engine.DefaultMaxRetries,
		Keepalive:      time.Second,
		Toolheads:      DefaultToolheads,
		Hooks:          map[string]string{},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads defaults, then path (if not empty), then environment
// overrides. The result is not validated; call Validate once command-line
// overrides have been applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %v", chamois.ErrConfig, path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CHAMOIS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("CHAMOIS_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("CHAMOIS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CHAMOIS_PORT: %v", chamois.ErrConfig, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("CHAMOIS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	if c.Address == "" && c.URL == "" {
		errs = append(errs, errors.New("address is required (or url for a WebSocket bridge)"))
	}
	if c.URL == "" && (c.Port <= 0 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect_timeout must be positive"))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, errors.New("read_timeout must be positive"))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, errors.New("max_retries must be at least 1"))
	}
	if c.Keepalive < 0 {
		errs = append(errs, errors.New("keepalive must not be negative"))
	}
	if c.Toolheads < MinToolheads || c.Toolheads > MaxToolheads {
		errs = append(errs, fmt.Errorf("toolheads must be between %d and %d, got %d", MinToolheads, MaxToolheads, c.Toolheads))
	}
	for name := range c.Hooks {
		if !knownHook(name) {
			errs = append(errs, fmt.Errorf("unknown hook %q (valid: %s)", name, strings.Join(toolchange.HookNames, ", ")))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", chamois.ErrConfig, errors.Join(errs...))
	}
	return nil
}

func knownHook(name string) bool {
	for _, h := range toolchange.HookNames {
		if h == name {
			return true
		}
	}
	return false
}

// Engine returns the engine settings. The dialer is left to the caller
// when URL is set.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Address:        c.Address,
		Port:           c.Port,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		MaxRetries:     c.MaxRetries,
		Keepalive:      c.Keepalive,
	}
}
