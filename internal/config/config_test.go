// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chamois.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 5433 || cfg.MaxRetries != 3 || cfg.Toolheads != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.ConnectTimeout != 5*time.Second || cfg.Keepalive != time.Second {
		t.Errorf("default timing = %v/%v", cfg.ConnectTimeout, cfg.Keepalive)
	}
	if err := cfg.Validate(); !errors.Is(err, chamois.ErrConfig) {
		t.Errorf("Validate() without address = %v, want ErrConfig", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
address: 192.168.1.50
port: 6000
read_timeout: 15s
keepalive: 0s
toolheads: 8
hooks:
  PARK: "echo park"
  ON_LOAD: "echo load"
log:
  level: debug
  file: /tmp/chamois.log
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Address != "192.168.1.50" || cfg.Port != 6000 || cfg.Toolheads != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.ReadTimeout)
	}
	if cfg.Keepalive != 0 {
		t.Errorf("Keepalive = %v, want 0", cfg.Keepalive)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v, want default kept", cfg.ConnectTimeout)
	}
	if cfg.Hooks["PARK"] != "echo park" || len(cfg.Hooks) != 2 {
		t.Errorf("Hooks = %v", cfg.Hooks)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxBackups != 3 {
		t.Errorf("Log = %+v", cfg.Log)
	}

	ec := cfg.Engine()
	if ec.Address != cfg.Address || ec.Port != 6000 || ec.ReadTimeout != 15*time.Second {
		t.Errorf("Engine() = %+v", ec)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}

	path := writeConfig(t, "port: [1, 2\n")
	if _, err := Load(path); !errors.Is(err, chamois.ErrConfig) {
		t.Errorf("Load() of malformed yaml = %v, want ErrConfig", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "address: 10.0.0.1\nport: 6000\n")
	t.Setenv("CHAMOIS_ADDRESS", "10.0.0.2")
	t.Setenv("CHAMOIS_PORT", "7000")
	t.Setenv("CHAMOIS_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Address != "10.0.0.2" || cfg.Port != 7000 || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v, want env values", cfg)
	}

	t.Setenv("CHAMOIS_PORT", "abc")
	if _, err := Load(path); !errors.Is(err, chamois.ErrConfig) {
		t.Errorf("Load() with bad CHAMOIS_PORT = %v, want ErrConfig", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no address", func(c *Config) { c.Address = "" }, "address is required"},
		{"port zero", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"url instead of address", func(c *Config) {
			c.Address = ""
			c.Port = 0
			c.URL = "ws://bridge/mmu"
		}, ""},
		{"no retries", func(c *Config) { c.MaxRetries = 0 }, "max_retries"},
		{"too many tools", func(c *Config) { c.Toolheads = 21 }, "toolheads must be between 1 and 20"},
		{"zero tools", func(c *Config) { c.Toolheads = 0 }, "toolheads"},
		{"negative keepalive", func(c *Config) { c.Keepalive = -time.Second }, "keepalive"},
		{"bad hook", func(c *Config) { c.Hooks["CHAMOIS_PARK"] = "x" }, "unknown hook"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Address = "127.0.0.1"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, chamois.ErrConfig) {
				t.Fatalf("Validate() = %v, want ErrConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
