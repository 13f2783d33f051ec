// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/rs/zerolog"
)

// Defaults applied to zero-valued Config fields
const (
	DefaultPort           = 5433
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second
	DefaultMaxRetries     = 3
	DefaultPollInterval   = 1 * time.Second
)

// Config is the engine configuration. It is read once by New.
type Config struct {
	Address        string
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int

	// Keepalive is the minimum age of the cached status before the idle
	// worker refreshes it. Zero disables idle refreshes; the forced refresh
	// after every command still runs.
	Keepalive time.Duration

	// PollInterval bounds how long the worker waits on the job queue and
	// how long a single socket read blocks. Capped at one second.
	PollInterval time.Duration

	// Dialer overrides the TCP dialer built from Address and Port.
	Dialer Dialer

	Logger *zerolog.Logger
}

// Endpoint returns the host:port the default dialer connects to.
func (c Config) Endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.PollInterval <= 0 || c.PollInterval > DefaultPollInterval {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

func (c Config) validate() error {
	if c.Dialer != nil {
		return nil
	}
	if c.Address == "" {
		return fmt.Errorf("%w: TCP address must be specified", chamois.ErrConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: TCP port must be specified (got %d)", chamois.ErrConfig, c.Port)
	}
	return nil
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}
