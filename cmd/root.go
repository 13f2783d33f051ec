// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/chamois/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// TCP connection flags
	address string
	tcpPort int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "chamois",
	Short: "Chamois MMU driver",
	Long: `Chamois - A CLI tool for driving a Chamois multi-material unit.

Sends commands to the MMU over its TCP binary protocol, one connection per
transaction, and runs tool changes with optional shell hooks.

Connection modes:
  TCP:       --address 192.168.1.50 [--port 5433]
  WebSocket: --url ws://host/path [--username user]

Settings are read from --config (YAML), then CHAMOIS_* environment
variables, then flags. For WebSocket authentication, the password is read
from the CHAMOIS_PASSWORD environment variable, or prompted interactively
if not set.`,
	Version:      "0.3.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration")

	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "MMU address")
	rootCmd.PersistentFlags().IntVarP(&tcpPort, "port", "p", 0, "MMU TCP port (default 5433)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
}

// Execute runs the root command until it finishes or the process is
// interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig merges the config file, environment and command-line flags.
// Connection settings are only validated when needsDevice is set.
func loadConfig(cmd *cobra.Command, needsDevice bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Address = address
	}
	if flags.Changed("port") {
		cfg.Port = tcpPort
	}
	if flags.Changed("url") {
		cfg.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}

	if !needsDevice && cfg.Address == "" && cfg.URL == "" {
		// Offline commands only need the logging settings to be valid
		cfg.Address = "localhost"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
