// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/engine"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the MMU connection with PING round trips",
	Long: `Send PING requests to the MMU and wait for each response.

Every ping is a single attempt on a fresh connection, so failures are
reported as they happen instead of being retried.

This is useful for verifying:
  - the MMU (or its WebSocket bridge) is reachable
  - HTTP Basic authentication works
  - request/response framing is intact

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Configuration error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	log, logClose := newLogger(cfg.Log)
	defer logClose.Close()

	dialer, err := newDialer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	ec := cfg.Engine()
	ec.MaxRetries = 1
	ec.ReadTimeout = time.Duration(pingTimeout) * time.Second
	ec.Logger = &log
	stats := engine.NewStatistics()
	transport := engine.NewTransport(dialer, ec, stats)

	fmt.Printf("Chamois - Ping Test\n")
	fmt.Printf("Connection: %s\n", dialer.String())
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		resp, err := transport.Transact(cmd.Context(), chamois.CmdPing, nil)
		rtt := time.Since(startTime)

		switch {
		case err != nil:
			fmt.Printf("%s (%v)\n", pingFailure(err), err)
			failCount++
		case !resp.OK():
			fmt.Printf("FAILED: %v\n", chamois.NewDeviceError(chamois.CmdPing, resp))
			failCount++
		default:
			fmt.Printf("PONG, rtt=%v\n", rtt.Round(time.Millisecond))
			successCount++
		}

		if chamois.KindOf(err) == chamois.KindCancelled {
			break
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// pingFailure returns the short label printed for a failed ping
func pingFailure(err error) string {
	switch chamois.KindOf(err) {
	case chamois.KindConnect:
		return "CONNECT FAILED"
	case chamois.KindTimeout:
		return "TIMEOUT"
	case chamois.KindCancelled:
		return "CANCELLED"
	case chamois.KindProtocol:
		return "PROTOCOL ERROR"
	case chamois.KindDevice:
		return "DEVICE ERROR"
	default:
		return "READ FAILED"
	}
}
