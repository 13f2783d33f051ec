// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/simulator"
	"github.com/spf13/cobra"
)

var (
	simListen    string
	simToolheads int
	simDelay     time.Duration
	simJam       string
	simJamCode   uint8
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated MMU on TCP",
	Long: `Serve a simulated Chamois MMU speaking the wire protocol.

The simulator keeps homing, load and tool selection state, so tool changes
can be exercised end to end without hardware:

  chamois simulate --listen 127.0.0.1:5433 &
  chamois run --address 127.0.0.1 T1 STATUS

--jam makes one command fail with a diagnostic, e.g. --jam UNLOAD.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListen, "listen", "127.0.0.1:5433", "Listen address")
	simulateCmd.Flags().IntVar(&simToolheads, "toolheads", simulator.DefaultToolheads, "Number of simulated tools")
	simulateCmd.Flags().DurationVar(&simDelay, "delay", 200*time.Millisecond, "Time taken by every command")
	simulateCmd.Flags().StringVar(&simJam, "jam", "", "Command that always fails (e.g. UNLOAD)")
	simulateCmd.Flags().Uint8Var(&simJamCode, "jam-code", 0x01, "Response code for --jam")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	log, logClose := newLogger(cfg.Log)
	defer logClose.Close()

	sim := simulator.New(simulator.Config{
		Toolheads: simToolheads,
		Delay:     simDelay,
		Logger:    &log,
	})

	if simJam != "" {
		code, err := parseCommandName(simJam)
		if err != nil {
			return err
		}
		sim.SetFault(code, simulator.Fault{Code: simJamCode, Detail: "jam"})
	}

	if err := sim.Start(simListen); err != nil {
		return err
	}
	defer sim.Close()

	fmt.Printf("Chamois - MMU Simulator\n")
	fmt.Printf("Listening: %s (%d tools)\n", sim.Addr(), simToolheads)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	<-cmd.Context().Done()

	fmt.Printf("\nReceived %d commands on %d connections\n", len(sim.Received()), sim.Connections())
	fmt.Println(chamois.FormatStatus(sim.State()))
	return nil
}
