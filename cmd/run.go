// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/chamois/pkg/toolchange"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run COMMAND...",
	Short: "Run MMU commands such as HOME, T2 or DISABLE",
	Long: `Run one or more MMU commands in order and exit.

Available commands:
  HOME      Initializes and homes the MMU
  DISABLE   Unloads any loaded filament and disables the MMU
  HALT      Restarts the MMU
  STATUS    Reports the cached MMU status
  T<n>      Changes to tool n (0 to toolheads-1)

Hooks configured under "hooks:" in the config file run during tool changes.
Execution stops at the first failing command.`,
	Example: "  chamois run --address 192.168.1.50 HOME T0 STATUS",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, name := range args {
		if _, ok := s.table.Lookup(name); !ok {
			return fmt.Errorf("%w: %s (available: %s)", toolchange.ErrUnknownCommand, name, strings.Join(s.table.Names(), ", "))
		}
	}

	out := cmd.OutOrStdout()
	for _, name := range args {
		err := s.table.Execute(cmd.Context(), name, func(msg string) {
			fmt.Fprintln(out, msg)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
