// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

var (
	statusFormat string
	statusStats  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query and print the MMU status",
	Long: `Send a PING, which refreshes the cached status, and print it.

Formats:
  text - human-readable summary (default)
  json - JSON object
  cbor - hex-encoded CBOR map with integer keys`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format: text, json, cbor")
	statusCmd.Flags().BoolVar(&statusStats, "stats", false, "Also print transaction statistics (text only)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.engine.Send(cmd.Context(), chamois.CmdPing, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	status := s.engine.Status()
	if status.LastUpdate.IsZero() {
		return fmt.Errorf("status refresh failed: %s", s.engine.Statistics().LastError)
	}

	out := cmd.OutOrStdout()
	if err := writeStatus(out, status, statusFormat); err != nil {
		return err
	}
	if statusStats && statusFormat == "text" {
		fmt.Fprint(out, "\n"+s.engine.Statistics().Format())
	}
	return nil
}

// writeStatus renders status in the requested format
func writeStatus(w io.Writer, status chamois.DeviceStatus, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, chamois.FormatStatus(status))
		return err

	case "json":
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "cbor":
		data, err := cbor.Marshal(status)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, hex.EncodeToString(data))
		return err
	}

	return fmt.Errorf("unknown format %q (use text, json or cbor)", format)
}
