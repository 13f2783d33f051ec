// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/spf13/cobra"
)

var (
	decodeRequests bool
	decodeCommand  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [HEX]...",
	Short: "Decode captured frames in human-readable format",
	Long: `Decode hex-encoded bytes into MMU protocol frames.

Bytes are taken from the arguments, or from stdin (one capture per line)
when no arguments are given. Whitespace and colons between bytes are
ignored. Garbage ahead of a frame is skipped the same way the driver
resynchronizes on a live connection.

Responses are decoded as replies to --command when given, so a GET_STATUS
payload is shown field by field.`,
	Example: `  chamois decode "AA 01 00 00"
  chamois decode --requests "AA 03 00 AB 02 00"
  chamois decode --command GET_STATUS "AA 14 00 00 01 01 03 E8 03 00 00 00 00 00 00 07 00 00 00 00 00 00 00"`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeRequests, "requests", false, "Decode as requests instead of responses")
	decodeCmd.Flags().StringVar(&decodeCommand, "command", "", "Command the responses answer (e.g. GET_STATUS)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	command, err := parseCommandName(decodeCommand)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		for _, arg := range args {
			if err := decodeHex(out, arg, command); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := decodeHex(out, line, command); err != nil {
			fmt.Fprintf(out, "[ERROR] %v\n", err)
		}
	}
	return scanner.Err()
}

// decodeHex decodes every frame found in one hex capture
func decodeHex(out io.Writer, text string, command uint8) error {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(text)
	data, err := hex.DecodeString(clean)
	if err != nil {
		return fmt.Errorf("invalid hex %q: %v", text, err)
	}

	decoder := chamois.NewDecoder()
	frame, err := decoder.Feed(data)
	for {
		if err != nil {
			fmt.Fprintf(out, "[ERROR] %v\n", err)
		}
		if frame == nil {
			break
		}
		if decodeRequests {
			fmt.Fprint(out, chamois.FormatRequest(frame))
		} else {
			fmt.Fprint(out, chamois.FormatResponse(command, frame))
		}
		frame, err = decoder.Feed(nil)
	}

	if n := decoder.Buffered(); n > 0 {
		fmt.Fprintf(out, "[INCOMPLETE] %d trailing bytes\n", n)
	}
	if n := decoder.Discarded(); n > 0 {
		fmt.Fprintf(out, "[SKIPPED] %d bytes before a start marker\n", n)
	}
	return nil
}

// parseCommandName maps a command name such as "GET_STATUS" to its code
func parseCommandName(name string) (uint8, error) {
	if name == "" {
		return 0, nil
	}
	name = strings.ToUpper(name)
	for code := 0; code <= 0xFF; code++ {
		if chamois.FormatCommand(uint8(code)) == name {
			return uint8(code), nil
		}
	}
	return 0, fmt.Errorf("unknown command name %q", name)
}
