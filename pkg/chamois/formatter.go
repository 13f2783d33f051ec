// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatCommand returns the human-readable name for a command code
func FormatCommand(code uint8) string {
	switch code {
	case CmdPing:
		return "PING"
	case CmdHalt:
		return "HALT"
	case CmdGetStatus:
		return "GET_STATUS"
	case CmdHome:
		return "HOME"
	case CmdDisable:
		return "DISABLE"
	case CmdLoad:
		return "LOAD"
	case CmdUnload:
		return "UNLOAD"
	case CmdSelectTool:
		return "SELECT_TOOL"
	case CmdRelease:
		return "RELEASE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", code)
	}
}

// FormatRequest formats a request frame into a human-readable string
func FormatRequest(f *Frame) string {
	result := fmt.Sprintf("[%s] > %s (0x%02X) len=%d\n",
		f.Timestamp.Format("15:04:05.000"), FormatCommand(f.Code), f.Code, f.Length())

	if f.Code == CmdSelectTool && len(f.Payload) >= 2 {
		return result + fmt.Sprintf("  Tool: %d\n", binary.LittleEndian.Uint16(f.Payload))
	}
	if len(f.Payload) > 0 {
		result += formatHex(f.Payload)
	}
	return result
}

// FormatResponse formats a response frame. command is the request it answers,
// used to pick a payload decoder; pass 0 if unknown.
func FormatResponse(command uint8, f *Frame) string {
	result := fmt.Sprintf("[%s] < code=0x%02X", f.Timestamp.Format("15:04:05.000"), f.Code)
	if f.OK() {
		result += " OK"
	} else {
		result += " FAILED"
	}
	result += fmt.Sprintf(" len=%d\n", f.Length())

	if len(f.Payload) == 0 {
		return result
	}

	if !f.OK() {
		return result + fmt.Sprintf("  Error: %q\n", strings.ToValidUTF8(string(f.Payload), ""))
	}

	if command == CmdGetStatus {
		if s, err := ParseStatus(f.Payload); err == nil {
			return result + FormatStatus(s)
		}
	}

	return result + formatHex(f.Payload)
}

// FormatStatus renders a status snapshot, one field per line
func FormatStatus(s DeviceStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Initialized: %v\n", s.Initialized)
	fmt.Fprintf(&b, "  Loaded: %v\n", s.Loaded)
	fmt.Fprintf(&b, "  Selected tool: %d\n", s.SelectedIndex)
	fmt.Fprintf(&b, "  Total extruded: %d mm\n", s.TotalExtrudedDistance)
	fmt.Fprintf(&b, "  Tool changes: %d\n", s.ToolChangeCount)
	return b.String()
}

// formatHex produces the indented hex dump used for unknown payloads
func formatHex(payload []byte) string {
	result := "  Payload: "
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			result += "\n           "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}
