// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/fxamacker/cbor/v2"
)

func TestDecodeHex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		requests bool
		command  uint8
		want     []string
	}{
		{
			name:  "ok response",
			input: "AA 01 00 00",
			want:  []string{"code=0x00 OK len=1"},
		},
		{
			name:     "select tool request",
			input:    "AA 03 00 AB 02 00",
			requests: true,
			want:     []string{"SELECT_TOOL (0xAB)", "Tool: 2"},
		},
		{
			name:    "status response",
			input:   "AA 14 00 00 01 01 03 E8 03 00 00 00 00 00 00 07 00 00 00 00 00 00 00",
			command: chamois.CmdGetStatus,
			want:    []string{"Selected tool: 3", "Total extruded: 1000 mm", "Tool changes: 7"},
		},
		{
			name:  "failed response",
			input: "AA 04 00 01 6A 61 6D",
			want:  []string{"FAILED", `Error: "jam"`},
		},
		{
			name:  "garbage and two frames",
			input: "FF 00 AA 01 00 00 AA 01 00 03",
			want:  []string{"code=0x00 OK", "code=0x03 FAILED", "[SKIPPED] 2 bytes"},
		},
		{
			name:  "truncated",
			input: "AA 05 00 00 01",
			want:  []string{"[INCOMPLETE] 5 trailing bytes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decodeRequests = tt.requests
			defer func() { decodeRequests = false }()

			var out bytes.Buffer
			if err := decodeHex(&out, tt.input, tt.command); err != nil {
				t.Fatalf("decodeHex() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestDecodeHexInvalid(t *testing.T) {
	var out bytes.Buffer
	if err := decodeHex(&out, "AA ZZ", 0); err == nil {
		t.Error("decodeHex() accepted invalid hex")
	}
}

func TestParseCommandName(t *testing.T) {
	tests := []struct {
		name    string
		want    uint8
		wantErr bool
	}{
		{"", 0, false},
		{"GET_STATUS", chamois.CmdGetStatus, false},
		{"select_tool", chamois.CmdSelectTool, false},
		{"unload", chamois.CmdUnload, false},
		{"FROBNICATE", 0, true},
	}

	for _, tt := range tests {
		got, err := parseCommandName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCommandName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCommandName(%q) = 0x%02X, want 0x%02X", tt.name, got, tt.want)
		}
	}
}

func TestWriteStatus(t *testing.T) {
	status := chamois.DeviceStatus{
		Initialized:           true,
		Loaded:                true,
		SelectedIndex:         2,
		TotalExtrudedDistance: 900,
		ToolChangeCount:       3,
		LastUpdate:            time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeStatus(&out, status, "text"); err != nil {
			t.Fatalf("writeStatus() error = %v", err)
		}
		if !strings.Contains(out.String(), "Selected tool: 2") {
			t.Errorf("text output = %q", out.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeStatus(&out, status, "json"); err != nil {
			t.Fatalf("writeStatus() error = %v", err)
		}
		var got chamois.DeviceStatus
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if !got.LastUpdate.Equal(status.LastUpdate) {
			t.Errorf("last_update = %v, want %v", got.LastUpdate, status.LastUpdate)
		}
		got.LastUpdate = status.LastUpdate
		if got != status {
			t.Errorf("json status = %+v, want %+v", got, status)
		}
	})

	t.Run("cbor", func(t *testing.T) {
		var out bytes.Buffer
		if err := writeStatus(&out, status, "cbor"); err != nil {
			t.Fatalf("writeStatus() error = %v", err)
		}
		data, err := hex.DecodeString(strings.TrimSpace(out.String()))
		if err != nil {
			t.Fatalf("cbor output is not hex: %v", err)
		}
		var fields map[int]any
		if err := cbor.Unmarshal(data, &fields); err != nil {
			t.Fatalf("invalid CBOR: %v", err)
		}
		if fields[1] != true || fields[3] != uint64(2) || fields[5] != uint64(3) {
			t.Errorf("cbor fields = %v", fields)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := writeStatus(&bytes.Buffer{}, status, "xml"); err == nil {
			t.Error("writeStatus() accepted unknown format")
		}
	})
}

func TestPingFailure(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("ping attempt 1/1: %w", chamois.ErrConnect), "CONNECT FAILED"},
		{fmt.Errorf("ping attempt 1/1: %w", chamois.ErrTimeout), "TIMEOUT"},
		{chamois.ErrCancelled, "CANCELLED"},
		{chamois.ErrProtocol, "PROTOCOL ERROR"},
		{&chamois.DeviceError{Command: chamois.CmdPing, Code: 1}, "DEVICE ERROR"},
		{errors.New("eof"), "READ FAILED"},
	}

	for _, tt := range tests {
		if got := pingFailure(tt.err); got != tt.want {
			t.Errorf("pingFailure(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
