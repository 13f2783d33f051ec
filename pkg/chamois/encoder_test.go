// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode_Layout(t *testing.T) {
	tests := []struct {
		name    string
		code    uint8
		payload []byte
		want    []byte
	}{
		{
			name: "ping without payload",
			code: CmdPing,
			want: []byte{0xAA, 0x01, 0x00, 0x01},
		},
		{
			name:    "select tool 2",
			code:    CmdSelectTool,
			payload: ToolIndexPayload(2),
			want:    []byte{0xAA, 0x03, 0x00, 0xAB, 0x02, 0x00},
		},
		{
			name:    "select tool 258",
			code:    CmdSelectTool,
			payload: ToolIndexPayload(258),
			want:    []byte{0xAA, 0x03, 0x00, 0xAB, 0x02, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.code, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	_, err := Encode(CmdPing, make([]byte, MaxFrameLength))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Encode() error = %v, want ErrProtocol", err)
	}

	// The largest payload that still fits
	if _, err := Encode(CmdPing, make([]byte, MaxFrameLength-1)); err != nil {
		t.Fatalf("Encode() at limit error = %v", err)
	}
}

func TestMustEncode_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustEncode should panic on oversized payload")
		}
	}()
	MustEncode(CmdPing, make([]byte, MaxFrameLength+10))
}
