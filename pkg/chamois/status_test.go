// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestParseStatus_FixedOffsets(t *testing.T) {
	payload := []byte{1, 1, 3}
	payload = binary.LittleEndian.AppendUint64(payload, 1000)
	payload = binary.LittleEndian.AppendUint64(payload, 7)

	s, err := ParseStatus(payload)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}

	want := DeviceStatus{
		Initialized:           true,
		Loaded:                true,
		SelectedIndex:         3,
		TotalExtrudedDistance: 1000,
		ToolChangeCount:       7,
	}
	if s != want {
		t.Errorf("ParseStatus() = %+v, want %+v", s, want)
	}
}

func TestParseStatus_NonZeroIsTrue(t *testing.T) {
	payload := make([]byte, StatusPayloadSize)
	payload[0] = 0x02
	payload[1] = 0xFF

	s, err := ParseStatus(payload)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if !s.Initialized || !s.Loaded {
		t.Errorf("ParseStatus() = %+v, want both flags set", s)
	}
}

func TestParseStatus_ShortPayload(t *testing.T) {
	for _, n := range []int{0, 3, StatusPayloadSize - 1} {
		_, err := ParseStatus(make([]byte, n))
		if !errors.Is(err, ErrProtocol) {
			t.Errorf("ParseStatus(%d bytes) error = %v, want ErrProtocol", n, err)
		}
	}
}

func TestEncodeStatus_RoundTrip(t *testing.T) {
	in := DeviceStatus{
		Initialized:           true,
		SelectedIndex:         19,
		TotalExtrudedDistance: 1<<40 + 5,
		ToolChangeCount:       123456,
	}

	out, err := ParseStatus(EncodeStatus(in))
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
