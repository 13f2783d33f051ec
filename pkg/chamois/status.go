// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"encoding/binary"
	"fmt"
	"time"
)

// DeviceStatus is the MMU state reported by GET_STATUS.
type DeviceStatus struct {
	Initialized           bool      `json:"initialized" cbor:"1,keyasint"`
	Loaded                bool      `json:"loaded" cbor:"2,keyasint"`
	SelectedIndex         uint8     `json:"selected_index" cbor:"3,keyasint"`
	TotalExtrudedDistance uint64    `json:"total_extruded_distance" cbor:"4,keyasint"`
	ToolChangeCount       uint64    `json:"tool_change_count" cbor:"5,keyasint"`
	LastUpdate            time.Time `json:"last_update" cbor:"6,keyasint"`
}

// ParseStatus decodes a GET_STATUS response payload.
// LastUpdate is left zero; the caller stamps it.
func ParseStatus(payload []byte) (DeviceStatus, error) {
	if len(payload) < StatusPayloadSize {
		return DeviceStatus{}, fmt.Errorf("%w: status payload too short: %d bytes (want %d)", ErrProtocol, len(payload), StatusPayloadSize)
	}

	return DeviceStatus{
		Initialized:           payload[statusOffsetInitialized] != 0,
		Loaded:                payload[statusOffsetLoaded] != 0,
		SelectedIndex:         payload[statusOffsetSelected],
		TotalExtrudedDistance: binary.LittleEndian.Uint64(payload[statusOffsetExtruded:statusOffsetToolChanges]),
		ToolChangeCount:       binary.LittleEndian.Uint64(payload[statusOffsetToolChanges:StatusPayloadSize]),
	}, nil
}

// EncodeStatus builds a GET_STATUS response payload. The MMU simulator uses it.
func EncodeStatus(s DeviceStatus) []byte {
	payload := make([]byte, StatusPayloadSize)
	if s.Initialized {
		payload[statusOffsetInitialized] = 1
	}
	if s.Loaded {
		payload[statusOffsetLoaded] = 1
	}
	payload[statusOffsetSelected] = s.SelectedIndex
	binary.LittleEndian.PutUint64(payload[statusOffsetExtruded:], s.TotalExtrudedDistance)
	binary.LittleEndian.PutUint64(payload[statusOffsetToolChanges:], s.ToolChangeCount)
	return payload
}
