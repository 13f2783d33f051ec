// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"encoding/binary"
	"fmt"
)

// Encode builds a wire frame for the given code and payload.
func Encode(code uint8, payload []byte) ([]byte, error) {
	length := 1 + len(payload)
	if length > MaxFrameLength {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrProtocol, len(payload), MaxFrameLength-1)
	}

	frame := make([]byte, HeaderSize+length)
	frame[0] = StartMarker
	binary.LittleEndian.PutUint16(frame[1:3], uint16(length))
	frame[3] = code
	copy(frame[4:], payload)

	return frame, nil
}

// MustEncode is like Encode but panics on error.
// Use it only with payloads known to fit in a frame.
func MustEncode(code uint8, payload []byte) []byte {
	data, err := Encode(code, payload)
	if err != nil {
		panic(fmt.Sprintf("chamois: encode error: %v", err))
	}
	return data
}

// ToolIndexPayload encodes a tool index for SELECT_TOOL.
func ToolIndexPayload(index int) []byte {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(index))
	return payload
}
