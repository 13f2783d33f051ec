// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package simulator

import (
	"encoding/binary"
	"fmt"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

// Response codes returned by the simulated device
const (
	CodeNotHomed      uint8 = 0x02
	CodeBadState      uint8 = 0x03
	CodeBadPayload    uint8 = 0x04
	CodeInvalidTool   uint8 = 0x05
	CodeUnknownCmd    uint8 = 0xFF
	DefaultToolheads        = 4
	DefaultLoadLength       = 450 // mm of filament moved per load or unload
)

// Device is the MMU state machine without any transport. It is not safe
// for concurrent use; Simulator serializes access.
type Device struct {
	Toolheads  int
	LoadLength uint64
	State      chamois.DeviceStatus
}

// NewDevice creates a powered-on, unhomed device
func NewDevice(toolheads int) *Device {
	if toolheads <= 0 {
		toolheads = DefaultToolheads
	}
	return &Device{Toolheads: toolheads, LoadLength: DefaultLoadLength}
}

// Handle applies one command and returns the response code and payload
func (d *Device) Handle(command uint8, payload []byte) (uint8, []byte) {
	switch command {
	case chamois.CmdPing, chamois.CmdRelease:
		return chamois.ResponseOK, nil

	case chamois.CmdHalt, chamois.CmdDisable:
		d.State.Initialized = false
		return chamois.ResponseOK, nil

	case chamois.CmdGetStatus:
		return chamois.ResponseOK, chamois.EncodeStatus(d.State)

	case chamois.CmdHome:
		d.State.Initialized = true
		return chamois.ResponseOK, nil

	case chamois.CmdLoad:
		if !d.State.Initialized {
			return CodeNotHomed, []byte("not homed")
		}
		if d.State.Loaded {
			return CodeBadState, []byte("already loaded")
		}
		d.State.Loaded = true
		d.State.TotalExtrudedDistance += d.LoadLength
		return chamois.ResponseOK, nil

	case chamois.CmdUnload:
		if !d.State.Initialized {
			return CodeNotHomed, []byte("not homed")
		}
		if !d.State.Loaded {
			return CodeBadState, []byte("not loaded")
		}
		d.State.Loaded = false
		d.State.TotalExtrudedDistance += d.LoadLength
		return chamois.ResponseOK, nil

	case chamois.CmdSelectTool:
		if len(payload) != 2 {
			return CodeBadPayload, []byte(fmt.Sprintf("expected 2 byte index, got %d", len(payload)))
		}
		index := int(binary.LittleEndian.Uint16(payload))
		if index >= d.Toolheads {
			return CodeInvalidTool, []byte(fmt.Sprintf("tool %d out of range", index))
		}
		if !d.State.Initialized {
			return CodeNotHomed, []byte("not homed")
		}
		if d.State.Loaded {
			return CodeBadState, []byte("filament loaded")
		}
		if uint8(index) != d.State.SelectedIndex {
			d.State.SelectedIndex = uint8(index)
			d.State.ToolChangeCount++
		}
		return chamois.ResponseOK, nil
	}

	return CodeUnknownCmd, []byte("unknown command")
}
