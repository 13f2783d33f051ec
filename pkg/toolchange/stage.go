// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package toolchange

import (
	"errors"
	"fmt"
)

// Stage is a step of an orchestrated sequence
type Stage int

const (
	StageIdle Stage = iota
	StagePinging
	StageHoming
	StageParking
	StageUnloading
	StageSelecting
	StageLoading
	StageReleasing
	StageAfterHook
	StageHalting
	StageDisabling
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:      "idle",
	StagePinging:   "ping",
	StageHoming:    "home",
	StageParking:   "park",
	StageUnloading: "unload",
	StageSelecting: "select tool",
	StageLoading:   "load",
	StageReleasing: "release",
	StageAfterHook: "after load",
	StageHalting:   "halt",
	StageDisabling: "disable",
	StageDone:      "done",
	StageFailed:    "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ErrInvalidTool is returned for a tool index outside the configured range
var ErrInvalidTool = errors.New("invalid tool index")

// StepError identifies the stage a sequence failed in
type StepError struct {
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}
