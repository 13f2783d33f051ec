// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package toolchange sequences MMU commands with printer hooks for tool
// changes, homing, halting and disabling.
//
// A failed step is not rolled back: a tool change that fails after UNLOAD
// leaves the MMU unloaded.
package toolchange

import (
	"context"
	"fmt"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/engine"
	"github.com/rs/zerolog"
)

// Device is the command facade the orchestrator drives
type Device interface {
	Send(ctx context.Context, command uint8, payload []byte) ([]byte, error)
	SendAsync(command uint8, payload []byte) *engine.Result
	Status() chamois.DeviceStatus
}

// Config configures an Orchestrator
type Config struct {
	Toolheads int
	OnStage   func(Stage) // called on every stage transition, may be nil
	Logger    *zerolog.Logger
}

// Orchestrator runs tool changes against one device
type Orchestrator struct {
	dev    Device
	hooks  Hooks
	motion Motion
	cfg    Config
	log    zerolog.Logger
}

// New creates an orchestrator. hooks and motion may be nil.
func New(dev Device, hooks Hooks, motion Motion, cfg Config) *Orchestrator {
	if hooks == nil {
		hooks = HookTable{}
	}
	if motion == nil {
		motion = NoMotion{}
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Orchestrator{dev: dev, hooks: hooks, motion: motion, cfg: cfg, log: log}
}

// Toolheads returns the configured number of tools
func (o *Orchestrator) Toolheads() int {
	return o.cfg.Toolheads
}

func (o *Orchestrator) enter(s Stage) {
	o.log.Info().Str("stage", s.String()).Msg("tool change stage")
	if o.cfg.OnStage != nil {
		o.cfg.OnStage(s)
	}
}

func (o *Orchestrator) fail(s Stage, err error) error {
	o.log.Error().Err(err).Str("stage", s.String()).Msg("sequence failed")
	if o.cfg.OnStage != nil {
		o.cfg.OnStage(StageFailed)
	}
	return &StepError{Stage: s, Err: err}
}

// ToolChange switches the MMU to tool index and returns it
func (o *Orchestrator) ToolChange(ctx context.Context, index int) (int, error) {
	if index < 0 || index >= o.cfg.Toolheads {
		return 0, fmt.Errorf("%w: %d, must be between 0 and %d", ErrInvalidTool, index, o.cfg.Toolheads-1)
	}

	o.enter(StagePinging)
	if _, err := o.dev.Send(ctx, chamois.CmdPing, nil); err != nil {
		return 0, o.fail(StagePinging, err)
	}

	if status := o.dev.Status(); !status.Initialized {
		o.enter(StageHoming)
		if _, err := o.dev.Send(ctx, chamois.CmdHome, nil); err != nil {
			return 0, o.fail(StageHoming, err)
		}
	} else if status.Loaded && int(status.SelectedIndex) == index {
		o.log.Info().Int("tool", index).Msg("tool already loaded")
		o.enter(StageDone)
		return index, nil
	}

	o.enter(StageParking)
	if err := o.runHook(ctx, HookPark); err != nil {
		return 0, o.fail(StageParking, err)
	}

	if o.dev.Status().Loaded {
		o.enter(StageUnloading)
		if err := o.unload(ctx); err != nil {
			return 0, o.fail(StageUnloading, err)
		}
	}

	o.enter(StageSelecting)
	if _, err := o.dev.Send(ctx, chamois.CmdSelectTool, chamois.ToolIndexPayload(index)); err != nil {
		return 0, o.fail(StageSelecting, err)
	}

	o.enter(StageLoading)
	if err := o.load(ctx); err != nil {
		return 0, o.fail(StageLoading, err)
	}

	o.enter(StageReleasing)
	if _, err := o.dev.Send(ctx, chamois.CmdRelease, nil); err != nil {
		return 0, o.fail(StageReleasing, err)
	}

	o.enter(StageAfterHook)
	if err := o.runHook(ctx, HookAfterLoad); err != nil {
		return 0, o.fail(StageAfterHook, err)
	}

	o.enter(StageDone)
	return index, nil
}

// Home homes the MMU
func (o *Orchestrator) Home(ctx context.Context) error {
	o.enter(StageHoming)
	if _, err := o.dev.Send(ctx, chamois.CmdHome, nil); err != nil {
		return o.fail(StageHoming, err)
	}
	o.enter(StageDone)
	return nil
}

// Halt stops the MMU immediately
func (o *Orchestrator) Halt(ctx context.Context) error {
	o.enter(StageHalting)
	if _, err := o.dev.Send(ctx, chamois.CmdHalt, nil); err != nil {
		return o.fail(StageHalting, err)
	}
	o.enter(StageDone)
	return nil
}

// Disable unloads any loaded filament and disables the MMU
func (o *Orchestrator) Disable(ctx context.Context) error {
	o.enter(StagePinging)
	if _, err := o.dev.Send(ctx, chamois.CmdPing, nil); err != nil {
		return o.fail(StagePinging, err)
	}

	if o.dev.Status().Loaded {
		o.enter(StageParking)
		if err := o.runHook(ctx, HookPark); err != nil {
			return o.fail(StageParking, err)
		}
		o.enter(StageUnloading)
		if err := o.unload(ctx); err != nil {
			return o.fail(StageUnloading, err)
		}
	}

	o.enter(StageDisabling)
	if _, err := o.dev.Send(ctx, chamois.CmdDisable, nil); err != nil {
		return o.fail(StageDisabling, err)
	}
	o.enter(StageDone)
	return nil
}

func (o *Orchestrator) unload(ctx context.Context) error {
	if err := o.runHook(ctx, HookBeforeUnload); err != nil {
		return err
	}
	return o.pump(ctx, o.dev.SendAsync(chamois.CmdUnload, nil), HookOnUnload)
}

func (o *Orchestrator) load(ctx context.Context) error {
	if err := o.pump(ctx, o.dev.SendAsync(chamois.CmdLoad, nil), HookOnLoad); err != nil {
		return err
	}
	// Final settle pass once the filament is in
	return o.runHook(ctx, HookOnLoad)
}

// runHook runs a registered hook and waits for the motion it queued
func (o *Orchestrator) runHook(ctx context.Context, name string) error {
	if !o.hooks.Exists(name) {
		return nil
	}
	o.log.Debug().Str("hook", name).Msg("running hook")
	if err := o.hooks.Run(ctx, name); err != nil {
		return fmt.Errorf("hook %s: %w", name, err)
	}
	if err := o.motion.WaitMoves(ctx); err != nil {
		return fmt.Errorf("hook %s: wait moves: %w", name, err)
	}
	return nil
}

// pump runs hook repeatedly while result is pending, or just waits for
// it when the hook is not registered
func (o *Orchestrator) pump(ctx context.Context, result *engine.Result, hook string) error {
	if o.hooks.Exists(hook) {
		for !result.Ready() {
			if err := o.runHook(ctx, hook); err != nil {
				return err
			}
		}
	}

	_, err := result.Wait(ctx)
	return err
}
