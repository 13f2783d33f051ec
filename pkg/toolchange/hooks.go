// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package toolchange

import (
	"context"
	"fmt"
)

// Hook names invoked during a tool change
const (
	HookPark         = "PARK"
	HookBeforeUnload = "BEFORE_UNLOAD"
	HookOnUnload     = "ON_UNLOAD"
	HookOnLoad       = "ON_LOAD"
	HookAfterLoad    = "AFTER_LOAD"
)

// HookNames lists every hook in the order a full tool change may run them
var HookNames = []string{HookPark, HookBeforeUnload, HookOnUnload, HookOnLoad, HookAfterLoad}

// Hooks is the registry of user scripts
type Hooks interface {
	Exists(name string) bool
	Run(ctx context.Context, name string) error
}

// Motion waits for queued printer motion to finish
type Motion interface {
	WaitMoves(ctx context.Context) error
}

// HookFunc is a single registered hook
type HookFunc func(ctx context.Context) error

// HookTable is a Hooks backed by a map
type HookTable map[string]HookFunc

// Exists reports whether name is registered
func (t HookTable) Exists(name string) bool {
	_, ok := t[name]
	return ok
}

// Run invokes the named hook
func (t HookTable) Run(ctx context.Context, name string) error {
	fn, ok := t[name]
	if !ok {
		return fmt.Errorf("hook %s is not registered", name)
	}
	return fn(ctx)
}

// NoMotion is a Motion with nothing to wait for
type NoMotion struct{}

// WaitMoves returns immediately
func (NoMotion) WaitMoves(context.Context) error { return nil }
