// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

// Result is a single-assignment slot for the outcome of one queued command.
// It is resolved exactly once and may be read by any number of goroutines.
type Result struct {
	command uint8
	once    sync.Once
	done    chan struct{}
	payload []byte
	err     error
}

// NewResult creates an unresolved result for command
func NewResult(command uint8) *Result {
	return &Result{
		command: command,
		done:    make(chan struct{}),
	}
}

// Resolve stores the outcome. Only the first call has an effect; it
// reports whether this call resolved the slot.
func (r *Result) Resolve(payload []byte, err error) bool {
	resolved := false
	r.once.Do(func() {
		r.payload = payload
		r.err = err
		resolved = true
		close(r.done)
	})
	return resolved
}

// Command returns the command code the result belongs to
func (r *Result) Command() uint8 {
	return r.command
}

// Done is closed once the result is resolved
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Ready reports whether the result has been resolved
func (r *Result) Ready() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is resolved or ctx is done. Giving up on
// ctx does not cancel the command; it still runs on the worker. The error
// for a done ctx matches both chamois.ErrCancelled and ctx.Err().
func (r *Result) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-r.done:
		return r.payload, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", chamois.ErrCancelled, ctx.Err())
	}
}

// Err returns the resolved error, or nil while pending
func (r *Result) Err() error {
	if !r.Ready() {
		return nil
	}
	return r.err
}

// Payload returns the resolved payload, or nil while pending
func (r *Result) Payload() []byte {
	if !r.Ready() {
		return nil
	}
	return r.payload
}
