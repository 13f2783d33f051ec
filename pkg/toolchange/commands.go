// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package toolchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

// ErrUnknownCommand is returned by Execute for names not in the table
var ErrUnknownCommand = errors.New("unknown command")

// Responder receives progress messages for the user
type Responder func(msg string)

// Handler runs one textual command
type Handler func(ctx context.Context, respond Responder) error

// Command is an entry of the command table
type Command struct {
	Name    string
	Help    string
	Handler Handler
}

// Table maps textual command names to handlers. It is built once and
// never modified.
type Table struct {
	commands map[string]Command
	order    []string
}

// Commands builds HOME, DISABLE, HALT, STATUS and T0..T{n-1}
func Commands(o *Orchestrator, dev Device) *Table {
	t := &Table{commands: make(map[string]Command)}

	t.add("HOME", "Initializes and homes the Chamois MMU", func(ctx context.Context, respond Responder) error {
		respond("Chamois MMU Homing")
		if err := o.Home(ctx); err != nil {
			return fmt.Errorf("failed to home Chamois MMU: %w", err)
		}
		respond("Chamois MMU is ready")
		return nil
	})

	t.add("DISABLE", "Disables the Chamois MMU", func(ctx context.Context, respond Responder) error {
		respond("Disabling Chamois MMU")
		if err := o.Disable(ctx); err != nil {
			return fmt.Errorf("failed to disable Chamois MMU: %w", err)
		}
		respond("Chamois MMU is disabled")
		return nil
	})

	t.add("HALT", "Restarts the Chamois MMU", func(ctx context.Context, respond Responder) error {
		respond("Chamois MMU Halting")
		if err := o.Halt(ctx); err != nil {
			return fmt.Errorf("failed to halt Chamois MMU: %w", err)
		}
		respond("Chamois MMU is halted")
		return nil
	})

	t.add("STATUS", "Reports the cached Chamois MMU status", func(ctx context.Context, respond Responder) error {
		respond(chamois.FormatStatus(dev.Status()))
		return nil
	})

	for i := 0; i < o.Toolheads(); i++ {
		index := i
		t.add(fmt.Sprintf("T%d", index), fmt.Sprintf("Changes to tool %d", index), func(ctx context.Context, respond Responder) error {
			respond("Chamois MMU Tool Change")
			if _, err := o.ToolChange(ctx, index); err != nil {
				return fmt.Errorf("tool change failed: %w", err)
			}
			respond(fmt.Sprintf("Tool change to index %d completed successfully.", index))
			return nil
		})
	}

	return t
}

func (t *Table) add(name, help string, handler Handler) {
	t.commands[name] = Command{Name: name, Help: help, Handler: handler}
	t.order = append(t.order, name)
}

// Lookup finds a command by name, ignoring case
func (t *Table) Lookup(name string) (Command, bool) {
	cmd, ok := t.commands[strings.ToUpper(strings.TrimSpace(name))]
	return cmd, ok
}

// Names returns the command names in registration order
func (t *Table) Names() []string {
	return append([]string(nil), t.order...)
}

// Execute runs the named command
func (t *Table) Execute(ctx context.Context, name string, respond Responder) error {
	cmd, ok := t.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	if respond == nil {
		respond = func(string) {}
	}
	return cmd.Handler(ctx, respond)
}
