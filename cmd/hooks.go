// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Thermoquad/chamois/pkg/toolchange"
	"github.com/rs/zerolog"
)

// shellHooks turns the configured hook scripts into a hook table. Each
// script runs with sh -c and CHAMOIS_HOOK set to the hook name.
func shellHooks(scripts map[string]string, log zerolog.Logger) toolchange.HookTable {
	table := toolchange.HookTable{}
	for name, script := range scripts {
		if strings.TrimSpace(script) == "" {
			continue
		}
		name, script := name, script
		table[name] = func(ctx context.Context) error {
			cmd := exec.CommandContext(ctx, "sh", "-c", script)
			cmd.Env = append(os.Environ(), "CHAMOIS_HOOK="+name)

			out, err := cmd.CombinedOutput()
			output := strings.TrimSpace(string(out))
			log.Debug().Str("hook", name).Str("output", output).Msg("hook finished")

			if err != nil {
				if output != "" {
					return fmt.Errorf("%v: %s", err, output)
				}
				return err
			}
			return nil
		}
	}
	return table
}
