// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Chamois - Chamois MMU Driver
//
// A CLI tool for driving a Chamois multi-material unit over TCP, a
// WebSocket bridge or a serial bridge.

package main

import (
	"os"

	"github.com/Thermoquad/chamois/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
