// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/chamois/internal/config"
	"github.com/Thermoquad/chamois/pkg/engine"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// openSerialPort opens the MMU's serial line in 8N1 mode and drops any
// bytes received before we attached
func openSerialPort(portName string, baudRate int) (serial.Port, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port %s: %v", portName, err)
	}
	return port, nil
}

// readPassword takes the bridge password from CHAMOIS_PASSWORD or prompts
// for it
func readPassword() (string, error) {
	if pw := os.Getenv("CHAMOIS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// stdin is not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newDialer picks the WebSocket bridge when a URL is configured, and a
// direct TCP connection otherwise
func newDialer(cfg *config.Config) (engine.Dialer, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = readPassword()
			if err != nil {
				return nil, err
			}
		}

		return &engine.WebSocketDialer{
			URL:           cfg.URL,
			Username:      cfg.Username,
			Password:      password,
			SkipSSLVerify: cfg.NoSSLVerify,
			Timeout:       cfg.ConnectTimeout,
		}, nil
	}

	ec := cfg.Engine()
	return &engine.TCPDialer{Address: ec.Endpoint(), Timeout: cfg.ConnectTimeout}, nil
}
