// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive MMU console",
	Long: `Open an interactive console bound to one running engine.

Every MMU command (HOME, DISABLE, HALT, STATUS, T0...) is available, plus:
  stats               transaction statistics
  raw CODE [PAYLOAD]  send a raw command code with a hex payload`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	shell := ishell.New()
	shell.SetPrompt("chamois> ")
	shell.Println("Chamois MMU shell - " + s.info)
	shell.Println("Type 'help' for commands, 'exit' to quit")

	for _, name := range s.table.Names() {
		command, _ := s.table.Lookup(name)
		shell.AddCmd(&ishell.Cmd{
			Name:    name,
			Aliases: []string{strings.ToLower(name)},
			Help:    command.Help,
			Func: func(c *ishell.Context) {
				err := s.table.Execute(ctx, command.Name, func(msg string) {
					c.Println(msg)
				})
				if err != nil {
					c.Err(err)
				}
			},
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "stats",
		Help: "Transaction statistics",
		Func: func(c *ishell.Context) {
			c.Print(s.engine.Statistics().Format())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "raw",
		Help: "raw <code> [hex payload], e.g. raw 0xAB 0200",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Println("usage: raw <code> [hex payload]")
				return
			}
			code, err := strconv.ParseUint(c.Args[0], 0, 8)
			if err != nil {
				c.Err(err)
				return
			}
			var payload []byte
			if len(c.Args) > 1 {
				payload, err = hex.DecodeString(strings.Join(c.Args[1:], ""))
				if err != nil {
					c.Err(err)
					return
				}
			}

			resp, err := s.engine.Send(ctx, uint8(code), payload)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s OK, payload: % X\n", chamois.FormatCommand(uint8(code)), resp)
		},
	})

	shell.Run()
	return nil
}
