// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"

	"github.com/Thermoquad/chamois/internal/config"
	"github.com/Thermoquad/chamois/pkg/engine"
	"github.com/Thermoquad/chamois/pkg/toolchange"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// session is a running engine plus everything built on top of it
type session struct {
	cfg      *config.Config
	log      zerolog.Logger
	logClose io.Closer
	info     string

	engine *engine.Engine
	orch   *toolchange.Orchestrator
	table  *toolchange.Table
}

// openSession loads the configuration and starts the engine. onStage may
// be nil.
func openSession(cmd *cobra.Command, onStage func(toolchange.Stage)) (*session, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, err
	}

	log, logClose := newLogger(cfg.Log)

	dialer, err := newDialer(cfg)
	if err != nil {
		logClose.Close()
		return nil, err
	}

	ec := cfg.Engine()
	ec.Dialer = dialer
	ec.Logger = &log

	eng, err := engine.New(ec)
	if err != nil {
		logClose.Close()
		return nil, err
	}

	orch := toolchange.New(eng, shellHooks(cfg.Hooks, log), toolchange.NoMotion{}, toolchange.Config{
		Toolheads: cfg.Toolheads,
		OnStage:   onStage,
		Logger:    &log,
	})

	log.Debug().Str("connection", dialer.String()).Int("toolheads", cfg.Toolheads).Msg("engine started")

	return &session{
		cfg:      cfg,
		log:      log,
		logClose: logClose,
		info:     dialer.String(),
		engine:   eng,
		orch:     orch,
		table:    toolchange.Commands(orch, eng),
	}, nil
}

func (s *session) Close() {
	s.engine.Close()
	s.logClose.Close()
}
