// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package engine serializes commands to a Chamois MMU.
//
// A single worker goroutine owns the transport and the status cache, so at
// most one device transaction is ever in flight. Callers enqueue jobs with
// SendAsync or Send from any goroutine and read the cached status with
// Status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/rs/zerolog"
)

// Engine is the command worker plus its public facade
type Engine struct {
	cfg       Config
	log       zerolog.Logger
	transport Transactor
	cache     *StatusCache
	stats     *Statistics
	queue     *jobQueue

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New validates cfg and starts the worker. Without cfg.Dialer the engine
// dials cfg.Endpoint() over TCP.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &TCPDialer{Address: cfg.Endpoint(), Timeout: cfg.ConnectTimeout}
	}

	stats := NewStatistics()
	return start(cfg, NewTransport(dialer, cfg, stats), stats), nil
}

// NewWithTransactor starts a worker over an existing transactor. The
// address fields of cfg are ignored.
func NewWithTransactor(cfg Config, transport Transactor) *Engine {
	return start(cfg.withDefaults(), transport, NewStatistics())
}

func start(cfg Config, transport Transactor, stats *Statistics) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		log:       cfg.logger(),
		transport: transport,
		cache:     NewStatusCache(transport, cfg.Keepalive, stats),
		stats:     stats,
		queue:     newJobQueue(),
		ctx:       ctx,
		cancel:    cancel,
	}

	e.wg.Add(1)
	go e.run()
	return e
}

// run is the worker loop
func (e *Engine) run() {
	defer e.wg.Done()

	for e.ctx.Err() == nil {
		if j, ok := e.queue.pop(e.ctx, e.cfg.PollInterval); ok {
			e.process(j)
		}
		e.keepalive()
	}
}

// process runs one job and resolves its slot
func (e *Engine) process(j *job) {
	name := chamois.FormatCommand(j.command)

	resp, err := e.transport.Transact(e.ctx, j.command, j.payload)
	if err != nil {
		e.log.Debug().Err(err).Str("command", name).Msg("command failed")
		j.result.Resolve(nil, err)
		return
	}

	if err := e.cache.Refresh(e.ctx, true); err != nil && !errors.Is(err, chamois.ErrCancelled) {
		e.log.Warn().Err(err).Str("command", name).Msg("status refresh after command failed")
	}

	if !resp.OK() {
		devErr := chamois.NewDeviceError(j.command, resp)
		e.stats.recordDeviceError(devErr)
		j.result.Resolve(nil, devErr)
		return
	}

	j.result.Resolve(resp.Payload, nil)
}

// keepalive refreshes the cached status once it is older than the
// keepalive interval. Failures are logged only.
func (e *Engine) keepalive() {
	if e.ctx.Err() != nil {
		return
	}
	if err := e.cache.Refresh(e.ctx, false); err != nil && !errors.Is(err, chamois.ErrCancelled) {
		e.log.Debug().Err(err).Msg("keepalive status refresh failed")
	}
}

// SendAsync enqueues a command and returns its result slot immediately.
// After Close the slot is already resolved with ErrCancelled.
func (e *Engine) SendAsync(command uint8, payload []byte) *Result {
	j := &job{
		command: command,
		payload: append([]byte(nil), payload...),
		result:  NewResult(command),
	}

	if e.ctx.Err() != nil || !e.queue.push(j) {
		j.result.Resolve(nil, fmt.Errorf("%s: %w", chamois.FormatCommand(command), chamois.ErrCancelled))
	}
	return j.result
}

// Send enqueues a command and blocks until it completes or ctx is done.
// The returned payload is the device's OK response payload.
func (e *Engine) Send(ctx context.Context, command uint8, payload []byte) ([]byte, error) {
	return e.SendAsync(command, payload).Wait(ctx)
}

// Status returns the cached device status without any device traffic
func (e *Engine) Status() chamois.DeviceStatus {
	return e.cache.Snapshot()
}

// Statistics returns a copy of the transaction counters
func (e *Engine) Statistics() Stats {
	return e.stats.Snapshot()
}

// Pending returns the number of queued jobs not yet picked up
func (e *Engine) Pending() int {
	return e.queue.len()
}

// Close stops the worker and waits for it to exit. An in-flight
// transaction fails with ErrCancelled, as do all jobs still queued.
// Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.cancel()
		e.wg.Wait()

		pending := e.queue.close()
		for _, j := range pending {
			j.result.Resolve(nil, fmt.Errorf("%s: %w", chamois.FormatCommand(j.command), chamois.ErrCancelled))
		}
		if len(pending) > 0 {
			e.log.Debug().Int("jobs", len(pending)).Msg("cancelled queued jobs")
		}
	})
	return nil
}
