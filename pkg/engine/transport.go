// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/rs/zerolog"
)

// Transactor performs one request/response exchange with the MMU
type Transactor interface {
	Transact(ctx context.Context, command uint8, payload []byte) (*chamois.Frame, error)
}

// Transport sends each request over a brand-new connection and retries
// connect, timeout, protocol and I/O failures up to MaxRetries attempts.
// Cancellation of ctx is never retried.
type Transport struct {
	dialer       Dialer
	readTimeout  time.Duration
	maxRetries   int
	pollInterval time.Duration
	log          zerolog.Logger
	stats        *Statistics
}

// NewTransport creates a transport over dialer. stats may be nil.
func NewTransport(dialer Dialer, cfg Config, stats *Statistics) *Transport {
	cfg = cfg.withDefaults()
	if stats == nil {
		stats = NewStatistics()
	}
	return &Transport{
		dialer:       dialer,
		readTimeout:  cfg.ReadTimeout,
		maxRetries:   cfg.MaxRetries,
		pollInterval: cfg.PollInterval,
		log:          cfg.logger(),
		stats:        stats,
	}
}

// Transact sends command and waits for the response frame. A non-OK
// response code is not an error at this level.
func (t *Transport) Transact(ctx context.Context, command uint8, payload []byte) (*chamois.Frame, error) {
	request, err := chamois.Encode(command, payload)
	if err != nil {
		return nil, err
	}

	name := chamois.FormatCommand(command)

	var lastErr error
	for attempt := 1; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", name, chamois.ErrCancelled)
		}

		t.stats.recordAttempt(attempt > 1)
		start := time.Now()

		resp, err := t.attempt(ctx, request)
		if err == nil {
			t.stats.recordSuccess(time.Since(start))
			return resp, nil
		}

		err = fmt.Errorf("%s attempt %d/%d: %w", name, attempt, t.maxRetries, err)
		if errors.Is(err, chamois.ErrCancelled) {
			return nil, err
		}

		t.stats.recordError(err)
		lastErr = err

		if attempt < t.maxRetries {
			t.log.Warn().Err(err).Str("command", name).Int("attempt", attempt).Msg("transaction failed, retrying")
		}
	}

	t.stats.recordFailure()
	return nil, lastErr
}

// attempt runs one transaction on a fresh connection
func (t *Transport) attempt(ctx context.Context, request []byte) (*chamois.Frame, error) {
	conn, err := t.dialer.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, chamois.ErrCancelled
		}
		return nil, fmt.Errorf("%w: %v", chamois.ErrConnect, err)
	}
	defer conn.Close()

	// Wake any blocked read as soon as the engine shuts down
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(t.readTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", chamois.ErrIO, err)
	}

	if _, err := conn.Write(request); err != nil {
		if ctx.Err() != nil {
			return nil, chamois.ErrCancelled
		}
		return nil, fmt.Errorf("%w: write: %v", chamois.ErrIO, err)
	}

	decoder := chamois.NewDecoder()
	buf := make([]byte, 256)

	for {
		if ctx.Err() != nil {
			return nil, chamois.ErrCancelled
		}

		now := time.Now()
		if !now.Before(deadline) {
			return nil, fmt.Errorf("%w after %v", chamois.ErrTimeout, t.readTimeout)
		}

		poll := now.Add(t.pollInterval)
		if poll.After(deadline) {
			poll = deadline
		}
		if err := conn.SetReadDeadline(poll); err != nil {
			return nil, fmt.Errorf("%w: %v", chamois.ErrIO, err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			frame, decodeErr := decoder.Feed(buf[:n])
			if decodeErr != nil {
				t.stats.recordResync()
				t.log.Debug().Err(decodeErr).Msg("skipped invalid frame header")
			}
			if frame != nil {
				return frame, nil
			}
		}

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil, chamois.ErrCancelled
			case isTimeout(err):
				continue
			case errors.Is(err, io.EOF):
				return nil, fmt.Errorf("%w: connection closed after %d bytes without a complete frame",
					chamois.ErrIO, decoder.Buffered()+decoder.Discarded())
			default:
				return nil, fmt.Errorf("%w: read: %v", chamois.ErrIO, err)
			}
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
