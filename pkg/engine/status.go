// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

// StatusCache holds the last GET_STATUS snapshot. Refresh is called only
// from the worker; Snapshot is safe from any goroutine and always returns
// a whole snapshot.
type StatusCache struct {
	transport Transactor
	keepalive time.Duration
	stats     *Statistics
	now       func() time.Time

	mu     sync.RWMutex
	status chamois.DeviceStatus
}

// NewStatusCache creates an empty cache. keepalive <= 0 disables
// non-forced refreshes.
func NewStatusCache(transport Transactor, keepalive time.Duration, stats *Statistics) *StatusCache {
	if stats == nil {
		stats = NewStatistics()
	}
	return &StatusCache{
		transport: transport,
		keepalive: keepalive,
		stats:     stats,
		now:       time.Now,
	}
}

// Due reports whether a non-forced refresh would query the device
func (c *StatusCache) Due() bool {
	if c.keepalive <= 0 {
		return false
	}
	c.mu.RLock()
	last := c.status.LastUpdate
	c.mu.RUnlock()
	return c.now().Sub(last) >= c.keepalive
}

// Refresh queries GET_STATUS unless force is false and the snapshot is
// younger than the keepalive interval.
func (c *StatusCache) Refresh(ctx context.Context, force bool) error {
	if !force && !c.Due() {
		return nil
	}

	now := c.now()
	err := c.refresh(ctx, now)
	c.stats.recordStatus(err)
	return err
}

func (c *StatusCache) refresh(ctx context.Context, now time.Time) error {
	resp, err := c.transport.Transact(ctx, chamois.CmdGetStatus, nil)
	if err != nil {
		return fmt.Errorf("status refresh: %w", err)
	}
	if !resp.OK() {
		return fmt.Errorf("status refresh: %w", chamois.NewDeviceError(chamois.CmdGetStatus, resp))
	}

	status, err := chamois.ParseStatus(resp.Payload)
	if err != nil {
		return fmt.Errorf("status refresh: %w", err)
	}
	status.LastUpdate = now

	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the cached status
func (c *StatusCache) Snapshot() chamois.DeviceStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}
