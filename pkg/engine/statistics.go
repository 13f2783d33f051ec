// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
)

// Stats is a point-in-time copy of the transaction counters
type Stats struct {
	StartTime time.Time

	// Counters
	Transactions    uint64 // completed with a response frame
	Attempts        uint64 // connections opened
	Retries         uint64
	Failures        uint64 // transactions that gave up
	ConnectErrors   uint64
	Timeouts        uint64
	ProtocolErrors  uint64
	IOErrors        uint64
	Resyncs         uint64 // invalid headers skipped by the decoder
	DeviceErrors    uint64 // non-OK response codes
	StatusRefreshes uint64
	StatusFailures  uint64

	LastRTT   time.Duration
	LastError string
}

// Statistics tracks transport and cache counters for one engine
type Statistics struct {
	mu    sync.Mutex
	stats Stats
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{stats: Stats{StartTime: time.Now()}}
}

// Snapshot returns a copy of the current counters
func (s *Statistics) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Statistics) recordAttempt(retry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Attempts++
	if retry {
		s.stats.Retries++
	}
}

func (s *Statistics) recordSuccess(rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Transactions++
	s.stats.LastRTT = rtt
}

// recordError classifies one failed attempt
func (s *Statistics) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LastError = err.Error()
	switch {
	case errors.Is(err, chamois.ErrConnect):
		s.stats.ConnectErrors++
	case errors.Is(err, chamois.ErrTimeout):
		s.stats.Timeouts++
	case errors.Is(err, chamois.ErrProtocol):
		s.stats.ProtocolErrors++
	case errors.Is(err, chamois.ErrIO):
		s.stats.IOErrors++
	}
}

func (s *Statistics) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Failures++
}

func (s *Statistics) recordResync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Resyncs++
}

func (s *Statistics) recordDeviceError(err *chamois.DeviceError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.DeviceErrors++
	s.stats.LastError = err.Error()
}

func (s *Statistics) recordStatus(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.stats.StatusFailures++
		return
	}
	s.stats.StatusRefreshes++
}

// TransactionRate returns completed transactions per second since start
func (s Stats) TransactionRate() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Transactions) / elapsed
}

// Format returns a multi-line human-readable summary
func (s Stats) Format() string {
	result := fmt.Sprintf("Uptime: %v\n", time.Since(s.StartTime).Round(time.Second))
	result += fmt.Sprintf("Transactions: %d (%.2f/s), attempts: %d, retries: %d, failed: %d\n",
		s.Transactions, s.TransactionRate(), s.Attempts, s.Retries, s.Failures)
	result += fmt.Sprintf("Errors: connect=%d timeout=%d protocol=%d io=%d device=%d resync=%d\n",
		s.ConnectErrors, s.Timeouts, s.ProtocolErrors, s.IOErrors, s.DeviceErrors, s.Resyncs)
	result += fmt.Sprintf("Status refreshes: %d (failed %d)\n", s.StatusRefreshes, s.StatusFailures)
	if s.LastRTT > 0 {
		result += fmt.Sprintf("Last RTT: %v\n", s.LastRTT.Round(time.Microsecond))
	}
	if s.LastError != "" {
		result += fmt.Sprintf("Last error: %s\n", s.LastError)
	}
	return result
}
