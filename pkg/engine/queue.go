// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"sync"
	"time"
)

// job is one queued command. It is never mutated after creation.
type job struct {
	command uint8
	payload []byte
	result  *Result
}

// jobQueue is an unbounded FIFO with many producers and one consumer
type jobQueue struct {
	mu     sync.Mutex
	jobs   []*job
	closed bool
	notify chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{notify: make(chan struct{}, 1)}
}

// push appends j; it returns false once the queue is closed
func (q *jobQueue) push(j *job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// pop waits up to wait for the next job
func (q *jobQueue) pop(ctx context.Context, wait time.Duration) (*job, bool) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			j := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return j, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
			return nil, false
		}
	}
}

// close rejects further pushes and returns the jobs still waiting
func (q *jobQueue) close() []*job {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	pending := q.jobs
	q.jobs = nil
	return pending
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
