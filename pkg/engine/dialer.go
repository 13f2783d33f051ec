// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package engine

import (
	"context"
	"io"
	"net"
	"time"
)

// Conn is a single-transaction connection to the MMU
type Conn interface {
	io.Reader
	io.Writer
	io.Closer

	// SetDeadline bounds the whole transaction
	SetDeadline(t time.Time) error
	// SetReadDeadline bounds the next Read
	SetReadDeadline(t time.Time) error
}

// Dialer opens a fresh connection for every transaction
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	String() string
}

// TCPDialer connects directly to the MMU over TCP
type TCPDialer struct {
	Address string // host:port
	Timeout time.Duration
}

// Dial opens a TCP connection, bounded by the connect timeout
func (d *TCPDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (d *TCPDialer) String() string {
	return "TCP: " + d.Address
}
