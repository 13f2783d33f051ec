// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package simulator serves a simulated Chamois MMU over TCP.
package simulator

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/rs/zerolog"
)

// Fault overrides the device's answer to one command
type Fault struct {
	Code    uint8         // response code sent instead of running the command
	Detail  string        // diagnostic payload sent with Code
	Drop    bool          // close the connection without answering
	Delay   time.Duration // wait before answering
	Garbage []byte        // bytes written ahead of the response frame
	Times   int           // number of requests affected; 0 means every request
}

// Config configures a Simulator
type Config struct {
	Toolheads   int
	Delay       time.Duration // added to every command
	ConnTimeout time.Duration
	Logger      *zerolog.Logger
}

// Simulator is a TCP server that answers the MMU wire protocol
type Simulator struct {
	cfg Config
	log zerolog.Logger

	mu       sync.Mutex
	device   *Device
	faults   map[uint8]*Fault
	received []uint8
	conns    int

	listener  net.Listener
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a simulator; call Start to begin listening
func New(cfg Config) *Simulator {
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Simulator{
		cfg:    cfg,
		log:    log,
		device: NewDevice(cfg.Toolheads),
		faults: make(map[uint8]*Fault),
		closed: make(chan struct{}),
	}
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in
// the background
func (s *Simulator) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info().Str("addr", listener.Addr().String()).Msg("simulator listening")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the listening address
func (s *Simulator) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the listener and waits for open connections to finish
func (s *Simulator) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.wg.Wait()
	})
	return err
}

func (s *Simulator) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection answers requests until the client hangs up
func (s *Simulator) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(s.cfg.ConnTimeout))

	// Unblock reads on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.closed:
			conn.Close()
		case <-done:
		}
	}()

	decoder := chamois.NewDecoder()
	buf := make([]byte, 512)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		frame, _ := decoder.Feed(buf[:n])
		for frame != nil {
			if !s.respond(conn, frame) {
				return
			}
			frame, _ = decoder.Feed(nil)
		}
	}
}

// respond handles one request; it returns false when the connection
// should be dropped
func (s *Simulator) respond(conn net.Conn, req *chamois.Frame) bool {
	s.mu.Lock()
	s.received = append(s.received, req.Code)
	fault := s.takeFault(req.Code)
	s.mu.Unlock()

	delay := s.cfg.Delay
	if fault != nil {
		delay += fault.Delay
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-s.closed:
			return false
		}
	}

	if fault != nil && fault.Drop {
		s.log.Debug().Str("command", chamois.FormatCommand(req.Code)).Msg("dropping connection")
		return false
	}

	var code uint8
	var payload []byte
	if fault != nil && fault.Code != chamois.ResponseOK {
		code, payload = fault.Code, []byte(fault.Detail)
	} else {
		s.mu.Lock()
		code, payload = s.device.Handle(req.Code, req.Payload)
		s.mu.Unlock()
	}

	wire, err := chamois.Encode(code, payload)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
		return false
	}
	if fault != nil && len(fault.Garbage) > 0 {
		wire = append(append([]byte(nil), fault.Garbage...), wire...)
	}

	s.log.Debug().
		Str("command", chamois.FormatCommand(req.Code)).
		Uint8("code", code).
		Msg("request handled")

	_, err = conn.Write(wire)
	return err == nil
}

// takeFault returns the active fault for command and consumes one use.
// Callers hold s.mu.
func (s *Simulator) takeFault(command uint8) *Fault {
	f, ok := s.faults[command]
	if !ok {
		return nil
	}
	out := *f
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.faults, command)
		}
	}
	return &out
}

// SetFault installs f for command, replacing any previous fault
func (s *Simulator) SetFault(command uint8, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[command] = &f
}

// ClearFaults removes every installed fault
func (s *Simulator) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[uint8]*Fault)
}

// State returns the device state
func (s *Simulator) State() chamois.DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device.State
}

// SetState replaces the device state
func (s *Simulator) SetState(state chamois.DeviceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device.State = state
}

// Received returns every command code received, in order
func (s *Simulator) Received() []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint8(nil), s.received...)
}

// Connections returns the number of accepted connections
func (s *Simulator) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}
