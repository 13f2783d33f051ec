// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/Thermoquad/chamois/pkg/simulator"
	"github.com/rs/zerolog"
)

// serveSerial plays an MMU on the far end of a serial line
func serveSerial(conn io.ReadWriter, device *simulator.Device) {
	decoder := chamois.NewDecoder()
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		frame, _ := decoder.Feed(buf[:n])
		for frame != nil {
			code, payload := device.Handle(frame.Code, frame.Payload)
			if _, err := conn.Write(chamois.MustEncode(code, payload)); err != nil {
				return
			}
			frame, _ = decoder.Feed(nil)
		}
	}
}

func bridgeTransact(t *testing.T, addr string, command uint8, payload []byte) *chamois.Frame {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write(chamois.MustEncode(command, payload)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	frame, err := newFrameReader(conn).next(2 * time.Second)
	if err != nil {
		t.Fatalf("%s: read response: %v", chamois.FormatCommand(command), err)
	}
	return frame
}

func TestBridgeRelaysFrames(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()
	go serveSerial(device, simulator.NewDevice(4))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &bridge{serial: newFrameReader(host), writer: host, log: zerolog.Nop(), timeout: 2 * time.Second}
	served := make(chan error, 1)
	go func() { served <- b.serve(ctx, listener) }()

	if resp := bridgeTransact(t, listener.Addr().String(), chamois.CmdPing, nil); !resp.OK() {
		t.Errorf("PING code = 0x%02X, want OK", resp.Code)
	}
	if resp := bridgeTransact(t, listener.Addr().String(), chamois.CmdHome, nil); !resp.OK() {
		t.Errorf("HOME code = 0x%02X, want OK", resp.Code)
	}

	resp := bridgeTransact(t, listener.Addr().String(), chamois.CmdGetStatus, nil)
	status, err := chamois.ParseStatus(resp.Payload)
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if !status.Initialized {
		t.Error("status not initialized after HOME through the bridge")
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}
}

// startBridge serves a bridge over the host end of a serial line
func startBridge(t *testing.T, host net.Conn, timeout time.Duration) (addr string, served <-chan error, cancel context.CancelFunc) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &bridge{serial: newFrameReader(host), writer: host, log: zerolog.Nop(), timeout: timeout}
	done := make(chan error, 1)
	go func() { done <- b.serve(ctx, listener) }()
	t.Cleanup(cancel)
	return listener.Addr().String(), done, cancel
}

func TestBridgeDropsLateResponse(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()
	defer device.Close()

	// The MMU answers HOME only after the bridge has given up on it
	go func() {
		decoder := chamois.NewDecoder()
		buf := make([]byte, 64)
		for {
			n, err := device.Read(buf)
			if err != nil {
				return
			}
			frame, _ := decoder.Feed(buf[:n])
			for frame != nil {
				var reply []byte
				if frame.Code == chamois.CmdHome {
					time.Sleep(150 * time.Millisecond)
					reply = chamois.MustEncode(0x01, []byte("late-home"))
				} else {
					reply = chamois.MustEncode(chamois.ResponseOK, nil)
				}
				if _, err := device.Write(reply); err != nil {
					return
				}
				frame, _ = decoder.Feed(nil)
			}
		}
	}()

	addr, _, _ := startBridge(t, host, 50*time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	conn.Write(chamois.MustEncode(chamois.CmdHome, nil))
	if frame, err := newFrameReader(conn).next(time.Second); err == nil {
		t.Errorf("HOME got a response 0x%02X after the bridge timed out", frame.Code)
	}
	conn.Close()

	// Let the late reply reach the bridge before the next client
	time.Sleep(250 * time.Millisecond)

	resp := bridgeTransact(t, addr, chamois.CmdPing, nil)
	if !resp.OK() || len(resp.Payload) != 0 {
		t.Errorf("PING got code=0x%02X payload=%q, want its own OK", resp.Code, resp.Payload)
	}
}

func TestBridgeStopsWhenSerialFails(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()

	_, served, _ := startBridge(t, host, time.Second)
	device.Close()

	select {
	case err := <-served:
		if !errors.Is(err, io.EOF) {
			t.Errorf("serve() error = %v, want serial EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve() kept running after the serial port failed")
	}
}

func TestFrameReaderLatchesError(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	r := newFrameReader(a)
	b.Close()

	for i := 0; i < 3; i++ {
		if _, err := r.next(time.Second); !errors.Is(err, io.EOF) {
			t.Fatalf("next() #%d error = %v, want EOF", i+1, err)
		}
	}
	if !errors.Is(r.failure(), io.EOF) {
		t.Errorf("failure() = %v, want EOF", r.failure())
	}
}

func TestFrameReaderCloseReleasesFlood(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	r := newFrameReader(a)
	go func() {
		for i := 0; i < 10; i++ {
			if _, err := b.Write(chamois.MustEncode(chamois.CmdPing, nil)); err != nil {
				return
			}
		}
	}()

	// Wait until the queue is full and the reader is blocked on it
	deadline := time.Now().Add(time.Second)
	for len(r.frames) < cap(r.frames) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	r.close()
	select {
	case <-r.exited:
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still blocked after close")
	}
}

func TestFrameReaderTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	_, err := newFrameReader(a).next(20 * time.Millisecond)
	if err != chamois.ErrTimeout {
		t.Errorf("next() error = %v, want ErrTimeout", err)
	}
}
