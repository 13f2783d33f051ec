// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Thermoquad/chamois/pkg/chamois"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	bridgeSerial  string
	bridgeBaud    int
	bridgeListen  string
	bridgeTimeout time.Duration
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Expose a serially attached MMU on TCP",
	Long: `Forward MMU frames between TCP clients and a serial port.

Each TCP connection carries one transaction: the request frame is written
to the serial port and the first complete frame read back is returned to
the client. Clients are served one at a time, matching the one command in
flight the MMU accepts.`,
	Example: "  chamois bridge --serial /dev/ttyACM0 --listen :5433",
	Args:    cobra.NoArgs,
	RunE:    runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVarP(&bridgeSerial, "serial", "s", "", "Serial port device")
	bridgeCmd.Flags().IntVarP(&bridgeBaud, "baud", "b", 115200, "Baud rate")
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", ":5433", "TCP listen address")
	bridgeCmd.Flags().DurationVar(&bridgeTimeout, "timeout", 20*time.Second, "Time allowed for the MMU to answer")
	bridgeCmd.MarkFlagRequired("serial")
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	log, logClose := newLogger(cfg.Log)
	defer logClose.Close()

	port, err := openSerialPort(bridgeSerial, bridgeBaud)
	if err != nil {
		return err
	}
	defer port.Close()

	listener, err := net.Listen("tcp", bridgeListen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %v", bridgeListen, err)
	}

	fmt.Printf("Chamois - Serial Bridge\n")
	fmt.Printf("Serial: %s @ %d baud\n", bridgeSerial, bridgeBaud)
	fmt.Printf("Listening: %s\n", listener.Addr())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	b := &bridge{serial: newFrameReader(port), writer: port, log: log, timeout: bridgeTimeout}
	return b.serve(cmd.Context(), listener)
}

// bridge relays one frame each way per TCP connection
type bridge struct {
	mu      sync.Mutex
	serial  *frameReader
	writer  io.Writer
	log     zerolog.Logger
	timeout time.Duration
}

// serve accepts clients until ctx is done or the serial side fails. A
// serial failure is returned.
func (b *bridge) serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	go func() {
		select {
		case <-b.serial.dead:
			listener.Close()
		case <-ctx.Done():
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if serr := b.serial.failure(); serr != nil {
				return fmt.Errorf("serial port failed: %w", serr)
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			b.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go b.handle(conn)
	}
}

func (b *bridge) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(b.timeout))

	client := newFrameReader(conn)
	defer client.close()

	request, err := client.next(b.timeout)
	if err != nil {
		b.log.Debug().Err(err).Str("client", conn.RemoteAddr().String()).Msg("no request")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Replies that arrived after an earlier client gave up belong to nobody
	for _, stale := range b.serial.drain() {
		b.log.Warn().
			Uint8("code", stale.Code).
			Int("payload_len", len(stale.Payload)).
			Msg("dropped late response from MMU")
	}

	if _, err := b.writer.Write(chamois.MustEncode(request.Code, request.Payload)); err != nil {
		b.log.Error().Err(err).Msg("serial write failed")
		return
	}

	response, err := b.serial.next(b.timeout)
	if err != nil {
		b.log.Warn().Err(err).Str("command", chamois.FormatCommand(request.Code)).Msg("no response from MMU")
		return
	}

	if _, err := conn.Write(chamois.MustEncode(response.Code, response.Payload)); err != nil {
		b.log.Debug().Err(err).Msg("client write failed")
		return
	}
	b.log.Info().
		Str("command", chamois.FormatCommand(request.Code)).
		Uint8("code", response.Code).
		Msg("relayed")
}

// frameReader pulls whole frames from a byte stream. The first read error
// is latched and returned by every later next.
type frameReader struct {
	r       io.Reader
	decoder *chamois.Decoder
	frames  chan *chamois.Frame

	err    error         // valid once dead is closed
	dead   chan struct{} // closed when r fails
	stop   chan struct{}
	exited chan struct{} // closed when pump returns
	once   sync.Once
}

func newFrameReader(r io.Reader) *frameReader {
	f := &frameReader{
		r:       r,
		decoder: chamois.NewDecoder(),
		frames:  make(chan *chamois.Frame, 4),
		dead:    make(chan struct{}),
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go f.pump()
	return f
}

// pump reads r until it fails or the reader is closed, queueing every
// decoded frame
func (f *frameReader) pump() {
	defer close(f.exited)

	buf := make([]byte, 256)
	for {
		n, err := f.r.Read(buf)
		if n > 0 {
			frame, _ := f.decoder.Feed(buf[:n])
			for frame != nil {
				select {
				case f.frames <- frame:
				case <-f.stop:
					return
				}
				frame, _ = f.decoder.Feed(nil)
			}
		}
		if err != nil {
			f.err = err
			close(f.dead)
			return
		}
	}
}

// next waits for the next frame
func (f *frameReader) next(timeout time.Duration) (*chamois.Frame, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-f.frames:
		return frame, nil
	case <-f.dead:
		return nil, f.err
	case <-timer.C:
		return nil, chamois.ErrTimeout
	}
}

// drain discards and returns the frames already queued
func (f *frameReader) drain() []*chamois.Frame {
	var stale []*chamois.Frame
	for {
		select {
		case frame := <-f.frames:
			stale = append(stale, frame)
		default:
			return stale
		}
	}
}

// failure returns the latched read error, or nil while r is healthy
func (f *frameReader) failure() error {
	select {
	case <-f.dead:
		return f.err
	default:
		return nil
	}
}

// close stops queueing frames. It does not close r; a pump blocked in Read
// returns when the owner closes it.
func (f *frameReader) close() {
	f.once.Do(func() { close(f.stop) })
}
