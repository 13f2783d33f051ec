// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Decode extracts the first complete frame from buf.
//
// consumed is the number of leading bytes the caller may drop: any garbage
// before the start marker, plus the frame itself when one is returned.
// A nil frame with a nil error means more data is needed. A header with a
// length of zero or above MaxFrameLength yields ErrProtocol and consumed
// covers the bogus marker so the next call rescans past it.
func Decode(buf []byte) (frame *Frame, consumed int, err error) {
	start := bytes.IndexByte(buf, StartMarker)
	if start < 0 {
		return nil, len(buf), nil
	}

	rest := buf[start:]
	if len(rest) < MinFrame {
		return nil, start, nil
	}

	length := int(binary.LittleEndian.Uint16(rest[1:3]))
	if length == 0 || length > MaxFrameLength {
		return nil, start + 1, fmt.Errorf("%w: invalid frame length %d (max %d)", ErrProtocol, length, MaxFrameLength)
	}

	total := HeaderSize + length
	if len(rest) < total {
		return nil, start, nil
	}

	payload := make([]byte, length-1)
	copy(payload, rest[MinFrame:total])

	return &Frame{
		Code:      rest[3],
		Payload:   payload,
		Timestamp: time.Now(),
	}, start + total, nil
}

// Decoder reassembles frames from a byte stream delivered in arbitrary chunks.
type Decoder struct {
	buffer    []byte
	discarded int
	rejected  int
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buffer: make([]byte, 0, 64),
	}
}

// Reset drops all buffered bytes
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
}

// Buffered returns the number of bytes waiting for the rest of a frame
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}

// Discarded returns the total number of bytes skipped while resynchronizing
func (d *Decoder) Discarded() int {
	return d.discarded
}

// Rejected returns the number of headers rejected for an invalid length
func (d *Decoder) Rejected() int {
	return d.rejected
}

// DecodeByte feeds a single byte to the decoder
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	return d.Feed([]byte{b})
}

// Feed appends p to the stream and returns the next complete frame, or nil
// if more data is needed.
//
// A non-nil error reports that an invalid header was skipped during this
// call. Decoding has already resumed past it, so the returned frame may
// still be non-nil. Call Feed(nil) to drain further frames already buffered.
func (d *Decoder) Feed(p []byte) (*Frame, error) {
	d.buffer = append(d.buffer, p...)

	var firstErr error
	for {
		frame, consumed, err := Decode(d.buffer)
		if frame != nil {
			d.discarded += consumed - HeaderSize - frame.Length()
		} else {
			d.discarded += consumed
		}
		d.consume(consumed)

		if err != nil {
			d.rejected++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return frame, firstErr
	}
}

// consume drops n leading bytes, keeping the backing array.
func (d *Decoder) consume(n int) {
	if n <= 0 {
		return
	}
	remaining := copy(d.buffer, d.buffer[n:])
	d.buffer = d.buffer[:remaining]
}
