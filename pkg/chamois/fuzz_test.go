// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a seeded generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomGarbage returns bytes that never contain the start marker
func randomGarbage(rng *rand.Rand, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		b := byte(rng.Intn(256))
		if b == StartMarker {
			b = 0x00
		}
		out[i] = b
	}
	return out
}

// TestFuzz_ChunkedStream splits a garbage-prefixed frame at random points
// and checks the decoder always recovers the same frame.
func TestFuzz_ChunkedStream(t *testing.T) {
	rng := newFuzzRng(t)

	for round := 0; round < getFuzzRounds(); round++ {
		code := uint8(rng.Intn(256))
		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)

		stream := append(randomGarbage(rng, rng.Intn(16)), MustEncode(code, payload)...)

		d := NewDecoder()
		var got *Frame
		for pos := 0; pos < len(stream) && got == nil; {
			n := 1 + rng.Intn(8)
			if pos+n > len(stream) {
				n = len(stream) - pos
			}
			frame, _ := d.Feed(stream[pos : pos+n])
			got = frame
			pos += n
		}

		if got == nil {
			t.Fatalf("round %d: no frame decoded from % X", round, stream)
		}
		if got.Code != code || !bytes.Equal(got.Payload, payload) {
			t.Fatalf("round %d: got (0x%02X, % X), want (0x%02X, % X)", round, got.Code, got.Payload, code, payload)
		}
	}
}

// TestFuzz_RandomBytesNeverPanic feeds pure noise to the decoder.
func TestFuzz_RandomBytesNeverPanic(t *testing.T) {
	rng := newFuzzRng(t)
	d := NewDecoder()

	for round := 0; round < getFuzzRounds(); round++ {
		chunk := make([]byte, rng.Intn(32))
		rng.Read(chunk)
		d.Feed(chunk)

		if d.Buffered() > HeaderSize+MaxFrameLength {
			t.Fatalf("round %d: decoder buffered %d bytes, above one max frame", round, d.Buffered())
		}
	}
}
