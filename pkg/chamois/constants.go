// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package chamois implements the wire protocol spoken by the Chamois
// multi-material unit (MMU).
//
// Every message, in both directions, is a single frame:
//
//	0xAA | length (u16, little-endian) | code (u8) | payload
//
// where length counts the code byte plus the payload. Requests carry a
// command code, responses carry a response code (0x00 means success).
// The package provides frame encoding, resynchronizing decoding, status
// payload parsing and human-readable formatting. It performs no I/O.
package chamois

// Protocol framing
const (
	StartMarker = 0xAA
	HeaderSize  = 3 // marker + 2 length bytes
	MinFrame    = HeaderSize + 1
)

// MaxFrameLength bounds the length field accepted from a peer.
// The device only ever sends small control payloads.
const MaxFrameLength = 4096

// Command codes (host → MMU)
const (
	CmdPing       = 0x01
	CmdHalt       = 0x02
	CmdGetStatus  = 0xA0
	CmdHome       = 0xA6
	CmdDisable    = 0xA8
	CmdLoad       = 0xA9
	CmdUnload     = 0xAA
	CmdSelectTool = 0xAB
	CmdRelease    = 0xAE
)

// ResponseOK is the only successful response code.
const ResponseOK = 0x00

// GET_STATUS response layout
const (
	StatusPayloadSize = 19

	statusOffsetInitialized = 0
	statusOffsetLoaded      = 1
	statusOffsetSelected    = 2
	statusOffsetExtruded    = 3
	statusOffsetToolChanges = 11
)
