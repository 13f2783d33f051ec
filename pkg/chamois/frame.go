// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import "time"

// Frame is one decoded protocol message.
// Code is a command code for requests and a response code for responses.
type Frame struct {
	Code      uint8
	Payload   []byte
	Timestamp time.Time
}

// OK reports whether a response frame carries the success code.
func (f *Frame) OK() bool {
	return f.Code == ResponseOK
}

// Length returns the value of the frame's length field.
func (f *Frame) Length() int {
	return 1 + len(f.Payload)
}
