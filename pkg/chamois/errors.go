// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chamois

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Wrap them with fmt.Errorf("%w") and test with errors.Is.
var (
	ErrConnect   = errors.New("connect failed")
	ErrTimeout   = errors.New("response timed out")
	ErrCancelled = errors.New("cancelled")
	ErrProtocol  = errors.New("protocol error")
	ErrConfig    = errors.New("invalid configuration")
	ErrIO        = errors.New("i/o error")
)

// DeviceError is a non-OK response code returned by the MMU.
type DeviceError struct {
	Command uint8
	Code    uint8
	Detail  string // diagnostic text sent by the device, may be empty
}

// NewDeviceError builds a DeviceError from a response frame.
// Invalid UTF-8 in the payload is dropped.
func NewDeviceError(command uint8, resp *Frame) *DeviceError {
	return &DeviceError{
		Command: command,
		Code:    resp.Code,
		Detail:  strings.ToValidUTF8(string(resp.Payload), ""),
	}
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("command %s failed, code=%#x", FormatCommand(e.Command), e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Kind classifies an error for callers that branch on failure type.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnect
	KindTimeout
	KindCancelled
	KindDevice
	KindConfig
	KindProtocol
	KindIO
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindConnect:   "connect",
	KindTimeout:   "timeout",
	KindCancelled: "cancelled",
	KindDevice:    "device",
	KindConfig:    "config",
	KindProtocol:  "protocol",
	KindIO:        "io",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindOf returns the class of err, or KindUnknown.
func KindOf(err error) Kind {
	var devErr *DeviceError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.As(err, &devErr):
		return KindDevice
	case errors.Is(err, ErrConnect):
		return KindConnect
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrIO):
		return KindIO
	}
	return KindUnknown
}

// Retryable reports whether a transaction that failed with err may be
// attempted again on a fresh connection.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnect, KindTimeout, KindProtocol, KindIO:
		return true
	}
	return false
}
