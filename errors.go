// go-fiscal
// Copyright (c) 2025 The go-fiscal Authors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-fiscal.
//
// go-fiscal is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-fiscal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-fiscal; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package fiscal

import (
	"errors"
	"fmt"
)

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypeTransient indicates a temporary condition worth retrying
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a condition that will not clear on its own
	ErrorTypePermanent
	// ErrorTypeFatal indicates the device needs human intervention
	ErrorTypeFatal
)

// Sentinel errors
var (
	ErrPortUnavailable  = errors.New("serial port unavailable")
	ErrNotConnected     = errors.New("transport not connected")
	ErrReadTimeout      = errors.New("read timed out")
	ErrNoResponse       = errors.New("no response from printer")
	ErrCommandRejected  = errors.New("command rejected by printer")
	ErrMalformedFrame   = errors.New("malformed response frame")
	ErrChecksumMismatch = errors.New("response checksum mismatch")
	ErrIncompleteFrame  = errors.New("incomplete response frame")
	ErrPrinterNotReady  = errors.New("printer not ready")
	ErrDeviceBusy       = errors.New("fiscal document already open on device")
	ErrFatalDeviceState = errors.New("printer requires manual reset")
	ErrSessionBusy      = errors.New("printer session busy")
	ErrSessionClosed    = errors.New("printer session closed")
)

// TransportError wraps I/O failures at the serial boundary with enough
// context to decide whether the operation can be retried.
type TransportError struct {
	Err  error
	Op   string
	Port string
	Type ErrorType
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("transport %s on %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError creates a TransportError for the given operation
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{Op: op, Port: port, Err: err, Type: errType}
}

// ExchangeError reports the outcome of a failed command exchange, including
// how the last attempt was classified and how many attempts were made.
type ExchangeError struct {
	Err      error
	Command  string
	Result   ExchangeResult
	Attempts int
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %q: %s after %d attempt(s): %v",
		e.Command, e.Result, e.Attempts, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// ValidationError names the document field that failed pre-flight validation.
// No device interaction has happened when one of these is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid document: field %q %s", e.Field, e.Reason)
}

// DeviceError carries the decoded printer status that blocked an operation.
type DeviceError struct {
	Status *PrinterStatus
	Step   string
	Kind   Kind
	Fatal  bool
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s printer error at %s", e.Kind, e.Step)
	if e.Status != nil {
		msg += fmt.Sprintf(": status=%s (%s) error=%s (%s)",
			e.Status.StatusCode, e.Status.StatusDescription,
			e.Status.ErrorCode, e.Status.ErrorDescription)
	}
	if e.Fatal {
		msg += " [requires manual reset]"
	}
	return msg
}

func (e *DeviceError) Unwrap() error {
	if e.Fatal {
		return ErrFatalDeviceState
	}
	return ErrPrinterNotReady
}

// IsRetryable reports whether the operation that produced err may be retried
// without risking a duplicated fiscal operation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeTransient
	}
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Result == ExchangeTimeout || ee.Result == ExchangeRejected
	}
	return errors.Is(err, ErrReadTimeout) || errors.Is(err, ErrNoResponse)
}

// IsFatal reports whether err means the device is wedged and the session must
// be torn down instead of retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatalDeviceState) {
		return true
	}
	var de *DeviceError
	return errors.As(err, &de) && de.Fatal
}
