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

import "time"

// Transport abstracts the byte pipe to a fiscal printer. The standard backend
// is an RS-232 serial port (transport/serialport); vendor shared-library
// bridges and test mocks implement the same surface, so the protocol core
// never assumes a real file descriptor.
type Transport interface {
	// Write sends raw bytes to the device
	Write(p []byte) error

	// ReadByte reads a single byte, waiting at most timeout.
	// Returns ErrReadTimeout when nothing arrives.
	ReadByte(timeout time.Duration) (byte, error)

	// ReadUntil collects bytes until marker is seen (plus trailer additional
	// bytes for the checksum window) or timeout elapses, whichever first.
	// Whatever was collected is returned either way; the caller decides
	// whether a partial read is usable.
	ReadUntil(marker byte, trailer int, timeout time.Duration) ([]byte, error)

	// Flush discards any pending input and output. Called before every
	// exchange so a stale NAK from a failed command is never mistaken for
	// the reply to the current one.
	Flush() error

	// SetReady asserts or releases the ready-to-send line. Backends whose
	// flow profile does not use RTS implement this as a no-op.
	SetReady(asserted bool) error

	// Close releases the underlying handle
	Close() error

	// IsConnected returns true while the transport is usable
	IsConnected() bool

	// Type returns the transport backend type
	Type() TransportType
}

// TransportType identifies the transport backend
type TransportType string

const (
	// TransportSerial is a native RS-232 serial port backend.
	TransportSerial TransportType = "serial"
	// TransportVendorDLL is a vendor shared-library bridge backend.
	TransportVendorDLL TransportType = "vendordll"
	// TransportMock is an in-memory backend for tests
	TransportMock TransportType = "mock"
)

// Parity for the serial line
type Parity string

const (
	// ParityNone disables the parity bit (PNP).
	ParityNone Parity = "none"
	// ParityEven enables even parity (HKA).
	ParityEven Parity = "even"
)

// FlowControl selects the handshaking profile for a protocol
type FlowControl string

const (
	// FlowNone performs no hardware handshaking (PNP; the sequence byte
	// protocol replaces it).
	FlowNone FlowControl = "none"
	// FlowRTS asserts RTS before each write and releases it afterwards
	// (HKA). CTS is deliberately not waited on: field cabling is too often
	// missing the line, and the printers answer regardless.
	FlowRTS FlowControl = "rts"
)

// PortProfile is the serial line configuration a protocol requires. The
// device does not answer at all when these do not match.
type PortProfile struct {
	Parity   Parity
	Flow     FlowControl
	BaudRate int
}

// TransportFactory creates a connected transport for a configuration.
// The SessionManager uses it so callers can swap in alternate backends.
type TransportFactory func(cfg *Config, profile PortProfile) (Transport, error)

const defaultReadTimeout = 2 * time.Second
