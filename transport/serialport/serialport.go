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

// Package serialport implements the RS-232 transport backend for fiscal
// printers using go.bug.st/serial.
package serialport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/eyngroup/go-fiscal"
)

// Transport is a serial-port implementation of fiscal.Transport.
type Transport struct {
	mu        sync.Mutex
	port      serial.Port
	name      string
	connected bool
}

// New opens a serial port with the protocol's line discipline. PNP devices
// run 8N1; HKA devices demand even parity and leave RTS control to the
// exchanger.
func New(portName string, profile fiscal.PortProfile) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: profile.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if profile.Parity == fiscal.ParityEven {
		mode.Parity = serial.EvenParity
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) &&
			(portErr.Code() == serial.PortNotFound || portErr.Code() == serial.PortBusy) {
			return nil, fiscal.NewTransportError("open", portName,
				fmt.Errorf("%w: %w", fiscal.ErrPortUnavailable, err), fiscal.ErrorTypePermanent)
		}
		return nil, fiscal.NewTransportError("open", portName, err, fiscal.ErrorTypePermanent)
	}

	t := &Transport{port: port, name: portName, connected: true}
	if err := t.Flush(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// Factory adapts New to the fiscal.TransportFactory signature.
func Factory(cfg *fiscal.Config, profile fiscal.PortProfile) (fiscal.Transport, error) {
	return New(cfg.Port, profile)
}

func (t *Transport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fiscal.ErrNotConnected
	}
	n, err := t.port.Write(p)
	if err != nil {
		return fiscal.NewTransportError("write", t.name, err, fiscal.ErrorTypeTransient)
	}
	if n != len(p) {
		return fiscal.NewTransportError("write", t.name,
			fmt.Errorf("short write: %d of %d bytes", n, len(p)), fiscal.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) ReadByte(timeout time.Duration) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return 0, fiscal.ErrNotConnected
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return 0, fiscal.NewTransportError("read", t.name, err, fiscal.ErrorTypeTransient)
	}
	buf := make([]byte, 1)
	n, err := t.port.Read(buf)
	if err != nil {
		return 0, fiscal.NewTransportError("read", t.name, err, fiscal.ErrorTypeTransient)
	}
	if n == 0 {
		return 0, fiscal.ErrReadTimeout
	}
	return buf[0], nil
}

// ReadUntil collects bytes until marker plus trailer further bytes, bounded
// by timeout across the whole read. go.bug.st's read timeout is per Read
// call, so the deadline is tracked here.
func (t *Transport) ReadUntil(marker byte, trailer int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil, fiscal.ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	var out []byte
	buf := make([]byte, 1)
	remaining := -1 // trailer countdown once the marker is seen

	for {
		left := time.Until(deadline)
		if left <= 0 {
			if len(out) == 0 {
				return nil, fiscal.ErrReadTimeout
			}
			return out, fiscal.ErrReadTimeout
		}
		if err := t.port.SetReadTimeout(left); err != nil {
			return out, fiscal.NewTransportError("read", t.name, err, fiscal.ErrorTypeTransient)
		}
		n, err := t.port.Read(buf)
		if err != nil {
			return out, fiscal.NewTransportError("read", t.name, err, fiscal.ErrorTypeTransient)
		}
		if n == 0 {
			if len(out) == 0 {
				return nil, fiscal.ErrReadTimeout
			}
			return out, fiscal.ErrReadTimeout
		}
		out = append(out, buf[0])
		switch {
		case remaining > 0:
			remaining--
			if remaining == 0 {
				return out, nil
			}
		case remaining < 0 && buf[0] == marker:
			if trailer == 0 {
				return out, nil
			}
			remaining = trailer
		}
	}
}

func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fiscal.ErrNotConnected
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return fiscal.NewTransportError("flush", t.name, err, fiscal.ErrorTypeTransient)
	}
	if err := t.port.ResetOutputBuffer(); err != nil {
		return fiscal.NewTransportError("flush", t.name, err, fiscal.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) SetReady(asserted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fiscal.ErrNotConnected
	}
	if err := t.port.SetRTS(asserted); err != nil {
		return fiscal.NewTransportError("rts", t.name, err, fiscal.ErrorTypeTransient)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	if err := t.port.Close(); err != nil {
		return fiscal.NewTransportError("close", t.name, err, fiscal.ErrorTypePermanent)
	}
	return nil
}

func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) Type() fiscal.TransportType { return fiscal.TransportSerial }
