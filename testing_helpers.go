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
	"bytes"
	"sync"
	"time"
)

// MockTransport replays a scripted queue of device responses and records
// every write, so protocol flows can be tested without hardware. Each Write
// dequeues the next scripted response into the read buffer; a nil script
// entry simulates a silent device.
type MockTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	script    [][]byte
	readBuf   bytes.Buffer
	rtsStates []bool
	closed    bool

	// WriteErr, when set, fails the next Write with this error.
	WriteErr error
}

// NewMockTransport builds a mock that will answer successive writes with the
// given responses in order.
func NewMockTransport(responses ...[]byte) *MockTransport {
	return &MockTransport{script: responses}
}

// Script appends responses to the reply queue.
func (m *MockTransport) Script(responses ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// Writes returns everything written so far, in order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// RTSStates returns the recorded SetReady transitions.
func (m *MockTransport) RTSStates() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.rtsStates))
	copy(out, m.rtsStates)
	return out
}

func (m *MockTransport) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotConnected
	}
	if m.WriteErr != nil {
		err := m.WriteErr
		m.WriteErr = nil
		return err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.writes = append(m.writes, buf)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next != nil {
			m.readBuf.Write(next)
		}
	}
	return nil
}

func (m *MockTransport) ReadByte(_ time.Duration) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrNotConnected
	}
	b, err := m.readBuf.ReadByte()
	if err != nil {
		return 0, ErrReadTimeout
	}
	return b, nil
}

func (m *MockTransport) ReadUntil(marker byte, trailer int, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrNotConnected
	}
	var out []byte
	for {
		b, err := m.readBuf.ReadByte()
		if err != nil {
			if len(out) == 0 {
				return nil, ErrReadTimeout
			}
			return out, ErrReadTimeout
		}
		out = append(out, b)
		if b == marker {
			break
		}
	}
	for i := 0; i < trailer; i++ {
		b, err := m.readBuf.ReadByte()
		if err != nil {
			return out, ErrReadTimeout
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *MockTransport) Flush() error {
	// Scripted responses survive a flush: the exchanger flushes before every
	// write, and the mock enqueues replies only on Write.
	return nil
}

func (m *MockTransport) SetReady(asserted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rtsStates = append(m.rtsStates, asserted)
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *MockTransport) Type() TransportType { return TransportMock }
