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
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SessionManager caches one live session per printer, creating sessions
// lazily and replacing any that hit a dead-device condition. ERP frontends
// hold a manager for the life of the process and ask it for a session per
// print job.
type SessionManager struct {
	mu        sync.Mutex
	configs   map[Kind]*Config
	sessions  map[Kind]*Session
	transport TransportFactory
	log       *zap.Logger
	opts      []Option
}

// NewSessionManager builds a manager over a transport factory. Options are
// forwarded to every session it creates.
func NewSessionManager(factory TransportFactory, log *zap.Logger, opts ...Option) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		configs:   make(map[Kind]*Config),
		sessions:  make(map[Kind]*Session),
		transport: factory,
		log:       log,
		opts:      opts,
	}
}

// Register adds a printer attachment. Disabled entries are accepted and
// skipped at Get time.
func (m *SessionManager) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.Printer] = &cfg
	return nil
}

// Get returns a live session for the printer, creating one on first use.
// A cached session that went fatal is evicted and rebuilt; device readiness
// for anything short of fatal is re-checked by the per-operation gate.
func (m *SessionManager) Get(ctx context.Context, kind Kind) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[kind]
	if !ok {
		return nil, &ValidationError{Field: "printer", Reason: fmt.Sprintf("no %q printer registered", kind)}
	}
	if !cfg.Enabled {
		return nil, &ValidationError{Field: "printer", Reason: fmt.Sprintf("printer %q is disabled", kind)}
	}

	if s, ok := m.sessions[kind]; ok {
		if !s.Fatal() {
			return s, nil
		}
		m.log.Warn("evicting dead printer session", zap.String("printer", string(kind)))
		m.evictLocked(kind)
	}
	return m.connectLocked(ctx, kind, cfg)
}

func (m *SessionManager) connectLocked(ctx context.Context, kind Kind, cfg *Config) (*Session, error) {
	proto, err := protocolFor(kind)
	if err != nil {
		return nil, err
	}
	profile := proto.Profile()
	if cfg.BaudRate > 0 {
		profile.BaudRate = cfg.BaudRate
	}
	transport, err := m.transport(cfg, profile)
	if err != nil {
		return nil, fmt.Errorf("opening %s printer on %s: %w", kind, cfg.Port, err)
	}

	opts := append([]Option{WithLogger(m.log), WithRetryConfig(cfg.Retry)}, m.opts...)
	s, err := Connect(ctx, transport, kind, opts...)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	m.sessions[kind] = s
	m.log.Info("printer session cached", zap.String("printer", string(kind)), zap.String("port", cfg.Port))
	return s, nil
}

// Remove drops and closes the cached session for a printer. The next Get
// reconnects from scratch.
func (m *SessionManager) Remove(kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(kind)
}

func (m *SessionManager) evictLocked(kind Kind) {
	if s, ok := m.sessions[kind]; ok {
		if err := s.Close(); err != nil {
			m.log.Warn("closing evicted session", zap.String("printer", string(kind)), zap.Error(err))
		}
		delete(m.sessions, kind)
	}
}

// Print obtains a session and prints, retiring the session when the failure
// is fatal so the next job starts clean.
func (m *SessionManager) Print(ctx context.Context, kind Kind, doc *Document) (*PrintResult, error) {
	s, err := m.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	result, err := s.PrintDocument(ctx, doc)
	if err != nil && s.Fatal() {
		m.Remove(kind)
	}
	return result, err
}

// Close releases every cached session.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for kind, s := range m.sessions {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
		delete(m.sessions, kind)
	}
	return first
}
