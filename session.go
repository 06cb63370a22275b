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

// SessionState tracks how far into a document the session is. It exists for
// error attribution: a failure mid-payment is a very different incident from
// a failure before anything printed.
type SessionState int

const (
	// StateIdle means no document is in progress.
	StateIdle SessionState = iota
	// StateOpening covers the document-open command.
	StateOpening
	// StateCustomerData covers the header and reference lines.
	StateCustomerData
	// StateItems covers the document lines.
	StateItems
	// StateFooter covers trailer content and subtotal.
	StateFooter
	// StatePayment covers settlement and close.
	StatePayment
	// StateClosed means the last document completed.
	StateClosed
	// StateAborting means a cancellation is being attempted.
	StateAborting
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateCustomerData:
		return "customer data"
	case StateItems:
		return "items"
	case StateFooter:
		return "footer"
	case StatePayment:
		return "payment"
	case StateClosed:
		return "closed"
	case StateAborting:
		return "aborting"
	default:
		return "unknown"
	}
}

// Session drives one fiscal printer through complete document print cycles.
// A session serializes access to its device: a second concurrent operation
// fails fast with ErrSessionBusy rather than interleaving commands on the
// wire.
type Session struct {
	mu        sync.Mutex
	proto     Protocol
	transport Transport
	ex        *Exchanger
	log       *zap.Logger

	info  *MachineInfo
	flags *TaxFlagTable

	state  SessionState
	fatal  bool
	closed bool
}

// Connect attaches a session to an open transport: it verifies the device
// answers and is in fiscal mode, then reads its identity and flag
// configuration once for the session's lifetime.
func Connect(ctx context.Context, transport Transport, kind Kind, opts ...Option) (*Session, error) {
	proto, err := protocolFor(kind)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With(zap.String("printer", string(kind)))

	s := &Session{
		proto:     proto,
		transport: transport,
		ex:        NewExchanger(transport, proto.Codec(), proto.Profile(), o.retry, log),
		log:       log,
	}

	st, err := s.probe(ctx)
	if err != nil {
		return nil, err
	}
	if !proto.Ready(st) {
		return nil, &DeviceError{Status: st, Step: "connect", Kind: kind, Fatal: st.Critical()}
	}

	if err := s.setup(ctx); err != nil {
		return nil, err
	}
	log.Info("printer session established",
		zap.String("model", s.info.Model),
		zap.String("serial", s.info.Serial))
	return s, nil
}

// protocolFor resolves the configuration enum once; the session never
// inspects protocol types afterwards.
func protocolFor(kind Kind) (Protocol, error) {
	switch kind {
	case KindHKA:
		return NewHKAProtocol(), nil
	case KindPNP:
		return NewPNPProtocol(), nil
	default:
		return nil, &ValidationError{Field: "printer", Reason: fmt.Sprintf("unknown protocol %q", kind)}
	}
}

func (s *Session) setup(ctx context.Context) error {
	reqs := s.proto.SetupRequests()
	replies := make([]*Reply, 0, len(reqs))
	for _, req := range reqs {
		reply, err := s.ex.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("probing %s: %w", req.Label, err)
		}
		replies = append(replies, reply)
	}
	info, flags, err := s.proto.DecodeSetup(replies)
	if err != nil {
		return err
	}
	s.info = info
	s.flags = flags
	return nil
}

// Kind returns the protocol family of the attached device.
func (s *Session) Kind() Kind { return s.proto.Kind() }

// Info returns the device identity read at connect time.
func (s *Session) Info() *MachineInfo { return s.info }

// Flags returns the device flag configuration read at connect time.
func (s *Session) Flags() *TaxFlagTable { return s.flags }

// Fatal reports whether the session hit a dead-device condition. A fatal
// session refuses all further operations; the manager replaces it.
func (s *Session) Fatal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// State returns the current document phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the transport. The session is unusable afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.transport.Close()
}

// Status queries and decodes the device status without gating on readiness.
func (s *Session) Status(ctx context.Context) (*PrinterStatus, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	return s.probe(ctx)
}

// probe runs one status poll. Caller holds the lock or owns the session
// exclusively (connect path).
func (s *Session) probe(ctx context.Context) (*PrinterStatus, error) {
	reply, err := s.ex.Do(ctx, s.proto.StatusRequest())
	if err != nil {
		if s.proto.Fatal(err) {
			s.fatal = true
		}
		return nil, err
	}
	return s.proto.DecodeStatus(reply)
}

func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.fatal {
		return ErrFatalDeviceState
	}
	return nil
}

// gate polls the device and refuses the operation unless it is idle and
// error-free. A critical status marks the session fatal.
func (s *Session) gate(ctx context.Context, step string) (*PrinterStatus, error) {
	st, err := s.probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("status poll at %s: %w", step, err)
	}
	if !s.proto.Ready(st) {
		if st.Critical() {
			s.fatal = true
		}
		s.log.Warn("printer not ready",
			zap.String("step", step),
			zap.String("status", st.StatusCode),
			zap.String("error", st.ErrorCode))
		return st, &DeviceError{Status: st, Step: step, Kind: s.proto.Kind(), Fatal: st.Critical()}
	}
	return st, nil
}

// PrintDocument runs a complete document cycle: validate, gate on device
// readiness, execute the rendered command sequence phase by phase, and source
// the result from the device's own counters. On any mid-document failure
// exactly one cancellation is attempted; if that also fails the session is
// marked fatal, because the device is holding an open document nobody can
// account for.
func (s *Session) PrintDocument(ctx context.Context, doc *Document) (*PrintResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.gate(ctx, "print gate"); err != nil {
		return nil, err
	}

	plan, err := s.proto.PlanDocument(doc, s.flags, s.info)
	if err != nil {
		return nil, err
	}

	s.log.Info("printing document",
		zap.String("operation", string(doc.Operation)),
		zap.Int("items", len(doc.Items)),
		zap.Int("payments", len(doc.Payments)))

	if err := s.runPlan(ctx, doc.Operation, plan); err != nil {
		return nil, err
	}
	s.state = StateClosed

	result, err := s.result(ctx, doc.Operation)
	if err != nil {
		return nil, fmt.Errorf("document printed but counters unavailable: %w", err)
	}
	s.log.Info("document closed",
		zap.String("number", result.DocumentNumber),
		zap.String("date", result.DocumentDate))
	return result, nil
}

func (s *Session) runPlan(ctx context.Context, op OperationType, plan *DocumentPlan) error {
	s.state = StateOpening
	if err := s.runPhase(ctx, op, plan.Open); err != nil {
		return err
	}
	s.state = StateCustomerData
	if err := s.runPhase(ctx, op, plan.Header); err != nil {
		return err
	}
	s.state = StateItems
	for i, group := range plan.Items {
		if err := s.runPhase(ctx, op, group); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	s.state = StateFooter
	if err := s.runPhase(ctx, op, plan.Footer); err != nil {
		return err
	}
	s.state = StatePayment
	if err := s.runPhase(ctx, op, plan.Payments); err != nil {
		return err
	}
	return nil
}

// runPhase sends one command group, aborting the document on the first
// failure.
func (s *Session) runPhase(ctx context.Context, op OperationType, reqs []Request) error {
	for _, req := range reqs {
		reply, err := s.ex.Do(ctx, req)
		if err == nil {
			err = s.proto.CheckReply(reply)
		}
		if err != nil {
			s.log.Error("document command failed",
				zap.String("command", req.Label),
				zap.Stringer("state", s.state),
				zap.Error(err))
			return s.abort(ctx, op, req.Label, err)
		}
	}
	return nil
}

// abort makes the single permitted cancellation attempt and reports the
// original failure. A device that also refuses the cancel keeps an open
// document; that session is done.
func (s *Session) abort(ctx context.Context, op OperationType, label string, cause error) error {
	s.state = StateAborting
	defer func() { s.state = StateIdle }()

	reply, err := s.ex.Do(ctx, s.proto.CancelRequest())
	if err == nil {
		err = s.proto.CheckReply(reply)
	}
	if err != nil {
		s.fatal = true
		s.log.Error("cancellation failed, session is dead", zap.Error(err))
		return fmt.Errorf("command %s failed (%w) and cancel failed: %w", label, cause, ErrFatalDeviceState)
	}
	s.log.Warn("document cancelled", zap.String("failed_command", label), zap.String("operation", string(op)))
	return fmt.Errorf("command %s: %w", label, cause)
}

// result re-queries the device counters after a close. Every field of the
// downstream contract comes from the device, never from local bookkeeping.
func (s *Session) result(ctx context.Context, op OperationType) (*PrintResult, error) {
	counters, err := s.counters(ctx, op)
	if err != nil {
		return nil, err
	}
	serial := counters.MachineSerial
	if serial == "" && s.info != nil {
		serial = s.info.Serial
	}
	return &PrintResult{
		DocumentDate:   counters.DocumentDate(),
		DocumentNumber: counters.DocumentNumber(op),
		MachineSerial:  serial,
		MachineReport:  counters.ReportNumber(),
	}, nil
}

func (s *Session) counters(ctx context.Context, op OperationType) (*FiscalCounters, error) {
	reply, err := s.ex.Do(ctx, s.proto.CountersRequest(op))
	if err != nil {
		return nil, err
	}
	if err := s.proto.CheckReply(reply); err != nil {
		return nil, err
	}
	return s.proto.DecodeCounters(reply, op)
}

// Counters queries the device document counters.
func (s *Session) Counters(ctx context.Context, op OperationType) (*FiscalCounters, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	return s.counters(ctx, op)
}

// Report prints the X or Z daily report.
func (s *Session) Report(ctx context.Context, kind ReportKind) (*ReportResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()
	if err := s.usable(); err != nil {
		return nil, err
	}
	if _, err := s.gate(ctx, "report gate"); err != nil {
		return nil, err
	}

	reply, err := s.ex.Do(ctx, s.proto.ReportRequest(kind))
	if err != nil {
		if s.proto.Fatal(err) {
			s.fatal = true
		}
		return nil, err
	}
	if err := s.proto.CheckReply(reply); err != nil {
		return nil, err
	}
	result, err := s.proto.DecodeReport(reply, kind)
	if err != nil {
		return nil, err
	}
	s.log.Info("report printed", zap.String("kind", string(kind)))
	return result, nil
}
