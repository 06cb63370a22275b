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

// Package counter keeps a local fiscal document counter in a JSON file.
// It stands in for the device counters when a deployment runs without a
// physical printer, or mirrors them for audit when one is present: each
// successful document bumps the per-type sequence, and the first document
// of a new day bumps the daily report number.
package counter

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	fiscal "github.com/eyngroup/go-fiscal"
)

const (
	documentNumberWidth = 8
	reportNumberWidth   = 4
)

// state is the persisted counter record.
type state struct {
	DocumentDate  string `json:"document_date"`
	Invoice       string `json:"document_invoice"`
	CreditNote    string `json:"document_credit"`
	DebitNote     string `json:"document_debit"`
	NonFiscal     string `json:"document_note"`
	MachineReport string `json:"machine_report"`
	MachineSerial string `json:"machine_serial"`
}

// Store persists fiscal counters to a JSON file. Advance is safe for
// concurrent use within one process; the file is not locked across
// processes.
type Store struct {
	log   *zap.Logger
	path  string
	state state
	mu    sync.Mutex
}

// Open loads the counter file, creating it with zeroed counters when it
// does not exist yet.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, log: log}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.state); err != nil {
			return nil, fmt.Errorf("counter file %s is not valid JSON: %w", path, err)
		}
	case os.IsNotExist(err):
		s.state = freshState(time.Now())
		if err := s.write(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read counter file %s: %w", path, err)
	}

	s.normalize()
	return s, nil
}

func freshState(now time.Time) state {
	return state{
		DocumentDate:  now.Format("2006-01-02"),
		Invoice:       pad("0", documentNumberWidth),
		CreditNote:    pad("0", documentNumberWidth),
		DebitNote:     pad("0", documentNumberWidth),
		NonFiscal:     pad("0", documentNumberWidth),
		MachineReport: pad("1", reportNumberWidth),
		MachineSerial: "",
	}
}

// normalize repairs records written by hand or by older versions.
func (s *Store) normalize() {
	if s.state.DocumentDate == "" {
		s.state.DocumentDate = time.Now().Format("2006-01-02")
	}
	for _, field := range []*string{
		&s.state.Invoice, &s.state.CreditNote, &s.state.DebitNote, &s.state.NonFiscal,
	} {
		if *field == "" {
			*field = pad("0", documentNumberWidth)
		}
	}
	if s.state.MachineReport == "" {
		s.state.MachineReport = pad("1", reportNumberWidth)
	}
}

// SetSerial records the machine serial reported in results.
func (s *Store) SetSerial(serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MachineSerial = serial
	return s.write()
}

// Advance increments the counter for the document type and persists the
// file. The first call on a new day also advances the report number,
// mirroring the daily Z report a real device would have produced.
func (s *Store) Advance(op fiscal.OperationType) (*fiscal.PrintResult, error) {
	return s.advanceAt(op, time.Now())
}

func (s *Store) advanceAt(op fiscal.OperationType, now time.Time) (*fiscal.PrintResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.Format("2006-01-02")
	if s.state.DocumentDate != today {
		report, err := bump(s.state.MachineReport, reportNumberWidth)
		if err != nil {
			return nil, fmt.Errorf("report counter corrupt: %w", err)
		}
		s.log.Info("new day, advancing report counter",
			zap.String("date", today),
			zap.String("report", report))
		s.state.DocumentDate = today
		s.state.MachineReport = report
	}

	field, err := s.counterFor(op)
	if err != nil {
		return nil, err
	}
	next, err := bump(*field, documentNumberWidth)
	if err != nil {
		return nil, fmt.Errorf("%s counter corrupt: %w", op, err)
	}
	*field = next

	if err := s.write(); err != nil {
		return nil, err
	}
	return &fiscal.PrintResult{
		DocumentDate:   s.state.DocumentDate,
		DocumentNumber: next,
		MachineSerial:  s.state.MachineSerial,
		MachineReport:  s.state.MachineReport,
	}, nil
}

func (s *Store) counterFor(op fiscal.OperationType) (*string, error) {
	switch op {
	case fiscal.OpInvoice:
		return &s.state.Invoice, nil
	case fiscal.OpCreditNote:
		return &s.state.CreditNote, nil
	case fiscal.OpDebitNote:
		return &s.state.DebitNote, nil
	case fiscal.OpNonFiscal:
		return &s.state.NonFiscal, nil
	default:
		return nil, fmt.Errorf("unknown document type %q", op)
	}
}

func (s *Store) write() error {
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode counter state: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write counter file %s: %w", s.path, err)
	}
	return nil
}

func bump(value string, width int) (string, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return "", fmt.Errorf("value %q is not numeric", value)
	}
	return fmt.Sprintf("%0*d", width, n+1), nil
}

func pad(value string, width int) string {
	n, _ := strconv.ParseUint(value, 10, 64)
	return fmt.Sprintf("%0*d", width, n)
}
