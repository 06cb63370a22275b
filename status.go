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
	"fmt"
	"strconv"
	"time"
)

// PrinterStatus is the decoded result of a status query. StatusCode and
// ErrorCode are rendered in the protocol's native form: two hex digits for
// HKA (e.g. "60"/"40"), four for PNP (e.g. "0080"/"0600"). The two code
// spaces are disjoint; readiness is only ever decided by the protocol that
// produced the status.
type PrinterStatus struct {
	Kind              Kind
	StatusCode        string
	ErrorCode         string
	StatusDescription string
	ErrorDescription  string

	// HKA numeric codes, kept for the readiness and fatality predicates
	statusByte byte
	errorByte  byte

	fatal bool
}

// Critical reports whether the status names a dead-device condition that
// only a manual reset clears.
func (s *PrinterStatus) Critical() bool { return s != nil && s.fatal }

func (s *PrinterStatus) String() string {
	return fmt.Sprintf("[%s] status=%s (%s) error=%s (%s)",
		s.Kind, s.StatusCode, s.StatusDescription, s.ErrorCode, s.ErrorDescription)
}

// FiscalCounters is the decoded document-counter block of a device. Values
// are kept as the device reported them; the zero-padded renderings required
// by the upstream contract are produced by the accessors.
type FiscalCounters struct {
	LastInvoice     string
	LastCreditNote  string
	LastDebitNote   string
	LastNonFiscal   string
	InvoicesToday   string
	CreditsToday    string
	DebitsToday     string
	NonFiscalToday  string
	ZReports        string
	MemoryReports   string
	RIF             string
	MachineSerial   string
	PrinterTime     string
	PrinterDate     string // ddmmyy as reported
	TotalFiscalDocs string
}

// DocumentNumber returns the last document number for the operation type,
// zero-padded to eight digits.
func (c *FiscalCounters) DocumentNumber(op OperationType) string {
	var raw string
	switch op {
	case OpInvoice:
		raw = c.LastInvoice
	case OpCreditNote:
		raw = c.LastCreditNote
	case OpDebitNote:
		raw = c.LastDebitNote
	case OpNonFiscal:
		raw = c.LastNonFiscal
	}
	return zeroPad(raw, 8)
}

// ReportNumber returns the daily-closure report counter the document will
// belong to (the count of completed Z reports plus one), zero-padded to four
// digits.
func (c *FiscalCounters) ReportNumber() string {
	n, err := strconv.Atoi(c.ZReports)
	if err != nil {
		return zeroPad(c.ZReports, 4)
	}
	return fmt.Sprintf("%04d", n+1)
}

// DocumentDate converts the printer's ddmmyy date to ISO form. The raw value
// is returned unchanged when it does not parse.
func (c *FiscalCounters) DocumentDate() string {
	t, err := time.Parse("020106", c.PrinterDate)
	if err != nil {
		return c.PrinterDate
	}
	return t.Format("2006-01-02")
}

func zeroPad(s string, width int) string {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return fmt.Sprintf("%0*d", width, n)
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// TaxFlagTable is the device configuration read once per connection and
// cached for the session's lifetime. Flag semantics follow the HKA flag
// table: 21 selects the numeric field widths, 30 the barcode display mode,
// 43 the barcode activation and 50 the IGTF surcharge mode.
type TaxFlagTable struct {
	NumericFormat string // flag 21
	BarcodeMode   string // flag 30
	BarcodeActive string // flag 43
	IGTF          string // flag 50
	Taxes         []TaxRate
}

// IGTFEnabled reports whether the device applies the foreign-currency
// surcharge on close.
func (t *TaxFlagTable) IGTFEnabled() bool {
	return t != nil && t.IGTF == "01"
}

// Format returns the numeric format selector, defaulting to "00" when the
// table was never read (PNP devices do not expose one).
func (t *TaxFlagTable) Format() string {
	if t == nil || t.NumericFormat == "" {
		return "00"
	}
	return t.NumericFormat
}

// TaxRate is one configured tax entry: its rate in percent and how the
// device reports it applied.
type TaxRate struct {
	Name    string // General, Reduced, Additional
	Mode    string // Levied, Excluded, Included
	Percent string // "16.00"
}

// MachineInfo identifies the connected device. Model drives the per-field
// text width limits; Serial feeds the result contract.
type MachineInfo struct {
	Model    string
	Country  string
	Serial   string
	RIF      string
	Firmware string
}

// ReportKind selects the daily report variant.
type ReportKind string

const (
	// ReportX prints the audit report without closing the day.
	ReportX ReportKind = "X"
	// ReportZ prints the daily-closure report and resets the counters.
	ReportZ ReportKind = "Z"
)

// ReportResult carries the fields a report command echoes back, where the
// protocol provides them (PNP does; HKA only acknowledges).
type ReportResult struct {
	LastInvoice    string
	LastCreditNote string
	Date           string
	Time           string
}
