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

// Kind identifies a printer protocol family.
type Kind string

const (
	// KindHKA covers The Factory HKA printers (TFHKA firmware).
	KindHKA Kind = "hka"
	// KindPNP covers PNP fiscal printers.
	KindPNP Kind = "pnp"
)

// ResponseMode tells the exchanger what kind of reply a request produces.
type ResponseMode int

const (
	// ModeAck expects a single ACK or NAK byte.
	ModeAck ResponseMode = iota
	// ModeFrame expects a full framed payload terminated by ETX plus the
	// codec's checksum trailer.
	ModeFrame
	// ModeRawStatus expects a fixed-length unframed burst (the HKA ENQ
	// status poll).
	ModeRawStatus
)

// Request is one command bound for the device.
type Request struct {
	// Label names the command for logs and error reports.
	Label string
	// Payload is the command body before framing.
	Payload []byte
	// Mode selects the reply discipline.
	Mode ResponseMode
	// Bare skips framing and writes Payload as-is.
	Bare bool
	// FixedLen is the expected reply length for ModeRawStatus.
	FixedLen int
	// MultiFrame marks commands whose device emits progress frames before
	// the final reply. The exchanger keeps reading and returns the last
	// well-formed frame.
	MultiFrame bool
}

// Reply is a decoded device response.
type Reply struct {
	// Raw is the verbatim frame as read off the wire.
	Raw []byte
	// Fields is the decoded payload split into protocol fields. Empty for
	// ACK-only replies.
	Fields []string
	// Ack is set when the device answered with a bare ACK.
	Ack bool
}

// Field returns the i-th decoded field, or "" when out of range.
func (r *Reply) Field(i int) string {
	if r == nil || i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// FrameCodec frames outbound payloads and validates inbound frames for one
// protocol family.
type FrameCodec interface {
	// Encode wraps a command payload in the protocol's wire frame.
	Encode(payload []byte) []byte
	// Decode validates a raw inbound frame and splits it into fields.
	Decode(raw []byte) (*Reply, error)
	// Trailer is the number of checksum bytes following ETX on inbound
	// frames.
	Trailer() int
}

// DocumentPlan is a fully rendered command sequence for one document. The
// session executes phases in order; Items groups the per-line commands so a
// failure can be attributed to a specific line.
type DocumentPlan struct {
	// Open establishes the document and identifies the customer.
	Open []Request
	// Header prints the optional address, reference and cashier lines.
	Header []Request
	// Items holds one command group per document line.
	Items [][]Request
	// Footer prints trailer content and the subtotal.
	Footer []Request
	// Payments settles and closes the document.
	Payments []Request
}

// Protocol binds one vendor family's codec, command builders and status
// decoding behind a single interface consumed by Session.
type Protocol interface {
	// Kind identifies the protocol family.
	Kind() Kind
	// Profile is the serial line discipline the family requires.
	Profile() PortProfile
	// Codec frames and validates wire traffic.
	Codec() FrameCodec

	// StatusRequest builds the status poll command.
	StatusRequest() Request
	// DecodeStatus interprets a status reply.
	DecodeStatus(reply *Reply) (*PrinterStatus, error)
	// Ready reports whether the decoded status permits opening a document.
	Ready(st *PrinterStatus) bool
	// Fatal reports whether the status or exchange failure is a dead-device
	// condition that must evict the session.
	Fatal(err error) bool

	// CountersRequest builds the query whose reply carries the document
	// counters relevant to op.
	CountersRequest(op OperationType) Request
	// DecodeCounters interprets a counters reply.
	DecodeCounters(reply *Reply, op OperationType) (*FiscalCounters, error)

	// SetupRequests builds the connect-time probes for model, serial and
	// tax-flag configuration, in the order DecodeSetup expects the replies.
	SetupRequests() []Request
	// DecodeSetup folds the probe replies into machine identity and flag
	// configuration. Replies align positionally with SetupRequests.
	DecodeSetup(replies []*Reply) (*MachineInfo, *TaxFlagTable, error)

	// CancelRequest builds the in-progress document cancellation command.
	CancelRequest() Request
	// ReportRequest builds an X or Z report command.
	ReportRequest(kind ReportKind) Request
	// DecodeReport interprets a report reply. Protocols whose report
	// commands answer with a bare ACK return an empty result.
	DecodeReport(reply *Reply, kind ReportKind) (*ReportResult, error)

	// PlanDocument renders a validated document into its command sequence.
	PlanDocument(doc *Document, flags *TaxFlagTable, info *MachineInfo) (*DocumentPlan, error)
	// CheckReply inspects a command reply for device-reported errors that
	// arrive inside an otherwise well-formed frame.
	CheckReply(reply *Reply) error
}
