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
	"fmt"
	"math"
	"strings"

	"github.com/eyngroup/go-fiscal/internal/frame"
)

// HKA command vocabulary. Fiscal document lines are single framed commands;
// a document is a sequence of accepted commands, closed by the payment
// commands.
const (
	hkaCancel      = "7"
	hkaSubtotal    = "3"
	hkaReportX     = "I0X"
	hkaReportZ     = "I0Z"
	hkaIGTFClose   = "199"
	hkaPayUnique   = "101"
	hkaPayFull     = "1%s"
	hkaPayPartial  = "2%s%s"
	hkaComment     = "@%s"
	hkaBarcode     = "y%s"
	hkaDNFOpen     = "800%s"
	hkaDNFBold     = "80*%s"
	hkaDNFCentered = "80!%s"
	hkaDNFClose    = "810%s"
)

// hkaTaxValues maps the whole-percent tax rate to the line prefix the
// firmware expects, per document class. Each numbering series has its own
// prefix alphabet.
var hkaTaxValues = map[OperationType]map[int]string{
	OpInvoice:    {0: " ", 12: "!", 16: "!", 8: `"`, 22: "#", 31: "#"},
	OpCreditNote: {0: "d0", 12: "d1", 16: "d1", 8: "d2", 22: "d3", 31: "d3"},
	OpDebitNote:  {0: "`0", 12: "`1", 16: "`1", 8: "`2", 22: "`3", 31: "`3"},
}

// hkaModels maps the SV model code to the commercial model name used for
// text width lookup.
var hkaModels = map[string]string{
	"Z7C": "HKA-80",
	"Z7A": "HKA-112",
	"Z1A": "SRP-270",
	"Z1B": "SRP-350",
	"Z1E": "SRP-280",
	"Z1F": "SRP-812",
	"ZPA": "HSP7000",
	"Z6A": "TALLY 1125",
	"Z6B": "DT-230",
	"Z6C": "TALLY 1140",
	"ZYA": "P3100DL",
	"ZZH": "PP9",
	"ZZP": "PP9-PLUS",
}

// hkaCodec frames commands as STX + payload + ETX + LRC, where the LRC is
// the XOR of payload and ETX.
type hkaCodec struct{}

func (hkaCodec) Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+3)
	out = append(out, frame.STX)
	out = append(out, payload...)
	out = append(out, frame.ETX)
	out = append(out, frame.XOR(out[1:]))
	return out
}

// Decode validates an inbound frame. The firmware sometimes prepends the
// ACK for the triggering command to the framed payload, so leading ACK
// bytes are skipped. A missing LRC byte is tolerated: the extended status
// commands on older firmware end at ETX.
func (hkaCodec) Decode(raw []byte) (*Reply, error) {
	buf := raw
	for len(buf) > 0 && buf[0] == frame.ACK {
		buf = buf[1:]
	}
	if len(buf) < 3 || buf[0] != frame.STX {
		return nil, fmt.Errorf("%w: % X", ErrMalformedFrame, raw)
	}
	etx := bytes.IndexByte(buf, frame.ETX)
	if etx < 0 {
		return nil, fmt.Errorf("%w: no terminator in % X", ErrIncompleteFrame, raw)
	}
	payload := buf[1:etx]
	if len(buf) > etx+1 {
		want := frame.XOR(buf[1 : etx+1])
		if got := buf[etx+1]; got != want {
			return nil, fmt.Errorf("%w: got %02X want %02X", ErrChecksumMismatch, got, want)
		}
	}
	return &Reply{Raw: raw, Fields: hkaSplit(payload)}, nil
}

func (hkaCodec) Trailer() int { return 1 }

// hkaSplit cuts a multi-line payload into fields. Interior empty lines are
// kept so positional indices survive; only trailing empties are dropped.
func hkaSplit(payload []byte) []string {
	fields := strings.Split(string(payload), "\n")
	for i, f := range fields {
		fields[i] = strings.TrimRight(f, "\r")
	}
	for len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

// hkaFields trims the fields of an extended status reply and strips the
// two-character command echo off the first line.
func hkaFields(reply *Reply, echo string) []string {
	fields := make([]string, len(reply.Fields))
	copy(fields, reply.Fields)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	if len(fields) > 0 && strings.HasPrefix(fields[0], echo) {
		fields[0] = strings.TrimSpace(fields[0][len(echo):])
	}
	return fields
}

// hkaProtocol implements Protocol for The Factory HKA printers.
type hkaProtocol struct {
	codec hkaCodec
}

// NewHKAProtocol returns the TFHKA protocol driver.
func NewHKAProtocol() Protocol { return &hkaProtocol{} }

func (p *hkaProtocol) Kind() Kind { return KindHKA }

func (p *hkaProtocol) Profile() PortProfile {
	return PortProfile{Parity: ParityEven, Flow: FlowRTS, BaudRate: 9600}
}

func (p *hkaProtocol) Codec() FrameCodec { return p.codec }

// StatusRequest polls with a bare ENQ byte. The answer is an unframed
// five-byte burst: STX, status, error, ETX, LRC.
func (p *hkaProtocol) StatusRequest() Request {
	return Request{
		Label:    "ENQ",
		Payload:  []byte{frame.ENQ},
		Bare:     true,
		Mode:     ModeRawStatus,
		FixedLen: 5,
	}
}

func (p *hkaProtocol) DecodeStatus(reply *Reply) (*PrinterStatus, error) {
	buf := reply.Raw
	for len(buf) > 0 && buf[0] == frame.ACK {
		buf = buf[1:]
	}
	if len(buf) != 5 || buf[0] != frame.STX || buf[3] != frame.ETX {
		return nil, fmt.Errorf("%w: status burst % X", ErrMalformedFrame, reply.Raw)
	}
	return hkaStatus(buf[1], buf[2]), nil
}

func (p *hkaProtocol) Ready(st *PrinterStatus) bool {
	return st != nil && st.statusByte == hkaStatusFiscalIdle && st.errorByte == hkaErrorNone
}

// Fatal treats a silent device as needing reinitialization: the no-response
// pseudo codes are the only conditions the upstream evicts a printer for.
func (p *hkaProtocol) Fatal(err error) bool {
	if IsFatal(err) {
		return true
	}
	var ee *ExchangeError
	return asExchangeError(err, &ee) && ee.Result == ExchangeTimeout
}

func (p *hkaProtocol) SetupRequests() []Request {
	return []Request{
		{Label: "SV", Payload: []byte("SV"), Mode: ModeFrame},
		{Label: "S5", Payload: []byte("S5"), Mode: ModeFrame},
		{Label: "S3", Payload: []byte("S3"), Mode: ModeFrame},
	}
}

func (p *hkaProtocol) DecodeSetup(replies []*Reply) (*MachineInfo, *TaxFlagTable, error) {
	if len(replies) != 3 {
		return nil, nil, fmt.Errorf("%w: setup wants 3 replies, got %d", ErrMalformedFrame, len(replies))
	}
	info, err := decodeHKAModel(replies[0])
	if err != nil {
		return nil, nil, err
	}
	if err := decodeHKAMemory(replies[1], info); err != nil {
		return nil, nil, err
	}
	flags, err := decodeHKAFlags(replies[2])
	if err != nil {
		return nil, nil, err
	}
	return info, flags, nil
}

func (p *hkaProtocol) CountersRequest(OperationType) Request {
	return Request{Label: "S1", Payload: []byte("S1"), Mode: ModeFrame}
}

func (p *hkaProtocol) DecodeCounters(reply *Reply, _ OperationType) (*FiscalCounters, error) {
	return decodeHKACounters(reply)
}

func (p *hkaProtocol) CancelRequest() Request {
	return Request{Label: "cancel", Payload: []byte(hkaCancel), Mode: ModeAck}
}

func (p *hkaProtocol) ReportRequest(kind ReportKind) Request {
	cmd := hkaReportX
	if kind == ReportZ {
		cmd = hkaReportZ
	}
	return Request{Label: "report " + string(kind), Payload: []byte(cmd), Mode: ModeAck}
}

// DecodeReport: HKA report commands only acknowledge; the caller re-reads
// counters when it needs numbers.
func (p *hkaProtocol) DecodeReport(*Reply, ReportKind) (*ReportResult, error) {
	return &ReportResult{}, nil
}

// CheckReply: HKA signals rejection with NAK at the exchange layer, so an
// accepted reply carries no further verdict.
func (p *hkaProtocol) CheckReply(*Reply) error { return nil }

func (p *hkaProtocol) PlanDocument(doc *Document, flags *TaxFlagTable, info *MachineInfo) (*DocumentPlan, error) {
	model := ""
	if info != nil {
		model = info.Model
	}
	if doc.Operation == OpNonFiscal {
		return p.planNonFiscal(doc, model)
	}

	plan := &DocumentPlan{}
	if doc.Operation == OpCreditNote || doc.Operation == OpDebitNote {
		plan.Open = append(plan.Open,
			hkaAck("affected number", "iF*"+doc.Affected.Number),
			hkaAck("affected date", "iD*"+doc.Affected.Date),
			hkaAck("affected serial", "iI*"+clipText(doc.Affected.Serial, model)),
		)
	}
	plan.Open = append(plan.Open,
		hkaAck("customer vat", "iR*"+clipText(doc.Customer.VAT, model)),
		hkaAck("customer name", "iS*"+clipText(doc.Customer.Name, model)),
	)
	if doc.Customer.Address != "" {
		plan.Header = append(plan.Header, hkaAck("customer address", "i00DIR:"+clipText(doc.Customer.Address, model)))
	}
	if doc.Customer.Phone != "" {
		plan.Header = append(plan.Header, hkaAck("customer phone", "i01TEL:"+clipText(doc.Customer.Phone, model)))
	}
	if doc.Customer.Email != "" {
		plan.Header = append(plan.Header, hkaAck("customer email", "i03EMAIL:"+clipText(doc.Customer.Email, model)))
	}
	if doc.Reference.Number != "" {
		plan.Header = append(plan.Header, hkaAck("reference number", "i04REF:"+doc.Reference.Number))
	}
	if doc.Reference.Date != "" {
		plan.Header = append(plan.Header, hkaAck("reference date", "i05FECHA:"+doc.Reference.Date))
	}
	if doc.Reference.Name != "" {
		plan.Header = append(plan.Header, hkaAck("reference name", "i06DOC:"+clipText(doc.Reference.Name, model)))
	}
	if doc.Reference.Cashier != "" {
		plan.Header = append(plan.Header, hkaAck("reference cashier", "i07CAJ:"+clipText(doc.Reference.Cashier, model)))
	}

	format := flags.Format()
	for _, item := range doc.Items {
		group, err := p.planItem(item, doc.Operation, format, model)
		if err != nil {
			return nil, err
		}
		plan.Items = append(plan.Items, group)
	}

	for _, comment := range doc.Delivery.Comments {
		plan.Footer = append(plan.Footer, hkaAck("delivery comment", fmt.Sprintf(hkaComment, clipText(comment, model))))
	}
	if doc.Delivery.Barcode != "" {
		plan.Footer = append(plan.Footer, hkaAck("delivery barcode", fmt.Sprintf(hkaBarcode, doc.Delivery.Barcode)))
	}
	plan.Footer = append(plan.Footer, hkaAck("subtotal", hkaSubtotal))

	payments, err := p.planPayments(doc.Payments, format)
	if err != nil {
		return nil, err
	}
	plan.Payments = payments
	if flags.IGTFEnabled() {
		plan.Payments = append(plan.Payments, hkaAck("igtf close", hkaIGTFClose))
	}
	return plan, nil
}

func (p *hkaProtocol) planItem(item Item, op OperationType, format, model string) ([]Request, error) {
	key := int(math.Round(item.TaxRate))
	symbol, ok := hkaTaxValues[op][key]
	if !ok {
		return nil, &ValidationError{Field: "items.tax", Reason: fmt.Sprintf("rate %v has no fiscal mapping", item.TaxRate)}
	}
	priceFmt := hkaFormat("price", format)
	price, err := ScaleFixed(item.Price, priceFmt.width, priceFmt.decimals)
	if err != nil {
		return nil, err
	}
	qtyFmt := hkaFormat("quantity", format)
	qty, err := ScaleFixed(item.Quantity, qtyFmt.width, qtyFmt.decimals)
	if err != nil {
		return nil, err
	}
	name := clipText(itemLabel(item), model)

	group := []Request{hkaAck("item", symbol+price+qty+name)}
	if item.Discount > 0 {
		adj, err := p.planAdjustment(item, format)
		if err != nil {
			return nil, err
		}
		group = append(group, adj)
	}
	if item.Comment != "" {
		group = append(group, hkaAck("item comment", fmt.Sprintf(hkaComment, clipText(item.Comment, model))))
	}
	return group, nil
}

func (p *hkaProtocol) planAdjustment(item Item, format string) (Request, error) {
	kind := "amount"
	prefix := ""
	switch item.DiscountType {
	case DiscountPercent:
		kind, prefix = "percent", "p-"
	case SurchargePercent:
		kind, prefix = "percent", "p+"
	case DiscountAmount:
		prefix = "q-"
	case SurchargeAmount:
		prefix = "q+"
	default:
		return Request{}, &ValidationError{Field: "items.discount_type", Reason: fmt.Sprintf("unknown type %q", item.DiscountType)}
	}
	f := hkaFormat(kind, format)
	value, err := ScaleFixed(item.Discount, f.width, f.decimals)
	if err != nil {
		return Request{}, err
	}
	return hkaAck("item adjustment", prefix+value), nil
}

// planPayments renders the settlement sequence: every method but the last is
// a partial payment for its exact amount, and the last closes the document
// for the remainder. Methods are sent in descending code order so foreign
// currency entries, which trigger the IGTF surcharge, land first.
func (p *hkaProtocol) planPayments(payments []Payment, format string) ([]Request, error) {
	if len(payments) == 0 {
		return []Request{hkaAck("payment", hkaPayUnique)}, nil
	}
	if len(payments) == 1 {
		return []Request{hkaAck("payment", fmt.Sprintf(hkaPayFull, payments[0].Method))}, nil
	}
	ordered := sortPaymentsDesc(payments)
	out := make([]Request, 0, len(ordered))
	f := hkaFormat("amount", format)
	for _, pay := range ordered[:len(ordered)-1] {
		amount, err := ScaleFixed(pay.Amount, f.width, f.decimals)
		if err != nil {
			return nil, err
		}
		out = append(out, hkaAck("partial payment", fmt.Sprintf(hkaPayPartial, pay.Method, amount)))
	}
	out = append(out, hkaAck("closing payment", fmt.Sprintf(hkaPayFull, ordered[len(ordered)-1].Method)))
	return out, nil
}

// planNonFiscal renders a free-form note on the non-fiscal numbering series.
func (p *hkaProtocol) planNonFiscal(doc *Document, model string) (*DocumentPlan, error) {
	plan := &DocumentPlan{}
	plan.Open = append(plan.Open,
		hkaAck("open note", fmt.Sprintf(hkaDNFOpen, "Nota")),
		hkaAck("note vat", fmt.Sprintf(hkaDNFBold, "RIF/CI: "+clipText(doc.Customer.VAT, model))),
		hkaAck("note name", fmt.Sprintf(hkaDNFBold, "Nombre: "+clipText(doc.Customer.Name, model))),
	)
	if doc.Reference.Number != "" {
		plan.Open = append(plan.Open, hkaAck("note reference", fmt.Sprintf(hkaDNFBold, "Numero: "+doc.Reference.Number)))
	}
	if doc.Reference.Date != "" {
		plan.Open = append(plan.Open, hkaAck("note date", fmt.Sprintf(hkaDNFBold, "Fecha: "+doc.Reference.Date)))
	}

	for _, item := range doc.Items {
		line := fmt.Sprintf("-%s x%v x%v Iva:%v", clipText(item.Name, model), item.Quantity, item.Price, item.TaxRate)
		plan.Items = append(plan.Items, []Request{hkaAck("note item", fmt.Sprintf(hkaDNFCentered, line))})
	}

	var total float64
	for _, pay := range doc.Payments {
		total += pay.Amount
	}
	plan.Payments = append(plan.Payments, hkaAck("close note", fmt.Sprintf(hkaDNFClose, fmt.Sprintf("Monto Total: %.2f", total))))
	return plan, nil
}

func hkaAck(label, payload string) Request {
	return Request{Label: label, Payload: []byte(payload), Mode: ModeAck}
}

// itemLabel prefixes the product reference when one is set.
func itemLabel(item Item) string {
	if item.Ref != "" {
		return "[" + item.Ref + "] " + item.Name
	}
	return item.Name
}
