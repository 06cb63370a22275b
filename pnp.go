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
	"strings"
	"sync"

	"github.com/eyngroup/go-fiscal/internal/frame"
)

// PNP command bodies in pipe notation. The codec transposes '|' to the FS
// control byte on the wire; DEL marks a field the firmware ignores.
const (
	pnpCancel       = "D|0"
	pnpSubtotal     = "C|A"
	pnpCloseTotal   = "E|T"
	pnpClosePartial = "E|A|%s"
	pnpCloseIGTF    = "E|U|%s"
	pnpPartialIGTF  = "E|B|%s"
	pnpFiscalText   = "A|%s|S"
	pnpItemAdd      = "B|%s|%s|%s|%s|M"
	pnpItemVoid     = "B|%s|%s|%s|%s|m" // subtract qualifier, annuls a printed line
	pnpStatusProbe  = "8|V"
	pnpCounters     = "8|N"
	pnpCreditInfo   = "8|T"
	pnpReportFmt    = "9|%s|T"
	pnpDNFOpen      = "H"
	pnpDNFText      = "I|%s"
	pnpDNFClose     = "J|\x7f"
)

// pnpCodec frames commands as STX + sequence + body + ETX + BCC, where the
// BCC is the 16-bit byte sum from STX through ETX rendered as four uppercase
// hex characters. The sequence byte rotates through 0x20-0x7F; the firmware
// uses it to pair replies with commands and to detect resends.
type pnpCodec struct {
	mu   sync.Mutex
	last byte
}

func newPNPCodec() *pnpCodec {
	// Start at the top so the first command wraps to SeqMin.
	return &pnpCodec{last: frame.SeqMax}
}

func (c *pnpCodec) next() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	if c.last > frame.SeqMax || c.last < frame.SeqMin {
		c.last = frame.SeqMin
	}
	return c.last
}

func (c *pnpCodec) Encode(payload []byte) []byte {
	var out []byte
	if len(payload) > 0 && payload[0] == frame.STX {
		// Pre-framed command (the serial-info probe); only the BCC is
		// missing.
		out = append(out, payload...)
	} else {
		out = append(out, frame.STX, c.next())
		out = append(out, pnpTranspose(payload)...)
		out = append(out, frame.ETX)
	}
	out = append(out, frame.BCC(out)...)
	return out
}

// pnpTranspose rewrites the pipe notation to wire form.
func pnpTranspose(body []byte) []byte {
	out := make([]byte, len(body))
	for i, b := range body {
		if b == '|' {
			out[i] = frame.FS
		} else {
			out[i] = b
		}
	}
	return out
}

// Decode validates a response frame and splits its payload. Interior empty
// fields keep their slot so positional indices hold; only trailing empties
// are dropped.
func (c *pnpCodec) Decode(raw []byte) (*Reply, error) {
	stx := bytes.IndexByte(raw, frame.STX)
	if stx < 0 {
		return nil, fmt.Errorf("%w: % X", ErrMalformedFrame, raw)
	}
	buf := raw[stx:]
	etx := bytes.IndexByte(buf, frame.ETX)
	if etx < 0 {
		return nil, fmt.Errorf("%w: no terminator in % X", ErrIncompleteFrame, raw)
	}
	if len(buf) < etx+1+frame.BCCWidth {
		return nil, fmt.Errorf("%w: trailer missing in % X", ErrIncompleteFrame, raw)
	}
	if !frame.ValidateBCC(buf[:etx+1], buf[etx+1:etx+1+frame.BCCWidth]) {
		return nil, fmt.Errorf("%w: trailer %q", ErrChecksumMismatch, buf[etx+1:etx+1+frame.BCCWidth])
	}
	payload := buf[2:etx] // skip STX and the echoed sequence byte
	if len(payload) > 0 && payload[0] == frame.FS {
		payload = payload[1:]
	}
	fields := strings.Split(string(payload), string(rune(frame.FS)))
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return &Reply{Raw: raw, Fields: fields}, nil
}

func (c *pnpCodec) Trailer() int { return frame.BCCWidth }

// pnpProtocol implements Protocol for PNP printers.
type pnpProtocol struct {
	codec *pnpCodec
}

// NewPNPProtocol returns the PNP protocol driver.
func NewPNPProtocol() Protocol {
	return &pnpProtocol{codec: newPNPCodec()}
}

func (p *pnpProtocol) Kind() Kind { return KindPNP }

func (p *pnpProtocol) Profile() PortProfile {
	return PortProfile{Parity: ParityNone, Flow: FlowNone, BaudRate: 9600}
}

func (p *pnpProtocol) Codec() FrameCodec { return p.codec }

func (p *pnpProtocol) StatusRequest() Request {
	return Request{Label: "status", Payload: []byte(pnpStatusProbe), Mode: ModeFrame}
}

func (p *pnpProtocol) DecodeStatus(reply *Reply) (*PrinterStatus, error) {
	return pnpStatus(reply)
}

// Ready requires the exact idle pair: printer status 0080 and fiscal status
// 0600. Any open document or flagged condition produces different words and
// blocks the gate.
func (p *pnpProtocol) Ready(st *PrinterStatus) bool {
	return st != nil && st.Kind == KindPNP && st.StatusCode == pnpPrinterReady && st.ErrorCode == pnpFiscalReady
}

// Fatal: PNP devices are not evicted on silence; only a decoded critical
// state tears the session down.
func (p *pnpProtocol) Fatal(err error) bool { return IsFatal(err) }

func (p *pnpProtocol) SetupRequests() []Request {
	return []Request{
		{Label: "serial info", Payload: []byte{frame.STX, 0x45, 0x80, frame.ETX}, Mode: ModeFrame},
	}
}

func (p *pnpProtocol) DecodeSetup(replies []*Reply) (*MachineInfo, *TaxFlagTable, error) {
	if len(replies) != 1 {
		return nil, nil, fmt.Errorf("%w: setup wants 1 reply, got %d", ErrMalformedFrame, len(replies))
	}
	reply := replies[0]
	if len(reply.Fields) <= pnpInfoRIF {
		return nil, nil, fmt.Errorf("%w: serial info has %d fields", ErrMalformedFrame, len(reply.Fields))
	}
	info := &MachineInfo{
		Serial:   reply.Field(pnpInfoSerial),
		RIF:      reply.Field(pnpInfoRIF),
		Firmware: reply.Field(pnpInfoFirmware),
	}
	// PNP firmware has no flag table; the zero value selects the defaults.
	return info, &TaxFlagTable{}, nil
}

func (p *pnpProtocol) CountersRequest(op OperationType) Request {
	if op == OpCreditNote {
		return Request{Label: "credit counters", Payload: []byte(pnpCreditInfo), Mode: ModeFrame}
	}
	return Request{Label: "counters", Payload: []byte(pnpCounters), Mode: ModeFrame}
}

func (p *pnpProtocol) DecodeCounters(reply *Reply, op OperationType) (*FiscalCounters, error) {
	return decodePNPCounters(reply, op)
}

func (p *pnpProtocol) CancelRequest() Request {
	return Request{Label: "cancel", Payload: []byte(pnpCancel), Mode: ModeFrame}
}

func (p *pnpProtocol) ReportRequest(kind ReportKind) Request {
	return Request{
		Label:      "report " + string(kind),
		Payload:    []byte(fmt.Sprintf(pnpReportFmt, kind)),
		Mode:       ModeFrame,
		MultiFrame: true,
	}
}

func (p *pnpProtocol) DecodeReport(reply *Reply, _ ReportKind) (*ReportResult, error) {
	return &ReportResult{
		LastInvoice:    reply.Field(pnpReportLastInvoice),
		Date:           reply.Field(pnpReportDate),
		Time:           reply.Field(pnpReportTime),
		LastCreditNote: reply.Field(pnpReportLastCredit),
	}, nil
}

// CheckReply inspects the status words every framed reply opens with. Error
// bits fail the command even though the frame itself validated.
func (p *pnpProtocol) CheckReply(reply *Reply) error {
	return pnpReplyError(reply)
}

func (p *pnpProtocol) PlanDocument(doc *Document, flags *TaxFlagTable, info *MachineInfo) (*DocumentPlan, error) {
	model := ""
	if info != nil {
		model = info.Model
	}
	if doc.Operation == OpNonFiscal {
		return p.planNonFiscal(doc, model)
	}

	plan := &DocumentPlan{}
	open, err := p.planOpen(doc, model)
	if err != nil {
		return nil, err
	}
	plan.Open = open
	for _, line := range pnpHeaderLines(doc, model) {
		plan.Header = append(plan.Header, pnpFrame("header line", fmt.Sprintf(pnpFiscalText, line)))
	}

	for _, item := range doc.Items {
		group, err := p.planItem(item, model)
		if err != nil {
			return nil, err
		}
		plan.Items = append(plan.Items, group)
	}

	for _, comment := range doc.Delivery.Comments {
		plan.Footer = append(plan.Footer, pnpFrame("delivery comment", fmt.Sprintf(pnpFiscalText, clipText(comment, model))))
	}
	if doc.Delivery.Barcode != "" {
		plan.Footer = append(plan.Footer, pnpFrame("delivery barcode", fmt.Sprintf(pnpFiscalText, doc.Delivery.Barcode)))
	}
	plan.Footer = append(plan.Footer, pnpFrame("subtotal", pnpSubtotal))

	payments, err := p.planPayments(doc.Payments)
	if err != nil {
		return nil, err
	}
	plan.Payments = payments
	return plan, nil
}

func (p *pnpProtocol) planOpen(doc *Document, model string) ([]Request, error) {
	name := clipText(doc.Customer.Name, model)
	if len(name) > 38 {
		name = name[:38]
	}
	vat := clipText(doc.Customer.VAT, model)
	if len(vat) > 12 {
		vat = vat[:12]
	}

	var open Request
	if doc.Operation == OpCreditNote {
		open = pnpFrame("open credit note", strings.Join([]string{
			"@", name, vat,
			doc.Affected.Number,
			clipText(doc.Affected.Serial, model),
			doc.Affected.Date,
			"\x7f", // original invoice time, unused
			"D", "\x7f", "\x7f",
		}, "|"))
	} else {
		open = pnpFrame("open invoice", strings.Join([]string{
			"@", name, vat,
			"\x7f", "\x7f", "\x7f", "\x7f",
			"T", "\x7f", "\x7f",
		}, "|"))
	}
	return []Request{open}, nil
}

// pnpHeaderLines renders the optional reference block printed as fiscal
// text under the customer data.
func pnpHeaderLines(doc *Document, model string) []string {
	var lines []string
	if doc.Customer.Address != "" {
		lines = append(lines, "DIR:"+clipText(doc.Customer.Address, model))
	}
	if doc.Customer.Phone != "" {
		lines = append(lines, "TEL:"+clipText(doc.Customer.Phone, model))
	}
	if doc.Reference.Number != "" {
		lines = append(lines, "REF:"+doc.Reference.Number)
	}
	if doc.Reference.Date != "" {
		lines = append(lines, "FECHA:"+doc.Reference.Date)
	}
	if doc.Reference.Cashier != "" {
		lines = append(lines, "CAJ:"+clipText(doc.Reference.Cashier, model))
	}
	return lines
}

func (p *pnpProtocol) planItem(item Item, model string) ([]Request, error) {
	qty, err := pnpScaled(item.Quantity, 3)
	if err != nil {
		return nil, err
	}
	price, err := pnpScaled(item.Price, 2)
	if err != nil {
		return nil, err
	}
	tax, err := pnpTaxRate(item.TaxRate)
	if err != nil {
		return nil, err
	}
	name := clipText(itemLabel(item), model)
	if len(name) > 20 {
		name = name[:20]
	}

	group := []Request{pnpFrame("item", fmt.Sprintf(pnpItemAdd, name, qty, price, tax))}
	if item.Comment != "" {
		group = append(group, pnpFrame("item comment", fmt.Sprintf(pnpFiscalText, clipText(item.Comment, model))))
	}
	return group, nil
}

// planPayments settles foreign-currency methods first so the IGTF surcharge
// binds to them, then closes for the base-currency remainder.
func (p *pnpProtocol) planPayments(payments []Payment) ([]Request, error) {
	if len(payments) <= 1 {
		if len(payments) == 1 && payments[0].foreign() {
			amount, err := pnpScaled(payments[0].Amount, 2)
			if err != nil {
				return nil, err
			}
			return []Request{pnpFrame("igtf close", fmt.Sprintf(pnpCloseIGTF, amount))}, nil
		}
		return []Request{pnpFrame("close", pnpCloseTotal)}, nil
	}

	ordered := sortPaymentsDesc(payments)
	out := make([]Request, 0, len(ordered))
	for _, pay := range ordered[:len(ordered)-1] {
		amount, err := pnpScaled(pay.Amount, 2)
		if err != nil {
			return nil, err
		}
		body := fmt.Sprintf(pnpClosePartial, amount)
		if pay.foreign() {
			body = fmt.Sprintf(pnpPartialIGTF, amount)
		}
		out = append(out, pnpFrame("partial payment", body))
	}

	last := ordered[len(ordered)-1]
	if last.foreign() {
		amount, err := pnpScaled(last.Amount, 2)
		if err != nil {
			return nil, err
		}
		out = append(out, pnpFrame("igtf close", fmt.Sprintf(pnpCloseIGTF, amount)))
	} else {
		out = append(out, pnpFrame("close", pnpCloseTotal))
	}
	return out, nil
}

func (p *pnpProtocol) planNonFiscal(doc *Document, model string) (*DocumentPlan, error) {
	plan := &DocumentPlan{}
	plan.Open = append(plan.Open,
		pnpFrame("open note", pnpDNFOpen),
		pnpFrame("note vat", fmt.Sprintf(pnpDNFText, "RIF:"+clipText(doc.Customer.VAT, model))),
		pnpFrame("note name", fmt.Sprintf(pnpDNFText, "CLI:"+clipText(doc.Customer.Name, model))),
	)
	if doc.Reference.Number != "" {
		plan.Open = append(plan.Open, pnpFrame("note reference", fmt.Sprintf(pnpDNFText, "REF:"+doc.Reference.Number)))
	}

	for _, item := range doc.Items {
		line := fmt.Sprintf("%s x%v x%v Iva:%v", clipText(item.Name, model), item.Quantity, item.Price, item.TaxRate)
		plan.Items = append(plan.Items, []Request{pnpFrame("note item", fmt.Sprintf(pnpDNFText, line))})
	}

	var total float64
	for _, pay := range doc.Payments {
		total += pay.Amount
	}
	plan.Payments = append(plan.Payments,
		pnpFrame("note total", fmt.Sprintf(pnpDNFText, fmt.Sprintf("Monto Total: %.2f", total))),
		pnpFrame("close note", pnpDNFClose),
	)
	return plan, nil
}

func pnpFrame(label, body string) Request {
	return Request{Label: label, Payload: []byte(body), Mode: ModeFrame}
}
