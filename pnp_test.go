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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyngroup/go-fiscal/internal/frame"
)

// pnpWire builds a device reply frame: status words first, then the data
// fields, sequenced and checksummed like the firmware does.
func pnpWire(fields ...string) []byte {
	body := []byte(strings.Join(fields, "|"))
	out := []byte{frame.STX, frame.SeqMin}
	out = append(out, pnpTranspose(body)...)
	out = append(out, frame.ETX)
	return append(out, frame.BCC(out)...)
}

// pnpTestReply builds a decoded reply without going through the wire.
func pnpTestReply(fields ...string) *Reply {
	return &Reply{Fields: fields}
}

func TestPNPCodecEncode(t *testing.T) {
	t.Parallel()

	codec := newPNPCodec()
	got := codec.Encode([]byte("C|A"))

	want := []byte{frame.STX, frame.SeqMin, 'C', frame.FS, 'A', frame.ETX}
	want = append(want, frame.BCC(want)...)
	assert.Equal(t, want, got)
}

func TestPNPCodecSequenceRotation(t *testing.T) {
	t.Parallel()

	codec := newPNPCodec()
	assert.Equal(t, byte(frame.SeqMin), codec.next())
	assert.Equal(t, byte(frame.SeqMin+1), codec.next())

	codec.last = frame.SeqMax
	assert.Equal(t, byte(frame.SeqMin), codec.next(), "sequence wraps past 0x7F")
}

func TestPNPCodecEncodePreframed(t *testing.T) {
	t.Parallel()

	codec := newPNPCodec()
	probe := []byte{frame.STX, 0x45, 0x80, frame.ETX}
	got := codec.Encode(probe)

	want := append([]byte{}, probe...)
	want = append(want, frame.BCC(probe)...)
	assert.Equal(t, want, got)
	// The pre-framed probe must not consume a sequence number.
	assert.Equal(t, byte(frame.SeqMin), codec.next())
}

func TestPNPCodecDecode(t *testing.T) {
	t.Parallel()

	codec := newPNPCodec()

	t.Run("fields split on separator", func(t *testing.T) {
		t.Parallel()
		reply, err := codec.Decode(pnpWire("0080", "0600", "dato"))
		require.NoError(t, err)
		assert.Equal(t, []string{"0080", "0600", "dato"}, reply.Fields)
	})

	t.Run("interior empties keep their slot", func(t *testing.T) {
		t.Parallel()
		reply, err := codec.Decode(pnpWire("0080", "0600", "", "x", ""))
		require.NoError(t, err)
		assert.Equal(t, []string{"0080", "0600", "", "x"}, reply.Fields)
	})

	t.Run("leading noise before STX skipped", func(t *testing.T) {
		t.Parallel()
		raw := append([]byte{0x00, 0xFF}, pnpWire("0080", "0600")...)
		reply, err := codec.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "0080", reply.Field(0))
	})

	t.Run("bad checksum", func(t *testing.T) {
		t.Parallel()
		raw := pnpWire("0080", "0600")
		raw[len(raw)-1] = 'F'
		_, err := codec.Decode(raw)
		require.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("missing trailer", func(t *testing.T) {
		t.Parallel()
		raw := pnpWire("0080", "0600")
		_, err := codec.Decode(raw[:len(raw)-2])
		require.ErrorIs(t, err, ErrIncompleteFrame)
	})

	t.Run("no frame at all", func(t *testing.T) {
		t.Parallel()
		_, err := codec.Decode([]byte("ruido"))
		require.ErrorIs(t, err, ErrMalformedFrame)
	})
}

func TestPNPReadiness(t *testing.T) {
	t.Parallel()

	p := NewPNPProtocol()

	tests := []struct {
		name    string
		printer string
		fiscal  string
		ready   bool
	}{
		{name: "idle pair", printer: "0080", fiscal: "0600", ready: true},
		{name: "printer fault", printer: "0084", fiscal: "0600", ready: false},
		{name: "document open", printer: "0080", fiscal: "1600", ready: false},
		{name: "needs z closure", printer: "0080", fiscal: "0E00", ready: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st, err := p.DecodeStatus(pnpTestReply(tt.printer, tt.fiscal))
			require.NoError(t, err)
			assert.Equal(t, tt.ready, p.Ready(st))
		})
	}
}

func TestPNPStatusCriticalStates(t *testing.T) {
	t.Parallel()

	st, err := pnpStatus(pnpTestReply("0080", "0600", "x", "11"))
	require.NoError(t, err)
	assert.True(t, st.Critical())
	assert.Contains(t, st.StatusDescription, "BCC ROM")

	st, err = pnpStatus(pnpTestReply("0080", "0600", "x", "00"))
	require.NoError(t, err)
	assert.False(t, st.Critical())

	_, err = pnpStatus(pnpTestReply("zzzz", "0600"))
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestPNPReplyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		printer string
		fiscal  string
		wantErr bool
	}{
		{name: "clean", printer: "0080", fiscal: "0600", wantErr: false},
		{name: "document state bits pass", printer: "0080", fiscal: "1600", wantErr: false},
		{name: "invalid data field", printer: "0080", fiscal: "0610", wantErr: true},
		{name: "totals overflow", printer: "0080", fiscal: "0640", wantErr: true},
		{name: "printer offline", printer: "0088", fiscal: "0600", wantErr: true},
		{name: "out of paper", printer: "4080", fiscal: "0600", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := pnpReplyError(pnpTestReply(tt.printer, tt.fiscal))
			if tt.wantErr {
				var derr *DeviceError
				require.ErrorAs(t, err, &derr)
				assert.Equal(t, KindPNP, derr.Kind)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPNPDecodeCounters(t *testing.T) {
	t.Parallel()

	reply := pnpTestReply("0080", "0600", "x", "x", "x",
		"150126", "153000", "00000120", "00001234", "00000007", "55")

	counters, err := decodePNPCounters(reply, OpInvoice)
	require.NoError(t, err)
	assert.Equal(t, "00001234", counters.LastInvoice)
	assert.Equal(t, "00000007", counters.LastNonFiscal)
	assert.Equal(t, "55", counters.ZReports)
	assert.Equal(t, "0056", counters.ReportNumber())
	assert.Equal(t, "2026-01-15", counters.DocumentDate())

	credit := pnpTestReply("0080", "0600", "x", "x", "x", "150126", "153000", "00000099")
	counters, err = decodePNPCounters(credit, OpCreditNote)
	require.NoError(t, err)
	assert.Equal(t, "00000099", counters.LastCreditNote)
	assert.Equal(t, "00000099", counters.DocumentNumber(OpCreditNote))

	_, err = decodePNPCounters(pnpTestReply("0080", "0600"), OpInvoice)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestPNPDecodeReport(t *testing.T) {
	t.Parallel()

	fields := make([]string, 24)
	fields[0], fields[1] = "0080", "0600"
	fields[pnpReportLastInvoice] = "00001234"
	fields[pnpReportDate] = "150126"
	fields[pnpReportTime] = "153000"
	fields[pnpReportLastCredit] = "00000099"

	p := NewPNPProtocol()
	result, err := p.DecodeReport(pnpTestReply(fields...), ReportZ)
	require.NoError(t, err)
	assert.Equal(t, "00001234", result.LastInvoice)
	assert.Equal(t, "150126", result.Date)
	assert.Equal(t, "153000", result.Time)
	assert.Equal(t, "00000099", result.LastCreditNote)
}

func TestPNPDecodeSetup(t *testing.T) {
	t.Parallel()

	p := NewPNPProtocol()
	info, flags, err := p.DecodeSetup([]*Reply{
		pnpTestReply("0080", "0600", "x", "PNP1234567", "J-12345678-9", "1.05"),
	})
	require.NoError(t, err)
	assert.Equal(t, "PNP1234567", info.Serial)
	assert.Equal(t, "J-12345678-9", info.RIF)
	assert.Equal(t, "1.05", info.Firmware)
	assert.False(t, flags.IGTFEnabled())
	assert.Equal(t, "00", flags.Format())
}

func TestPNPPlanInvoice(t *testing.T) {
	t.Parallel()

	doc := validInvoice()
	doc.Customer.Address = "Av. Bolivar 123"

	plan, err := NewPNPProtocol().PlanDocument(doc, &TaxFlagTable{}, nil)
	require.NoError(t, err)

	payloads := planPayloads(plan)
	assert.Equal(t, "@|Juan Perez|V123456789|\x7f|\x7f|\x7f|\x7f|T|\x7f|\x7f", payloads[0])
	assert.Equal(t, "A|DIR:Av. Bolivar 123|S", payloads[1])
	assert.Equal(t, "B|Cafe molido 500g|1000|2550|1600|M", payloads[2])
	assert.Equal(t, "C|A", payloads[3])
	assert.Equal(t, "E|T", payloads[4])

	require.Len(t, plan.Open, 1)
	require.Len(t, plan.Header, 1)
}

func TestPNPPlanCreditNote(t *testing.T) {
	t.Parallel()

	doc := validInvoice()
	doc.Operation = OpCreditNote
	doc.Affected = &AffectedDocument{Number: "00001234", Date: "15/01/2026", Serial: "PNP1234567"}

	plan, err := NewPNPProtocol().PlanDocument(doc, nil, nil)
	require.NoError(t, err)

	open := string(plan.Open[0].Payload)
	assert.Equal(t, "@|Juan Perez|V123456789|00001234|PNP1234567|15/01/2026|\x7f|D|\x7f|\x7f", open)
}

func TestPNPPlanPayments(t *testing.T) {
	t.Parallel()

	p := NewPNPProtocol()

	t.Run("single base currency closes total", func(t *testing.T) {
		t.Parallel()
		doc := validInvoice()
		plan, err := p.PlanDocument(doc, nil, nil)
		require.NoError(t, err)
		payloads := planPayloads(plan)
		assert.Equal(t, "E|T", payloads[len(payloads)-1])
	})

	t.Run("single foreign currency closes with igtf", func(t *testing.T) {
		t.Parallel()
		doc := validInvoice()
		doc.Payments = []Payment{{Method: "22", Amount: 29.58}}
		plan, err := p.PlanDocument(doc, nil, nil)
		require.NoError(t, err)
		payloads := planPayloads(plan)
		assert.Equal(t, "E|U|2958", payloads[len(payloads)-1])
	})

	t.Run("mixed methods partial foreign then total", func(t *testing.T) {
		t.Parallel()
		doc := validInvoice()
		doc.Payments = []Payment{
			{Method: "01", Amount: 10},
			{Method: "22", Amount: 19.58},
		}
		plan, err := p.PlanDocument(doc, nil, nil)
		require.NoError(t, err)
		payloads := planPayloads(plan)
		assert.Equal(t, "E|B|1958", payloads[len(payloads)-2])
		assert.Equal(t, "E|T", payloads[len(payloads)-1])
	})
}

func TestPNPPlanNonFiscal(t *testing.T) {
	t.Parallel()

	doc := validInvoice()
	doc.Operation = OpNonFiscal

	plan, err := NewPNPProtocol().PlanDocument(doc, nil, nil)
	require.NoError(t, err)

	payloads := planPayloads(plan)
	assert.Equal(t, "H", payloads[0])
	assert.Equal(t, "I|RIF:V123456789", payloads[1])
	assert.Equal(t, "J|\x7f", payloads[len(payloads)-1])
}

func TestPNPItemNameClipped(t *testing.T) {
	t.Parallel()

	doc := validInvoice()
	doc.Items[0].Name = "Nombre de producto demasiado largo para la linea"

	plan, err := NewPNPProtocol().PlanDocument(doc, nil, nil)
	require.NoError(t, err)

	item := string(plan.Items[0][0].Payload)
	parts := strings.Split(item, "|")
	require.Len(t, parts, 6)
	assert.Len(t, parts[1], 20)
}
