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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyngroup/go-fiscal/internal/frame"
)

func hkaStatusBurst(sts, errByte byte) []byte {
	return []byte{frame.STX, sts, errByte, frame.ETX, sts ^ errByte ^ frame.ETX}
}

// hkaConnectScript answers the connect handshake: status poll, then the
// SV/S5/S3 identity queries.
func hkaConnectScript() [][]byte {
	return [][]byte{
		hkaStatusBurst(0x60, 0x40),
		hkaWire("SVZ1B\nVE"),
		hkaWire("S5J-12345678-9\nZ1B1234567"),
		hkaWire("S321600\n20800\n23100\n" + strings.Repeat("00", 50) + "01"),
	}
}

// hkaCountersWire is an S1 reply whose invoice counter is 1234, Z counter 55
// and date 15-Jan-2026.
func hkaCountersWire() []byte {
	return hkaWire(strings.Join([]string{
		"S10000", "000000",
		"00001234", "5",
		"00000007", "1",
		"00000003", "0",
		"00000002", "0",
		"55", "2",
		"J-12345678-9", "Z1B1234567",
		"153000", "150126",
	}, "\n"))
}

// connectHKA connects a session against a mock scripted with the handshake
// plus any extra replies.
func connectHKA(t *testing.T, extra ...[]byte) (*Session, *MockTransport) {
	t.Helper()
	mock := NewMockTransport(hkaConnectScript()...)
	mock.Script(extra...)

	s, err := Connect(context.Background(), mock, KindHKA, WithRetryConfig(testRetry()))
	require.NoError(t, err)
	return s, mock
}

func TestConnectReadsIdentity(t *testing.T) {
	t.Parallel()

	s, mock := connectHKA(t)
	assert.Equal(t, KindHKA, s.Kind())
	assert.Equal(t, "SRP-350", s.Info().Model)
	assert.Equal(t, "Z1B1234567", s.Info().Serial)
	assert.Equal(t, "J-12345678-9", s.Info().RIF)
	require.Len(t, s.Flags().Taxes, 3)
	assert.True(t, s.Flags().IGTFEnabled())
	assert.Len(t, mock.Writes(), 4)
}

func TestConnectRefusesBusyPrinter(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport(hkaStatusBurst(0x61, 0x40))
	_, err := Connect(context.Background(), mock, KindHKA, WithRetryConfig(testRetry()))

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.False(t, derr.Fatal)
}

func TestConnectUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), NewMockTransport(), Kind("zebra"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPrintDocumentHappyPath(t *testing.T) {
	t.Parallel()

	// Gate poll, five document commands, then the counter query.
	s, mock := connectHKA(t,
		hkaStatusBurst(0x60, 0x40),
		[]byte{frame.ACK}, []byte{frame.ACK}, []byte{frame.ACK},
		[]byte{frame.ACK}, []byte{frame.ACK}, []byte{frame.ACK},
		hkaCountersWire(),
	)

	doc := validInvoice()
	result, err := s.PrintDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "00001234", result.DocumentNumber)
	assert.Equal(t, "2026-01-15", result.DocumentDate)
	assert.Equal(t, "Z1B1234567", result.MachineSerial)
	assert.Equal(t, "0056", result.MachineReport)
	assert.Equal(t, StateClosed, s.State())

	writes := mock.Writes()
	// 4 connect + gate poll + 5 commands + igtf close + counters.
	require.Len(t, writes, 12)
	assert.Equal(t, hkaWire("iR*V123456789"), writes[5])
	assert.Equal(t, hkaWire("iS*Juan Perez"), writes[6])
	assert.Equal(t, hkaWire("199"), writes[10], "igtf close follows the payment")
	assert.Equal(t, hkaWire("S1"), writes[11])
}

func TestPrintDocumentRejectsInvalid(t *testing.T) {
	t.Parallel()

	s, mock := connectHKA(t)
	doc := validInvoice()
	doc.Customer.VAT = ""

	_, err := s.PrintDocument(context.Background(), doc)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, mock.Writes(), 4, "nothing hits the wire for an invalid document")
}

func TestPrintDocumentGateBlocks(t *testing.T) {
	t.Parallel()

	s, mock := connectHKA(t, hkaStatusBurst(0x61, 0x40))

	_, err := s.PrintDocument(context.Background(), validInvoice())
	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "print gate", derr.Step)
	assert.Len(t, mock.Writes(), 5, "only the gate poll goes out")
	assert.False(t, s.Fatal())
}

func TestPrintDocumentAbortsOnRejection(t *testing.T) {
	t.Parallel()

	// The first document command is NAKed through every retry; the session
	// must send exactly one cancel and surface the original failure.
	s, mock := connectHKA(t,
		hkaStatusBurst(0x60, 0x40),
		[]byte{frame.NAK}, []byte{frame.NAK}, []byte{frame.NAK},
		[]byte{frame.ACK}, // cancel
	)

	_, err := s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrCommandRejected)
	assert.False(t, s.Fatal())
	assert.Equal(t, StateIdle, s.State())

	writes := mock.Writes()
	// 4 connect + gate + 3 attempts + 1 cancel.
	require.Len(t, writes, 9)
	assert.Equal(t, hkaWire("7"), writes[8])

	cancels := 0
	for _, w := range writes {
		if string(w) == string(hkaWire("7")) {
			cancels++
		}
	}
	assert.Equal(t, 1, cancels)
}

func TestPrintDocumentCancelFailureIsFatal(t *testing.T) {
	t.Parallel()

	s, _ := connectHKA(t,
		hkaStatusBurst(0x60, 0x40),
		[]byte{frame.NAK}, []byte{frame.NAK}, []byte{frame.NAK},
		[]byte{frame.NAK}, []byte{frame.NAK}, []byte{frame.NAK}, // cancel rejected too
	)

	_, err := s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrFatalDeviceState)
	assert.True(t, s.Fatal())

	_, err = s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrFatalDeviceState)
}

// pnpReadyFrame answers a status poll with the idle word pair.
func pnpReadyFrame() []byte {
	return pnpWire("0080", "0600")
}

// connectPNP connects a session against a mock scripted with the status
// poll, the serial-info reply and any extra replies.
func connectPNP(t *testing.T, extra ...[]byte) (*Session, *MockTransport) {
	t.Helper()
	mock := NewMockTransport(
		pnpReadyFrame(),
		pnpWire("0080", "0600", "!", "PNP1234567", "J-12345678-9", "1.05"),
	)
	mock.Script(extra...)

	s, err := Connect(context.Background(), mock, KindPNP, WithRetryConfig(testRetry()))
	require.NoError(t, err)
	return s, mock
}

func TestConnectReadsIdentityPNP(t *testing.T) {
	t.Parallel()

	s, mock := connectPNP(t)
	assert.Equal(t, KindPNP, s.Kind())
	assert.Equal(t, "PNP1234567", s.Info().Serial)
	assert.Equal(t, "J-12345678-9", s.Info().RIF)
	assert.Len(t, mock.Writes(), 2)
}

func TestPrintDocumentCancelRefusedIsFatal(t *testing.T) {
	t.Parallel()

	// Both the open command and the cancel are answered with well-formed
	// frames whose fiscal word carries error bit 0: the device accepted
	// the exchange but refused the cancellation itself.
	s, mock := connectPNP(t,
		pnpReadyFrame(),
		pnpWire("0080", "0601"),
		pnpWire("0080", "0601"),
	)

	_, err := s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrFatalDeviceState)
	assert.True(t, s.Fatal())
	assert.Equal(t, StateIdle, s.State())

	writes := mock.Writes()
	require.Len(t, writes, 5)
	cancelBody := []byte{'D', frame.FS, '0'}
	assert.True(t, bytes.Contains(writes[4], cancelBody), "last write must be the document cancel")

	_, err = s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrFatalDeviceState)
}

func TestPrintDocumentCountersUnavailable(t *testing.T) {
	t.Parallel()

	s, _ := connectHKA(t,
		hkaStatusBurst(0x60, 0x40),
		[]byte{frame.ACK}, []byte{frame.ACK}, []byte{frame.ACK},
		[]byte{frame.ACK}, []byte{frame.ACK}, []byte{frame.ACK},
		nil, nil, nil, // S1 never answered
	)

	_, err := s.PrintDocument(context.Background(), validInvoice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document printed but counters unavailable")
	assert.Equal(t, StateClosed, s.State(), "the document itself closed")
}

func TestSessionBusy(t *testing.T) {
	t.Parallel()

	s, _ := connectHKA(t)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.Status(context.Background())
	require.ErrorIs(t, err, ErrSessionBusy)

	_, err = s.PrintDocument(context.Background(), validInvoice())
	require.ErrorIs(t, err, ErrSessionBusy)
}

func TestSessionClosed(t *testing.T) {
	t.Parallel()

	s, _ := connectHKA(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is fine")

	_, err := s.Status(context.Background())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionSilenceMarksFatalHKA(t *testing.T) {
	t.Parallel()

	// A device that stops answering the status poll is treated as dead.
	s, _ := connectHKA(t, nil, nil, nil)

	_, err := s.Status(context.Background())
	require.ErrorIs(t, err, ErrNoResponse)
	assert.True(t, s.Fatal())
}

func TestSessionReport(t *testing.T) {
	t.Parallel()

	s, mock := connectHKA(t,
		hkaStatusBurst(0x60, 0x40),
		[]byte{frame.ACK},
	)

	_, err := s.Report(context.Background(), ReportZ)
	require.NoError(t, err)

	writes := mock.Writes()
	assert.Equal(t, hkaWire("I0Z"), writes[len(writes)-1])
}

func TestSessionCounters(t *testing.T) {
	t.Parallel()

	s, _ := connectHKA(t, hkaCountersWire())

	counters, err := s.Counters(context.Background(), OpInvoice)
	require.NoError(t, err)
	assert.Equal(t, "00001234", counters.LastInvoice)
}
