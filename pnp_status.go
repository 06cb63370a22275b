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
	"strings"
)

// PNP readiness words: printer status and fiscal status as four hex
// characters each, the first two fields of every framed reply.
const (
	pnpPrinterReady = "0080"
	pnpFiscalReady  = "0600"
)

// Serial-info reply layout.
const (
	pnpInfoSerial   = 3
	pnpInfoRIF      = 4
	pnpInfoFirmware = 5
)

// Report reply layout.
const (
	pnpReportLastInvoice = 3
	pnpReportDate        = 11
	pnpReportTime        = 22
	pnpReportLastCredit  = 23
)

// Counter reply layout for the 8|N query.
const (
	pnpCtrDate        = 5
	pnpCtrTime        = 6
	pnpCtrTotalDocs   = 7
	pnpCtrLastInvoice = 8
	pnpCtrLastNonFisc = 9
	pnpCtrLastZ       = 10
)

// pnpCtrLastCredit is the credit-note counter slot in the 8|T reply.
const pnpCtrLastCredit = 7

// Status-probe reply layout for the 8|V query.
const pnpProbeState = 3

// pnpPrinterStates maps the probe's printer-state code.
var pnpPrinterStates = map[string]string{
	"00": "impresora lista",
	"01": "factura fiscal en curso",
	"02": "documento no fiscal en curso",
	"03": "SLIP activo",
	"04": "requiere reporte Z",
	"05": "primeras lineas descriptivas impresas",
	"08": "equipo bloqueado esperando cierre Z",
	"10": "error critico: BCC RAM",
	"11": "error critico: BCC ROM",
	"12": "error critico: formato fecha RAM",
	"13": "error critico: formato datos Z",
	"14": "error critico: limite memoria fiscal",
}

// pnpCriticalStates are dead-device probe codes; a session seeing one is
// evicted instead of retried.
var pnpCriticalStates = map[string]bool{
	"10": true, "11": true, "12": true, "13": true, "14": true,
}

var pnpPrinterErrorBits = map[uint]string{
	2:  "error o falla de impresora",
	3:  "impresora fuera de linea",
	14: "impresora sin papel",
}

var pnpFiscalStatusBits = map[uint]string{
	0:  "error de comprobacion de memoria fiscal",
	1:  "error de comprobacion de memoria de trabajo",
	3:  "comando no reconocido",
	4:  "campo de datos invalido",
	5:  "comando no valido para estado fiscal",
	6:  "desbordamiento de totales",
	7:  "memoria fiscal llena",
	8:  "memoria fiscal casi llena",
	11: "es necesario hacer cierre de jornada fiscal",
	12: "factura fiscal abierta",
	13: "documento no fiscal abierto",
}

// pnpErrorBits are the fiscal-status bits that fail a command outright.
// Bits 8 and up describe document state rather than command errors.
var pnpErrorBits = [...]uint{0, 1, 3, 4, 5, 6, 7}

// pnpWord parses a four-hex-character status word.
func pnpWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: status word %q", ErrMalformedFrame, s)
	}
	return uint16(v), nil
}

func pnpBitDescriptions(word uint16, table map[uint]string) []string {
	var out []string
	for bit := uint(0); bit < 16; bit++ {
		if word&(1<<bit) == 0 {
			continue
		}
		if desc, ok := table[bit]; ok {
			out = append(out, desc)
		}
	}
	return out
}

// pnpStatus decodes the two status words that open every framed reply. The
// probe reply additionally carries the printer-state code, folded into the
// status description when present.
func pnpStatus(reply *Reply) (*PrinterStatus, error) {
	if len(reply.Fields) < 2 {
		return nil, fmt.Errorf("%w: status reply has %d fields", ErrMalformedFrame, len(reply.Fields))
	}
	printerWord, err := pnpWord(reply.Field(0))
	if err != nil {
		return nil, err
	}
	fiscalWord, err := pnpWord(reply.Field(1))
	if err != nil {
		return nil, err
	}

	statusDesc := "sin errores de impresora"
	if flags := pnpBitDescriptions(printerWord, pnpPrinterErrorBits); len(flags) > 0 {
		statusDesc = strings.Join(flags, " | ")
	}
	errDesc := "sin errores fiscales"
	if flags := pnpBitDescriptions(fiscalWord, pnpFiscalStatusBits); len(flags) > 0 {
		errDesc = strings.Join(flags, " | ")
	}
	if state := reply.Field(pnpProbeState); state != "" {
		if desc, ok := pnpPrinterStates[state]; ok {
			statusDesc = desc + " | " + statusDesc
		}
	}
	return &PrinterStatus{
		Kind:              KindPNP,
		StatusCode:        reply.Field(0),
		ErrorCode:         reply.Field(1),
		StatusDescription: statusDesc,
		ErrorDescription:  errDesc,
		fatal:             pnpCriticalStates[reply.Field(pnpProbeState)],
	}, nil
}

// pnpReplyError checks the status words of an accepted reply for
// conditions that fail the command: printer faults and fiscal command
// errors. Document-state bits pass, since mid-document replies legitimately
// carry them.
func pnpReplyError(reply *Reply) error {
	if len(reply.Fields) < 2 {
		return nil
	}
	printerWord, err := pnpWord(reply.Field(0))
	if err != nil {
		return err
	}
	fiscalWord, err := pnpWord(reply.Field(1))
	if err != nil {
		return err
	}
	for bit := range pnpPrinterErrorBits {
		if printerWord&(1<<bit) != 0 {
			st, _ := pnpStatus(reply)
			return &DeviceError{Status: st, Step: "reply check", Kind: KindPNP}
		}
	}
	for _, bit := range pnpErrorBits {
		if fiscalWord&(1<<bit) != 0 {
			st, _ := pnpStatus(reply)
			return &DeviceError{Status: st, Step: "reply check", Kind: KindPNP}
		}
	}
	return nil
}

// decodePNPCounters interprets the 8|N reply, or the 8|T reply for credit
// notes, into the shared counter block.
func decodePNPCounters(reply *Reply, op OperationType) (*FiscalCounters, error) {
	if op == OpCreditNote {
		if len(reply.Fields) <= pnpCtrLastCredit {
			return nil, fmt.Errorf("%w: credit counters reply has %d fields", ErrMalformedFrame, len(reply.Fields))
		}
		return &FiscalCounters{
			LastCreditNote: reply.Field(pnpCtrLastCredit),
			PrinterDate:    reply.Field(pnpCtrDate),
			PrinterTime:    reply.Field(pnpCtrTime),
		}, nil
	}
	if len(reply.Fields) <= pnpCtrLastZ {
		return nil, fmt.Errorf("%w: counters reply has %d fields", ErrMalformedFrame, len(reply.Fields))
	}
	return &FiscalCounters{
		LastInvoice:     reply.Field(pnpCtrLastInvoice),
		LastDebitNote:   reply.Field(pnpCtrLastInvoice),
		LastNonFiscal:   reply.Field(pnpCtrLastNonFisc),
		ZReports:        reply.Field(pnpCtrLastZ),
		TotalFiscalDocs: reply.Field(pnpCtrTotalDocs),
		PrinterDate:     reply.Field(pnpCtrDate),
		PrinterTime:     reply.Field(pnpCtrTime),
	}, nil
}
