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

import "fmt"

// TFHKA status bytes.
const (
	hkaStatusFiscalIdle = 0x60
	hkaErrorNone        = 0x40
)

// Pseudo error codes for conditions where the device never produced a
// status byte. Kept in the same numeric space as the wire codes so the
// fatality rules can treat them uniformly.
const (
	hkaPseudoBusy       = 114 // no response or busy
	hkaPseudoCTSFalse   = 128
	hkaPseudoNoResponse = 137
	hkaPseudoLRCError   = 144
)

var hkaStatusCodes = map[byte]string{
	0x40: "modo prueba y en espera",
	0x41: "modo prueba y en emision de documentos fiscales",
	0x42: "modo prueba y en emision de documentos no fiscales",
	0x60: "modo fiscal y en espera",
	0x61: "modo fiscal y en emision de documentos fiscales",
	0x62: "modo fiscal y en emision de documentos no fiscales",
	0x68: "modo fiscal, memoria fiscal llena y en espera",
	0x69: "modo fiscal, memoria fiscal llena y en emision de documentos fiscales",
	0x6A: "modo fiscal, memoria fiscal llena y en emision de documentos no fiscales",
	0x70: "modo fiscal, memoria fiscal casi llena y en espera",
	0x71: "modo fiscal, memoria fiscal casi llena y en emision de documentos fiscales",
	0x72: "modo fiscal, memoria fiscal casi llena y en emision de documentos no fiscales",
}

var hkaErrorCodes = map[byte]string{
	0x40: "sin errores",
	0x41: "fin en la entrega de papel",
	0x42: "error mecanico en la entrega de papel",
	0x43: "fin en la entrega de papel y error mecanico",
	0x50: "comando o valor invalido",
	0x54: "tasa invalida",
	0x58: "no hay asignadas directivas",
	0x5C: "comando invalido",
	0x60: "error fiscal",
	0x64: "error en memoria fiscal",
	0x6C: "memoria fiscal llena",
	0x04: "buffer completo",
	0x80: "error de comunicacion",
	0x89: "NAK recibido",
	0x90: "error de paridad",
	0xA0: "error de sobrecarga",
	0xB0: "error de formato",
	0xC0: "dispositivo ocupado",
	0xD0: "timeout",
	0xE0: "error de frame",
	0xF0: "error desconocido",
}

// hkaStatus builds a PrinterStatus from the two status-burst bytes.
func hkaStatus(sts, errByte byte) *PrinterStatus {
	statusDesc, ok := hkaStatusCodes[sts]
	if !ok {
		statusDesc = fmt.Sprintf("estado desconocido (0x%02X)", sts)
	}
	errDesc, ok := hkaErrorCodes[errByte]
	if !ok {
		switch errByte {
		case hkaPseudoBusy:
			errDesc = "impresora no responde u ocupada"
		case hkaPseudoCTSFalse:
			errDesc = "CTS en falso"
		case hkaPseudoNoResponse:
			errDesc = "no hay respuesta"
		case hkaPseudoLRCError:
			errDesc = "error LRC"
		default:
			errDesc = fmt.Sprintf("error desconocido (0x%02X)", errByte)
		}
	}
	return &PrinterStatus{
		Kind:              KindHKA,
		StatusCode:        fmt.Sprintf("%02X", sts),
		ErrorCode:         fmt.Sprintf("%02X", errByte),
		StatusDescription: statusDesc,
		ErrorDescription:  errDesc,
		statusByte:        sts,
		errorByte:         errByte,
		fatal:             errByte == hkaPseudoBusy || errByte == hkaPseudoNoResponse,
	}
}

// S1 reply layout. Interior blank lines keep their slot so these indices
// stay valid even when a counter is zero-length.
const (
	hkaS1CashierStatus = iota
	hkaS1SalesSubtotal
	hkaS1LastInvoice
	hkaS1InvoicesToday
	hkaS1LastDebitNote
	hkaS1DebitsToday
	hkaS1LastCreditNote
	hkaS1CreditsToday
	hkaS1LastNonFiscal
	hkaS1NonFiscalToday
	hkaS1ZReports
	hkaS1MemoryReports
	hkaS1RIF
	hkaS1MachineSerial
	hkaS1PrinterTime
	hkaS1PrinterDate
)

// decodeHKACounters interprets an S1 reply.
func decodeHKACounters(reply *Reply) (*FiscalCounters, error) {
	fields := hkaFields(reply, "S1")
	if len(fields) <= hkaS1PrinterDate {
		return nil, fmt.Errorf("%w: S1 reply has %d fields", ErrMalformedFrame, len(fields))
	}
	return &FiscalCounters{
		LastInvoice:    fields[hkaS1LastInvoice],
		LastCreditNote: fields[hkaS1LastCreditNote],
		LastDebitNote:  fields[hkaS1LastDebitNote],
		LastNonFiscal:  fields[hkaS1LastNonFiscal],
		InvoicesToday:  fields[hkaS1InvoicesToday],
		CreditsToday:   fields[hkaS1CreditsToday],
		DebitsToday:    fields[hkaS1DebitsToday],
		NonFiscalToday: fields[hkaS1NonFiscalToday],
		ZReports:       fields[hkaS1ZReports],
		MemoryReports:  fields[hkaS1MemoryReports],
		RIF:            fields[hkaS1RIF],
		MachineSerial:  fields[hkaS1MachineSerial],
		PrinterTime:    fields[hkaS1PrinterTime],
		PrinterDate:    fields[hkaS1PrinterDate],
	}, nil
}

var hkaTaxNames = [3]string{"General", "Reducido", "Adicional"}

var hkaTaxModes = map[byte]string{
	'0': "Percibido",
	'1': "Excluido",
	'2': "Incluido",
}

// decodeHKAFlags interprets an S3 reply: three tax lines, then a blob of
// two-character flag values indexed by flag number.
func decodeHKAFlags(reply *Reply) (*TaxFlagTable, error) {
	fields := hkaFields(reply, "S3")
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: S3 reply has %d fields", ErrMalformedFrame, len(fields))
	}
	table := &TaxFlagTable{}
	for i := 0; i < 3; i++ {
		line := fields[i]
		if line == "" {
			continue
		}
		mode, ok := hkaTaxModes[line[0]]
		if !ok {
			mode = "Desconocido"
		}
		raw := line[1:]
		for len(raw) < 4 {
			raw += "0"
		}
		table.Taxes = append(table.Taxes, TaxRate{
			Name:    hkaTaxNames[i],
			Mode:    mode,
			Percent: raw[:2] + "." + raw[2:4],
		})
	}
	blob := fields[3]
	table.NumericFormat = hkaFlag(blob, 21)
	table.BarcodeMode = hkaFlag(blob, 30)
	table.BarcodeActive = hkaFlag(blob, 43)
	table.IGTF = hkaFlag(blob, 50)
	return table, nil
}

// hkaFlag extracts the two-character value of flag n from the S3 blob.
func hkaFlag(blob string, n int) string {
	start := n * 2
	if start+2 > len(blob) {
		return ""
	}
	return blob[start : start+2]
}

// decodeHKAModel interprets an SV reply: model code then country code.
func decodeHKAModel(reply *Reply) (*MachineInfo, error) {
	fields := hkaFields(reply, "SV")
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: SV reply has %d fields", ErrMalformedFrame, len(fields))
	}
	model, ok := hkaModels[fields[0]]
	if !ok {
		model = "Desconocido (" + fields[0] + ")"
	}
	return &MachineInfo{Model: model, Country: fields[1]}, nil
}

// decodeHKAMemory folds an S5 reply into info: RIF then audit serial.
func decodeHKAMemory(reply *Reply, info *MachineInfo) error {
	fields := hkaFields(reply, "S5")
	if len(fields) < 2 {
		return fmt.Errorf("%w: S5 reply has %d fields", ErrMalformedFrame, len(fields))
	}
	info.RIF = fields[0]
	info.Serial = fields[1]
	return nil
}
