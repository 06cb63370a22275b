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

/*
Package fiscal drives Venezuelan fiscal printers over a serial line.

Two vendor protocols are supported: The Factory HKA (TFHKA) command set
with STX-framed commands and an XOR checksum, and the PNP command set
with sequence-numbered frames and a 16-bit additive checksum. Both are
exposed through the same session API: open a transport, connect a
session for the printer's protocol, and print documents described by
the declarative Document type.

Features:
  - HKA and PNP framing, checksums and status decoding
  - ACK/NAK command exchange with retries and backoff
  - Fiscal invoices, credit notes, debit notes and non-fiscal notes
  - Readiness gating and one-shot document cancellation on failure
  - Session manager that caches connections and evicts dead devices

Basic Usage:

	import (
	    "github.com/eyngroup/go-fiscal"
	    "github.com/eyngroup/go-fiscal/transport/serialport"
	)

	profile := fiscal.NewHKAProtocol().Profile()
	transport, err := serialport.New("/dev/ttyUSB0", profile)
	if err != nil {
	    log.Fatal(err)
	}

	session, err := fiscal.Connect(ctx, transport, fiscal.KindHKA)
	if err != nil {
	    log.Fatal(err)
	}
	defer session.Close()

	result, err := session.PrintDocument(ctx, doc)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(result.DocumentNumber)

Multiple printers are handled by a SessionManager, which lazily opens
one session per protocol and rebuilds sessions whose device stopped
answering:

	manager := fiscal.NewSessionManager(serialport.Factory, logger)
	_ = manager.Register(fiscal.Config{Printer: fiscal.KindHKA, Port: "/dev/ttyUSB0", Enabled: true})
	result, err := manager.Print(ctx, fiscal.KindHKA, doc)

Documents are plain structs and can be loaded from YAML with
LoadDocument. Validation runs before any byte is written to the port,
so a malformed document never leaves a printer mid-transaction.
*/
package fiscal
