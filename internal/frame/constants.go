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

// Package frame provides the control characters and checksum primitives shared
// by the HKA and PNP fiscal printer wire protocols.
package frame

// Control characters common to both vendor protocols
const (
	STX = 0x02 // Start of frame
	ETX = 0x03 // End of frame
	ACK = 0x06 // Command accepted
	NAK = 0x15 // Command rejected
	ENQ = 0x05 // Status poll (HKA only)
)

// PNP-specific control characters
const (
	FS  = 0x1C // Field separator inside a PNP frame
	DEL = 0x7F // Placeholder for an unused optional field
)

// PNP sequence byte range. Each frame carries a sequence byte different from
// the previous one; values wrap from SeqMax back to SeqMin.
const (
	SeqMin = 0x20
	SeqMax = 0x7F
)

// BCCWidth is the number of ASCII hex digits trailing a PNP frame.
const BCCWidth = 4
