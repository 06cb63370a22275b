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

package frame

import "fmt"

// XOR computes a single-byte longitudinal redundancy check (LRC) as a running
// XOR over data. The HKA protocol signs the bytes between STX (exclusive) and
// the checksum (exclusive), ETX included.
func XOR(data []byte) byte {
	var lrc byte
	for _, b := range data {
		lrc ^= b
	}
	return lrc
}

// Sum16 computes the additive block check over data, truncated to 16 bits.
// The PNP protocol sums every byte from STX through ETX inclusive.
func Sum16(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}

// BCC renders the additive checksum of data as four uppercase ASCII hex
// digits, the form in which a PNP frame carries it on the wire.
func BCC(data []byte) []byte {
	return []byte(fmt.Sprintf("%04X", Sum16(data)))
}

// ValidateBCC reports whether the four trailing hex digits match the additive
// checksum of data. Non-hex trailer bytes never validate.
func ValidateBCC(data, trailer []byte) bool {
	if len(trailer) != BCCWidth {
		return false
	}
	var got uint16
	_, err := fmt.Sscanf(string(trailer), "%04X", &got)
	if err != nil {
		return false
	}
	return got == Sum16(data)
}
