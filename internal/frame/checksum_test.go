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

import (
	"bytes"
	"testing"
)

func TestXOR(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0,
		},
		{
			name: "single byte",
			data: []byte{0x42},
			want: 0x42,
		},
		{
			name: "byte cancels itself",
			data: []byte{0x42, 0x42},
			want: 0,
		},
		{
			name: "status command with ETX",
			data: []byte{'S', '1', ETX},
			want: 'S' ^ '1' ^ ETX,
		},
		{
			name: "ENQ status reply region",
			data: []byte{0x60, 0x40, ETX},
			want: 0x60 ^ 0x40 ^ ETX,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := XOR(tt.data); got != tt.want {
				t.Errorf("XOR() = %#02x, want %#02x", got, tt.want)
			}
		})
	}
}

func TestSum16(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0,
		},
		{
			name: "two bytes",
			data: []byte{0x10, 0x20},
			want: 0x30,
		},
		{
			name: "truncates to 16 bits",
			data: bytes.Repeat([]byte{0xFF}, 258),
			want: 0x00FE, // 258*0xFF = 0x100FE, high bits discarded
		},
		{
			name: "status command frame",
			data: []byte{STX, 0x20, '8', FS, 'N', ETX},
			want: 0x02 + 0x20 + '8' + 0x1C + 'N' + 0x03,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Sum16(tt.data); got != tt.want {
				t.Errorf("Sum16() = %#04x, want %#04x", got, tt.want)
			}
		})
	}
}

func TestBCCRendering(t *testing.T) {
	t.Parallel()

	data := []byte{STX, 0x20, '8', FS, 'N', ETX}
	bcc := BCC(data)
	if len(bcc) != BCCWidth {
		t.Fatalf("BCC() length = %d, want %d", len(bcc), BCCWidth)
	}
	if !ValidateBCC(data, bcc) {
		t.Errorf("ValidateBCC() rejected its own rendering %q", bcc)
	}
}

func TestValidateBCC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    []byte
		trailer []byte
		want    bool
	}{
		{
			name:    "matching trailer",
			data:    []byte{0x02, 0x20, 0x40, 0x03},
			trailer: []byte("0065"),
			want:    true,
		},
		{
			name:    "wrong value",
			data:    []byte{0x02, 0x20, 0x40, 0x03},
			trailer: []byte("0066"),
			want:    false,
		},
		{
			name:    "short trailer",
			data:    []byte{0x02, 0x03},
			trailer: []byte("05"),
			want:    false,
		},
		{
			name:    "non-hex trailer",
			data:    []byte{0x02, 0x03},
			trailer: []byte("00G5"),
			want:    false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidateBCC(tt.data, tt.trailer); got != tt.want {
				t.Errorf("ValidateBCC(%q) = %v, want %v", tt.trailer, got, tt.want)
			}
		})
	}
}
