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
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// scaleDigits renders v as an unpadded integer string with the decimal point
// shifted right by decimals places, rounding half-up. The arithmetic runs on
// the decimal text of v rather than on the float itself: 12.345 stored as a
// float64 sits fractionally below 12.345, and multiplying would round it the
// wrong way.
func scaleDigits(v float64, decimals int) (string, error) {
	if v < 0 {
		return "", &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(s, ".")

	for len(fracPart) < decimals {
		fracPart += "0"
	}
	digits := []byte(intPart + fracPart[:decimals])
	if len(fracPart) > decimals && fracPart[decimals] >= '5' {
		// Half-up carry over the digit string.
		i := len(digits) - 1
		for ; i >= 0; i-- {
			if digits[i] < '9' {
				digits[i]++
				break
			}
			digits[i] = '0'
		}
		if i < 0 {
			digits = append([]byte{'1'}, digits...)
		}
	}

	out := strings.TrimLeft(string(digits), "0")
	if out == "" {
		out = "0"
	}
	return out, nil
}

// ScaleFixed renders v as a zero-padded fixed-point field of exactly width
// digits with decimals implied decimal places, rounding half-up.
// ScaleFixed(12.345, 10, 2) == "0000001235".
func ScaleFixed(v float64, width, decimals int) (string, error) {
	digits, err := scaleDigits(v, decimals)
	if err != nil {
		return "", err
	}
	if len(digits) > width {
		return "", &ValidationError{Field: "amount", Reason: "does not fit in " + strconv.Itoa(width) + " digits"}
	}
	return strings.Repeat("0", width-len(digits)) + digits, nil
}

// fixedFormat is a fixed-point field layout: total digit count and implied
// decimal places.
type fixedFormat struct {
	width    int
	decimals int
}

// hkaFieldFormats maps a numeric field kind to its layout per the value of
// the printer's numeric-format flag. Models outside this table fall back to
// hkaFallbackFormat.
var hkaFieldFormats = map[string]map[string]fixedFormat{
	"price": {
		"00": {width: 10, decimals: 2},
		"01": {width: 10, decimals: 3},
		"30": {width: 14, decimals: 2},
	},
	"quantity": {
		"00": {width: 8, decimals: 3},
		"01": {width: 8, decimals: 3},
		"30": {width: 8, decimals: 3},
	},
	"amount": {
		"00": {width: 12, decimals: 2},
		"01": {width: 12, decimals: 2},
		"30": {width: 12, decimals: 2},
	},
	"percent": {
		"00": {width: 4, decimals: 2},
	},
}

var hkaFallbackFormat = fixedFormat{width: 10, decimals: 2}

// hkaFormat resolves the layout for field kind under numeric-format flag.
func hkaFormat(kind, flag string) fixedFormat {
	if byFlag, ok := hkaFieldFormats[kind]; ok {
		if f, ok := byFlag[flag]; ok {
			return f
		}
		if f, ok := byFlag["00"]; ok {
			return f
		}
	}
	return hkaFallbackFormat
}

// pnpScaled renders v as an unpadded scaled integer, the only numeric form
// PNP firmware accepts. Quantities carry three implied decimals, monetary
// amounts two.
func pnpScaled(v float64, decimals int) (string, error) {
	return scaleDigits(v, decimals)
}

// pnpTaxRate renders a percentage as a four-digit field with two implied
// decimals.
func pnpTaxRate(v float64) (string, error) {
	return ScaleFixed(v, 4, 2)
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText folds accented characters to their base letter and drops
// anything outside printable ASCII. Fiscal firmware code pages mangle raw
// UTF-8, so every free-text line passes through here before framing.
func NormalizeText(s string) string {
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// modelTextWidths caps free-text line length per printer model. Unknown
// models use defaultTextWidth.
var modelTextWidths = map[string]int{
	"SRP-350": 40,
	"SRP-812": 40,
	"HKA-80":  42,
	"HKA-112": 56,
	"P3100DL": 42,
	"PP9":     40,
	"PF-300":  40,
	"PF-220":  40,
}

const defaultTextWidth = 40

// textWidth returns the free-text width for a model name.
func textWidth(model string) int {
	if w, ok := modelTextWidths[model]; ok {
		return w
	}
	return defaultTextWidth
}

// clipText normalizes s and truncates it to the model's line width.
func clipText(s, model string) string {
	out := NormalizeText(s)
	if w := textWidth(model); len(out) > w {
		out = out[:w]
	}
	return out
}
