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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInvoice returns a minimal document that passes validation.
func validInvoice() *Document {
	return &Document{
		Operation: OpInvoice,
		Customer:  Customer{VAT: "V123456789", Name: "Juan Perez"},
		Items:     []Item{{Name: "Cafe molido 500g", Quantity: 1, Price: 25.50, TaxRate: 16}},
		Payments:  []Payment{{Method: "01", Amount: 29.58}},
	}
}

func TestDocumentValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate    func(*Document)
		name      string
		wantField string
	}{
		{
			name:   "valid invoice",
			mutate: func(*Document) {},
		},
		{
			name:      "unknown operation",
			mutate:    func(d *Document) { d.Operation = "receipt" },
			wantField: "operation_type",
		},
		{
			name:      "missing vat",
			mutate:    func(d *Document) { d.Customer.VAT = "" },
			wantField: "customer.vat",
		},
		{
			name:      "missing name",
			mutate:    func(d *Document) { d.Customer.Name = "" },
			wantField: "customer.name",
		},
		{
			name:      "no items",
			mutate:    func(d *Document) { d.Items = nil },
			wantField: "items",
		},
		{
			name:      "credit note needs affected document",
			mutate:    func(d *Document) { d.Operation = OpCreditNote },
			wantField: "affected_document",
		},
		{
			name: "affected document needs serial",
			mutate: func(d *Document) {
				d.Operation = OpDebitNote
				d.Affected = &AffectedDocument{Number: "00001234", Date: "2026-01-15"}
			},
			wantField: "affected_document.serial",
		},
		{
			name:      "zero quantity",
			mutate:    func(d *Document) { d.Items[0].Quantity = 0 },
			wantField: "items[0].quantity",
		},
		{
			name:      "negative price",
			mutate:    func(d *Document) { d.Items[0].Price = -1 },
			wantField: "items[0].price",
		},
		{
			name:      "discount without type",
			mutate:    func(d *Document) { d.Items[0].Discount = 10 },
			wantField: "items[0].discount_type",
		},
		{
			name:      "payment method not numeric",
			mutate:    func(d *Document) { d.Payments[0].Method = "efectivo" },
			wantField: "payments[0].method",
		},
		{
			name:      "payment amount zero",
			mutate:    func(d *Document) { d.Payments[0].Amount = 0 },
			wantField: "payments[0].amount",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := validInvoice()
			tt.mutate(doc)

			err := doc.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestCreditNoteValidates(t *testing.T) {
	t.Parallel()

	doc := validInvoice()
	doc.Operation = OpCreditNote
	doc.Affected = &AffectedDocument{Number: "00001234", Date: "2026-01-15", Serial: "Z1B1234567"}
	require.NoError(t, doc.Validate())
}

func TestSortPaymentsDesc(t *testing.T) {
	t.Parallel()

	payments := []Payment{
		{Method: "01", Amount: 10},
		{Method: "22", Amount: 5},
		{Method: "09", Amount: 3},
	}
	ordered := sortPaymentsDesc(payments)

	assert.Equal(t, "22", ordered[0].Method)
	assert.Equal(t, "09", ordered[1].Method)
	assert.Equal(t, "01", ordered[2].Method)
	// Input order untouched.
	assert.Equal(t, "01", payments[0].Method)
}

func TestPaymentForeign(t *testing.T) {
	t.Parallel()

	assert.False(t, Payment{Method: "01"}.foreign())
	assert.False(t, Payment{Method: "19"}.foreign())
	assert.True(t, Payment{Method: "20"}.foreign())
	assert.True(t, Payment{Method: "24"}.foreign())
	assert.False(t, Payment{Method: "25"}.foreign())
	assert.False(t, Payment{Method: "xx"}.foreign())
}
