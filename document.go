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
	"sort"
	"strconv"
)

// OperationType is the fiscal document class. The printer firmware enforces
// different numbering series per class.
type OperationType string

const (
	// OpInvoice is a fiscal invoice.
	OpInvoice OperationType = "invoice"
	// OpCreditNote reverses a previously issued invoice.
	OpCreditNote OperationType = "credit"
	// OpDebitNote charges against a previously issued invoice.
	OpDebitNote OperationType = "debit"
	// OpNonFiscal is a free-form non-fiscal note.
	OpNonFiscal OperationType = "note"
)

func (o OperationType) valid() bool {
	switch o {
	case OpInvoice, OpCreditNote, OpDebitNote, OpNonFiscal:
		return true
	}
	return false
}

// fiscal reports whether the operation opens a fiscal document (as opposed
// to a non-fiscal note).
func (o OperationType) fiscal() bool { return o != OpNonFiscal }

// DiscountType selects the per-item adjustment command.
type DiscountType string

const (
	// DiscountPercent applies a percentage discount to the last item.
	DiscountPercent DiscountType = "discount_percentage"
	// SurchargePercent applies a percentage surcharge to the last item.
	SurchargePercent DiscountType = "surcharge_percentage"
	// DiscountAmount applies an absolute discount to the last item.
	DiscountAmount DiscountType = "discount_amount"
	// SurchargeAmount applies an absolute surcharge to the last item.
	SurchargeAmount DiscountType = "surcharge_amount"
)

// Customer identifies the buyer on a fiscal document.
type Customer struct {
	VAT     string `yaml:"vat" json:"customer_vat"`
	Name    string `yaml:"name" json:"customer_name"`
	Address string `yaml:"address,omitempty" json:"customer_address,omitempty"`
	Phone   string `yaml:"phone,omitempty" json:"customer_phone,omitempty"`
	Email   string `yaml:"email,omitempty" json:"customer_email,omitempty"`
}

// Reference carries the originating ERP document metadata printed as
// informational lines.
type Reference struct {
	Number  string `yaml:"number,omitempty" json:"document_number,omitempty"`
	Date    string `yaml:"date,omitempty" json:"document_date,omitempty"`
	Name    string `yaml:"name,omitempty" json:"document_name,omitempty"`
	Cashier string `yaml:"cashier,omitempty" json:"document_cashier,omitempty"`
}

// AffectedDocument references the invoice a credit or debit note modifies.
// The fiscal authority requires all three fields on the printed note.
type AffectedDocument struct {
	Number string `yaml:"number" json:"affected_number"`
	Date   string `yaml:"date" json:"affected_date"`
	Serial string `yaml:"serial" json:"affected_serial"`
}

// Item is one document line.
type Item struct {
	Name         string       `yaml:"name" json:"item_name"`
	Ref          string       `yaml:"ref,omitempty" json:"item_ref,omitempty"`
	Comment      string       `yaml:"comment,omitempty" json:"item_comment,omitempty"`
	DiscountType DiscountType `yaml:"discount_type,omitempty" json:"item_discount_type,omitempty"`
	Quantity     float64      `yaml:"quantity" json:"item_quantity"`
	Price        float64      `yaml:"price" json:"item_price"`
	TaxRate      float64      `yaml:"tax" json:"item_tax"`
	Discount     float64      `yaml:"discount,omitempty" json:"item_discount,omitempty"`
}

// Payment is one settlement entry. Method is the two-digit device payment
// code; codes 20-24 are foreign-currency methods subject to IGTF.
type Payment struct {
	Method string  `yaml:"method" json:"payment_method"`
	Amount float64 `yaml:"amount" json:"payment_amount"`
}

// foreign reports whether the payment method falls in the foreign-currency
// code range.
func (p Payment) foreign() bool {
	n, err := strconv.Atoi(p.Method)
	return err == nil && n >= 20 && n <= 24
}

// sortPaymentsDesc returns the payments ordered by descending method code.
// Foreign-currency methods carry the highest codes, and the firmware wants
// them settled before the base-currency remainder.
func sortPaymentsDesc(payments []Payment) []Payment {
	out := make([]Payment, len(payments))
	copy(out, payments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Method > out[j].Method })
	return out
}

// Delivery is optional trailer content.
type Delivery struct {
	Comments []string `yaml:"comments,omitempty" json:"delivery_comments,omitempty"`
	Barcode  string   `yaml:"barcode,omitempty" json:"delivery_barcode,omitempty"`
}

// Document is the structured print request handed in by the caller. Business
// rules (tax math, totals) are the caller's concern; the session only checks
// that every field it is about to put on the wire is present.
type Document struct {
	Operation OperationType     `yaml:"operation" json:"operation_type"`
	Customer  Customer          `yaml:"customer" json:"customer"`
	Reference Reference         `yaml:"document,omitempty" json:"document,omitempty"`
	Affected  *AffectedDocument `yaml:"affected,omitempty" json:"affected_document,omitempty"`
	Items     []Item            `yaml:"items" json:"items"`
	Payments  []Payment         `yaml:"payments,omitempty" json:"payments,omitempty"`
	Delivery  Delivery          `yaml:"delivery,omitempty" json:"delivery,omitempty"`
}

// Validate checks every field the protocol layer will emit, failing fast
// with the offending field's name before any device interaction.
func (d *Document) Validate() error {
	if !d.Operation.valid() {
		return &ValidationError{Field: "operation_type", Reason: "must be invoice, credit, debit or note"}
	}
	if d.Customer.VAT == "" {
		return &ValidationError{Field: "customer.vat", Reason: "is required"}
	}
	if d.Customer.Name == "" {
		return &ValidationError{Field: "customer.name", Reason: "is required"}
	}
	if len(d.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must contain at least one line"}
	}
	if d.Operation == OpCreditNote || d.Operation == OpDebitNote {
		if d.Affected == nil {
			return &ValidationError{Field: "affected_document", Reason: "is required for credit and debit notes"}
		}
		if d.Affected.Number == "" {
			return &ValidationError{Field: "affected_document.number", Reason: "is required"}
		}
		if d.Affected.Date == "" {
			return &ValidationError{Field: "affected_document.date", Reason: "is required"}
		}
		if d.Affected.Serial == "" {
			return &ValidationError{Field: "affected_document.serial", Reason: "is required"}
		}
	}
	for i, item := range d.Items {
		idx := strconv.Itoa(i)
		if item.Name == "" {
			return &ValidationError{Field: "items[" + idx + "].name", Reason: "is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: "items[" + idx + "].quantity", Reason: "must be positive"}
		}
		if item.Price < 0 {
			return &ValidationError{Field: "items[" + idx + "].price", Reason: "must not be negative"}
		}
		if item.TaxRate < 0 {
			return &ValidationError{Field: "items[" + idx + "].tax", Reason: "must not be negative"}
		}
		if item.Discount > 0 && item.DiscountType == "" {
			return &ValidationError{Field: "items[" + idx + "].discount_type", Reason: "is required when a discount is set"}
		}
	}
	for i, p := range d.Payments {
		idx := strconv.Itoa(i)
		if _, err := strconv.Atoi(p.Method); err != nil {
			return &ValidationError{Field: "payments[" + idx + "].method", Reason: "must be a numeric device code"}
		}
		if p.Amount <= 0 {
			return &ValidationError{Field: "payments[" + idx + "].amount", Reason: "must be positive"}
		}
	}
	return nil
}

// PrintResult is the downstream contract returned on success. Every field is
// sourced from the post-close device query, never computed locally.
type PrintResult struct {
	DocumentDate   string `json:"document_date"`
	DocumentNumber string `json:"document_number"`
	MachineSerial  string `json:"machine_serial"`
	MachineReport  string `json:"machine_report"`
}
