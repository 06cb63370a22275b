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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "printers.yaml", `
printers:
  - printer: hka
    port: COM3
    enabled: true
    retry:
      max_attempts: 5
      response_timeout: 3s
  - printer: pnp
    port: /dev/ttyUSB1
    baud_rate: 19200
    enabled: false
`)

	configs, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, KindHKA, configs[0].Printer)
	assert.Equal(t, "COM3", configs[0].Port)
	assert.True(t, configs[0].Enabled)
	assert.Equal(t, 5, configs[0].Retry.MaxAttempts)
	assert.Equal(t, 3*time.Second, configs[0].Retry.ResponseTimeout)

	assert.Equal(t, KindPNP, configs[1].Printer)
	assert.Equal(t, 19200, configs[1].BaudRate)
	assert.False(t, configs[1].Enabled)
}

func TestLoadConfigRejectsBadEntries(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "printers.yaml", `
printers:
  - printer: epson
    port: COM3
`)
	_, err := LoadConfig(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "printer", verr.Field)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDocument(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "invoice.yaml", `
operation: invoice
customer:
  vat: V123456789
  name: Juan Perez
  address: Av. Bolivar 123
items:
  - name: Cafe molido 500g
    quantity: 2
    price: 25.50
    tax: 16
    discount: 10
    discount_type: discount_percentage
payments:
  - method: "01"
    amount: 53.07
delivery:
  comments:
    - Gracias por su compra
`)

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	assert.Equal(t, OpInvoice, doc.Operation)
	assert.Equal(t, "V123456789", doc.Customer.VAT)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, 2.0, doc.Items[0].Quantity)
	assert.Equal(t, DiscountPercent, doc.Items[0].DiscountType)
	require.Len(t, doc.Payments, 1)
	assert.Equal(t, "01", doc.Payments[0].Method)
	assert.Equal(t, []string{"Gracias por su compra"}, doc.Delivery.Comments)
}

func TestLoadDocumentCreditNote(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "credit.yaml", `
operation: credit
customer:
  vat: J-12345678-9
  name: Almacenes Oriente CA
affected:
  number: "00001234"
  date: 15/01/2026
  serial: Z1B1234567
items:
  - name: Devolucion cafe
    quantity: 1
    price: 25.50
    tax: 16
`)

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	require.NotNil(t, doc.Affected)
	assert.Equal(t, "Z1B1234567", doc.Affected.Serial)
}

func TestLoadDocumentBadYAML(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "bad.yaml", "{not yaml: [")
	_, err := LoadDocument(path)
	require.Error(t, err)
}
