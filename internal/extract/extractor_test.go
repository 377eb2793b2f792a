package extract

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

const pacificText = `PACIFIC FOOD IMPORTERS
ORDER NO: 444509    CUST ID: 2063
INVOICE 378093
ORDER DATE |INVOICE DATE
07/10/2025 | 07/15/2025
PRODUCT ID ORDERED SHIPPED
12345 10.0 10.0 / OLIVE OIL EXTRA VIRGIN | 25.00 250.00
23456 5.0 5.0 / FETA CHEESE DOMESTIC | 12.50 62.50
34567 8.0 8.0 / KALAMATA OLIVES | 15.00 120.00
45678 2.0 2.0 / TAHINI SESAME PASTE | 20.00 40.00
56789 4.0 4.0 / GRAPE LEAVES JAR | 12.50 50.00
SUB TOTAL 522.50
INVOICE TOTAL $522.75
`

const franksText = `Frank's Quality Produce
Invoice #: 20065595
Date: 7/15/2025
Account #: 1234
Quantity Description Price Each Amount
5 APPLES FUJI CASE 10.00 50.00
3 BANANAS GREEN 8.00 24.00
2 CARROTS JUMBO 6.00 12.00
Sub Total: $86.00
Sales Tax: $0.00
Total: $86.00
`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	reg, err := vendor.NewRegistry(filepath.Join(t.TempDir(), "registry.json"), zap.NewNop())
	require.NoError(t, err)
	return NewExtractor(reg, zap.NewNop(), 0.60)
}

func TestExtractPacificCleanInvoice(t *testing.T) {
	e := newTestExtractor(t)

	rec := e.Extract(pacificText)
	require.NotNil(t, rec)

	assert.Equal(t, "Pacific Food Importers", rec.VendorName)
	assert.Equal(t, "378093", rec.InvoiceNumber)
	assert.Equal(t, "2025-07-15", rec.Date, "invoice date, not order date")
	assert.True(t, rec.TotalAmount.Equal(decimal.RequireFromString("522.75")))
	assert.Equal(t, "444509", rec.OrderNumber)
	assert.Equal(t, "2063", rec.CustomerID)
	assert.Equal(t, models.MethodPattern, rec.Method)

	require.Len(t, rec.LineItems, 5)
	first := rec.LineItems[0]
	assert.Equal(t, "OLIVE OIL EXTRA VIRGIN", first.Description)
	assert.Equal(t, "12345", first.ProductID)
	assert.True(t, first.Quantity.Equal(decimal.RequireFromString("10.0")), "quantity comes from the SHIPPED column")
	assert.True(t, first.LineTotal.Equal(decimal.RequireFromString("250.00")))

	assert.GreaterOrEqual(t, rec.Confidence, 0.90)
}

func TestExtractRejectsOrderNumberAsInvoiceNumber(t *testing.T) {
	e := newTestExtractor(t)

	// The invoice number slot holds an order number; the label-anchored
	// matcher finds it but validation must throw it out.
	text := `PACIFIC FOOD IMPORTERS
ORDER NO: 444509
INVOICE 444509
INVOICE DATE 07/15/2025
PRODUCT ID ORDERED SHIPPED
12345 10.0 10.0 / OLIVE OIL EXTRA VIRGIN | 25.00 250.00
23456 5.0 5.0 / FETA CHEESE DOMESTIC | 12.50 62.50
34567 8.0 8.0 / KALAMATA OLIVES | 15.00 120.00
SUB TOTAL 432.50
INVOICE TOTAL $432.50
`
	rec := e.Extract(text)
	require.NotNil(t, rec)
	assert.Empty(t, rec.InvoiceNumber)
	assert.Equal(t, "2025-07-15", rec.Date)
}

func TestExtractFranksInvoice(t *testing.T) {
	e := newTestExtractor(t)

	rec := e.Extract(franksText)
	require.NotNil(t, rec)

	assert.Equal(t, "Frank's Quality Produce", rec.VendorName)
	assert.Equal(t, "20065595", rec.InvoiceNumber)
	assert.Equal(t, "2025-07-15", rec.Date)
	assert.Equal(t, "1234", rec.AccountNumber)
	assert.True(t, rec.TotalAmount.Equal(decimal.RequireFromString("86.00")),
		"grand total, never the subtotal: got %s", rec.TotalAmount)

	require.Len(t, rec.LineItems, 3)
	assert.Equal(t, "APPLES FUJI CASE", rec.LineItems[0].Description)
	assert.True(t, rec.LineItems[1].UnitPrice.Equal(decimal.RequireFromString("8.00")))
}

func TestExtractUnknownVendorReturnsNil(t *testing.T) {
	e := newTestExtractor(t)

	rec := e.Extract("ACME WIDGETS\nInvoice #: 99001122\nTotal: $50.00\n")
	assert.Nil(t, rec)
}

func TestExtractBelowThresholdReturnsNil(t *testing.T) {
	e := newTestExtractor(t)

	// Vendor name alone scores 0.10, far under the 0.60 gate.
	rec := e.Extract("PACIFIC FOOD IMPORTERS\nillegible smudge\n")
	assert.Nil(t, rec)
}

func TestExtractEmptyText(t *testing.T) {
	e := newTestExtractor(t)
	assert.Nil(t, e.Extract(""))
}

func TestPacificRowConsistencyFilter(t *testing.T) {
	// qty*price wildly off the stated amount marks the row as OCR garbage.
	table := `12345 10.0 10.0 / OLIVE OIL EXTRA VIRGIN | 25.00 250.00
23456 5.0 5.0 / FETA CHEESE DOMESTIC | 12.50 900.00
`
	items := parsePacificItems(table)
	require.Len(t, items, 1)
	assert.Equal(t, "OLIVE OIL EXTRA VIRGIN", items[0].Description)
}

func TestFranksDuplicateRowsSuppressed(t *testing.T) {
	table := `5 APPLES FUJI CASE 10.00 50.00
5 APPLES FUJI CASE 10.00 50.00
3 BANANAS GREEN 8.00 24.00
`
	items := parseFranksItems(table)
	assert.Len(t, items, 2)
}

func TestFranksChargeRowsSkipped(t *testing.T) {
	table := `5 APPLES FUJI CASE 10.00 50.00
1 FUEL SURCHARGE 5.00 5.00
`
	items := parseFranksItems(table)
	require.Len(t, items, 1)
	assert.Equal(t, "APPLES FUJI CASE", items[0].Description)
}
