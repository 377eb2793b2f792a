package ai

import (
	"fmt"
	"strings"
	"time"
)

// responseSchema is the JSON shape every prompt asks the model to return. The
// field names line up with ParseRecord.
const responseSchema = `{
  "vendor_name": "exact vendor business name",
  "invoice_number": "the invoice number, digits only",
  "date": "YYYY-MM-DD",
  "total_amount": number (final amount due, NEVER the subtotal, use 0 if unreadable),
  "order_number": "order/PO number or null",
  "customer_id": "customer id or null",
  "account_number": "account number or null",
  "line_items": [{"description": "...", "quantity": 1, "unit_price": 10.00, "line_total": 10.00}]
}`

// BuildPrompt renders the text-mode extraction prompt. vendorInstructions is
// the registry guidance for a detected vendor (may be empty); layoutHints is
// optional region text from the layout service.
func BuildPrompt(ocrText, vendorInstructions, layoutHints string) string {
	var b strings.Builder

	b.WriteString("You are an expert at reading wholesale food distributor invoices. ")
	b.WriteString("Extract the fields below from this OCR text. The text may contain OCR errors; ")
	b.WriteString("read carefully and prefer labeled values over bare numbers.\n\n")

	if vendorInstructions != "" {
		b.WriteString("## KNOWN VENDOR\n\n")
		b.WriteString(vendorInstructions)
		b.WriteString("\n")
	}
	if layoutHints != "" {
		b.WriteString("## DOCUMENT LAYOUT HINTS\n\n")
		b.WriteString(layoutHints)
		b.WriteString("\n")
	}

	b.WriteString("## OUTPUT\n\n")
	b.WriteString("Return ONLY valid JSON (no markdown, no comments):\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n## RULES\n\n")
	b.WriteString("1. NEVER confuse the invoice number with order numbers, PO numbers or customer ids\n")
	b.WriteString("2. The date is the INVOICE date, not the order or delivery date\n")
	b.WriteString("3. total_amount is the final invoice total, never a subtotal\n")
	b.WriteString("4. Line items come from the item table only; skip fuel surcharges, taxes and totals rows\n")
	b.WriteString("5. NEVER invent values; use null or 0 for anything you cannot read\n")
	fmt.Fprintf(&b, "6. Default year if unreadable: %d\n", time.Now().Year())

	b.WriteString("\n## INVOICE TEXT\n\n")
	b.WriteString(ocrText)
	return b.String()
}

// BuildVisionPrompt renders the image-mode prompt used when OCR text was too
// poor to work with.
func BuildVisionPrompt(vendorInstructions string) string {
	var b strings.Builder

	b.WriteString("You are an expert at reading wholesale food distributor invoices. ")
	b.WriteString("Read the attached invoice image character by character and extract the fields below.\n\n")

	if vendorInstructions != "" {
		b.WriteString("## KNOWN VENDOR\n\n")
		b.WriteString(vendorInstructions)
		b.WriteString("\n")
	}

	b.WriteString("## OUTPUT\n\n")
	b.WriteString("Return ONLY valid JSON (no markdown, no comments):\n")
	b.WriteString(responseSchema)
	b.WriteString("\n\n## RULES\n\n")
	b.WriteString("1. The invoice number is usually near the top, next to an INVOICE label\n")
	b.WriteString("2. NEVER confuse it with order numbers, PO numbers or customer ids\n")
	b.WriteString("3. total_amount is the final invoice total, never a subtotal\n")
	b.WriteString("4. NEVER invent values; use null or 0 for anything you cannot read\n")
	return b.String()
}
