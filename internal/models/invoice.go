package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractionMethod identifies which tier of the fallback chain produced a page.
type ExtractionMethod string

const (
	MethodPattern     ExtractionMethod = "pattern"
	MethodLayoutModel ExtractionMethod = "layout-model"
	MethodOCRLLM      ExtractionMethod = "ocr-llm"
	MethodVisionLLM   ExtractionMethod = "vision-llm"
	MethodNone        ExtractionMethod = "none"
)

// Valid reports whether m is one of the known method tags.
func (m ExtractionMethod) Valid() bool {
	switch m {
	case MethodPattern, MethodLayoutModel, MethodOCRLLM, MethodVisionLLM, MethodNone:
		return true
	}
	return false
}

// DocumentStatus is the terminal outcome of processing one document.
type DocumentStatus string

const (
	StatusSuccess      DocumentStatus = "success"
	StatusManualReview DocumentStatus = "manual_review_needed"
	StatusError        DocumentStatus = "error"
)

// LineItem is one row of an invoice table. Immutable once attached to a Page.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
	Position    int             `json:"position"`
	ProductID   string          `json:"productId,omitempty"`
}

// Complete reports whether the item carries everything confidence scoring
// requires: a description plus quantity, unit price and line total.
func (li LineItem) Complete() bool {
	return li.Description != "" &&
		!li.Quantity.IsZero() &&
		!li.UnitPrice.IsZero() &&
		!li.LineTotal.IsZero()
}

// ExtractionRecord is the normalized result a single tier returns for a page.
type ExtractionRecord struct {
	VendorName    string          `json:"vendor_name"`
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"` // YYYY-MM-DD
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LineItems     []LineItem      `json:"line_items"`

	// Vendor-specific auxiliary fields.
	OrderNumber   string `json:"order_number,omitempty"`
	CustomerID    string `json:"customer_id,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`

	Confidence float64          `json:"confidence"`
	Method     ExtractionMethod `json:"method"`
}

// ParsedDate returns the record date as a time, or the zero time if the date
// is absent or not in ISO form.
func (r *ExtractionRecord) ParsedDate() time.Time {
	if r.Date == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Page is the outcome of extraction for one page of a document. Exactly one
// outcome per page: either a populated record or a failure marker with
// Method == MethodNone.
type Page struct {
	PageNumber    int              `json:"page_number"`
	VendorName    string           `json:"vendor_name,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
	Date          string           `json:"date,omitempty"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	LineItems     []LineItem       `json:"line_items,omitempty"`
	Method        ExtractionMethod `json:"extraction_method"`
	Confidence    float64          `json:"confidence"`
	Validated     bool             `json:"validated"`
	Error         string           `json:"error,omitempty"`
}

// Extracted reports whether any tier produced a validated record for this page.
func (p Page) Extracted() bool {
	return p.Method != MethodNone && p.Method != ""
}

// DocumentResult aggregates per-page outcomes for one processed file.
type DocumentResult struct {
	Status DocumentStatus `json:"status"`
	Source string         `json:"source"`
	Pages  []Page         `json:"pages"`
	Error  string         `json:"error,omitempty"`
}

// Succeeded reports whether at least one page was extracted.
func (d DocumentResult) Succeeded() bool {
	for _, p := range d.Pages {
		if p.Extracted() {
			return true
		}
	}
	return false
}
