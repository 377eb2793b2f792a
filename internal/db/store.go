package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// ErrDuplicateInvoice is returned when a vendor already has an invoice with
// the same number. Re-ingestion is a no-op with a reported reason, never an
// overwrite.
var ErrDuplicateInvoice = errors.New("invoice already exists for this vendor")

// StoredInvoice is one persisted extraction.
type StoredInvoice struct {
	ID            uuid.UUID         `json:"id"`
	VendorName    string            `json:"vendor_name"`
	InvoiceNumber string            `json:"invoice_number"`
	InvoiceDate   *time.Time        `json:"invoice_date"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	LineItems     []models.LineItem `json:"line_items"`
	Method        string            `json:"extraction_method"`
	Confidence    float64           `json:"confidence"`
	SourceFile    string            `json:"source_file"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MonthlyStats aggregates stored invoices for one calendar month.
type MonthlyStats struct {
	Month        string          `json:"month"` // YYYY-MM
	InvoiceCount int             `json:"invoice_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// Store is the persistence contract for accepted extractions.
type Store interface {
	// Save persists one extracted page. Returns ErrDuplicateInvoice when the
	// vendor already has this invoice number.
	Save(ctx context.Context, page models.Page, sourceID string) (*StoredInvoice, error)

	GetAll(ctx context.Context, limit int) ([]StoredInvoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StoredInvoice, error)
	MonthlyStats(ctx context.Context) ([]MonthlyStats, error)
}

// SaveResult reports what happened when a document's pages were persisted.
type SaveResult struct {
	Saved      bool     `json:"saved"`
	SavedCount int      `json:"saved_count"`
	Errors     []string `json:"errors,omitempty"`
}

// SaveDocument persists every extracted page of a document result. Duplicate
// and failed pages are reported by reason and never block the others.
func SaveDocument(ctx context.Context, store Store, result models.DocumentResult) SaveResult {
	var out SaveResult
	for _, page := range result.Pages {
		if !page.Extracted() {
			continue
		}
		if _, err := store.Save(ctx, page, result.Source); err != nil {
			out.Errors = append(out.Errors,
				fmt.Sprintf("page %d: %v", page.PageNumber, err))
			continue
		}
		out.SavedCount++
	}
	out.Saved = out.SavedCount > 0
	return out
}

// dupKey identifies an invoice for duplicate detection. Pages without an
// invoice number are exempt; there is nothing to collide on.
func dupKey(vendorName, invoiceNumber string) string {
	return vendorName + "\x00" + invoiceNumber
}
