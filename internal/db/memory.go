package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// MemoryStore keeps extractions in process memory. Used when no database is
// configured (OCR-only mode) and in tests; it enforces the same
// duplicate-rejection contract as Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	invoices []StoredInvoice
	byKey    map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]bool)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, page models.Page, sourceID string) (*StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.InvoiceNumber != "" {
		key := dupKey(page.VendorName, page.InvoiceNumber)
		if s.byKey[key] {
			return nil, fmt.Errorf("invoice %s for %s: %w",
				page.InvoiceNumber, page.VendorName, ErrDuplicateInvoice)
		}
		s.byKey[key] = true
	}

	inv := StoredInvoice{
		ID:            uuid.New(),
		VendorName:    page.VendorName,
		InvoiceNumber: page.InvoiceNumber,
		TotalAmount:   page.TotalAmount,
		LineItems:     page.LineItems,
		Method:        string(page.Method),
		Confidence:    page.Confidence,
		SourceFile:    sourceID,
		CreatedAt:     time.Now().UTC(),
	}
	if t, err := time.Parse("2006-01-02", page.Date); err == nil {
		inv.InvoiceDate = &t
	}

	s.invoices = append(s.invoices, inv)
	return &inv, nil
}

// GetAll implements Store. Newest first.
func (s *MemoryStore) GetAll(_ context.Context, limit int) ([]StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	out := make([]StoredInvoice, len(s.invoices))
	copy(out, s.invoices)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID implements Store.
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*StoredInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.invoices {
		if s.invoices[i].ID == id {
			inv := s.invoices[i]
			return &inv, nil
		}
	}
	return nil, fmt.Errorf("invoice %s not found", id)
}

// MonthlyStats implements Store.
func (s *MemoryStore) MonthlyStats(_ context.Context) ([]MonthlyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byMonth := make(map[string]*MonthlyStats)
	for _, inv := range s.invoices {
		if inv.InvoiceDate == nil {
			continue
		}
		month := inv.InvoiceDate.Format("2006-01")
		m, ok := byMonth[month]
		if !ok {
			m = &MonthlyStats{Month: month, TotalAmount: decimal.Zero}
			byMonth[month] = m
		}
		m.InvoiceCount++
		m.TotalAmount = m.TotalAmount.Add(inv.TotalAmount)
	}

	out := make([]MonthlyStats, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}
