package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

// PgStore persists extractions to Postgres.
type PgStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool, logger *zap.Logger) *PgStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgStore{pool: pool, logger: logger}
}

// EnsureSchema creates the invoices table when it does not exist yet.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS invoices (
			id UUID PRIMARY KEY,
			vendor_name TEXT NOT NULL,
			invoice_number TEXT NOT NULL DEFAULT '',
			invoice_date DATE,
			total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			line_items JSONB NOT NULL DEFAULT '[]',
			extraction_method TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			source_file TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS invoices_vendor_number_idx
			ON invoices (vendor_name, invoice_number)
			WHERE invoice_number <> '';
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PgStore) Save(ctx context.Context, page models.Page, sourceID string) (*StoredInvoice, error) {
	if page.InvoiceNumber != "" {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM invoices WHERE vendor_name = $1 AND invoice_number = $2)`,
			page.VendorName, page.InvoiceNumber,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("invoice %s for %s: %w",
				page.InvoiceNumber, page.VendorName, ErrDuplicateInvoice)
		}
	}

	items, err := json.Marshal(page.LineItems)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
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
	}
	var date *time.Time
	if t, err := time.Parse("2006-01-02", page.Date); err == nil {
		date = &t
		inv.InvoiceDate = &t
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			id, vendor_name, invoice_number, invoice_date, total_amount,
			line_items, extraction_method, confidence, source_file
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		inv.ID, inv.VendorName, inv.InvoiceNumber, date, inv.TotalAmount,
		items, inv.Method, inv.Confidence, inv.SourceFile,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}

	s.logger.Info("invoice saved",
		zap.String("vendor", inv.VendorName),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("id", inv.ID.String()))
	return &inv, nil
}

// GetAll implements Store. Newest first.
func (s *PgStore) GetAll(ctx context.Context, limit int) ([]StoredInvoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, vendor_name, invoice_number, invoice_date, total_amount,
		       line_items, extraction_method, confidence, source_file, created_at
		FROM invoices
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	var out []StoredInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// GetByID implements Store.
func (s *PgStore) GetByID(ctx context.Context, id uuid.UUID) (*StoredInvoice, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, vendor_name, invoice_number, invoice_date, total_amount,
		       line_items, extraction_method, confidence, source_file, created_at
		FROM invoices
		WHERE id = $1`, id)

	inv, err := scanInvoice(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return &inv, nil
}

// MonthlyStats implements Store.
func (s *PgStore) MonthlyStats(ctx context.Context) ([]MonthlyStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(invoice_date, 'YYYY-MM') AS month,
		       COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM invoices
		WHERE invoice_date IS NOT NULL
		GROUP BY 1
		ORDER BY 1 DESC`)
	if err != nil {
		return nil, fmt.Errorf("query monthly stats: %w", err)
	}
	defer rows.Close()

	var out []MonthlyStats
	for rows.Next() {
		var m MonthlyStats
		if err := rows.Scan(&m.Month, &m.InvoiceCount, &m.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanInvoice(scan func(dest ...any) error) (StoredInvoice, error) {
	var inv StoredInvoice
	var items []byte
	err := scan(&inv.ID, &inv.VendorName, &inv.InvoiceNumber, &inv.InvoiceDate,
		&inv.TotalAmount, &items, &inv.Method, &inv.Confidence,
		&inv.SourceFile, &inv.CreatedAt)
	if err != nil {
		return inv, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.LineItems); err != nil {
			return inv, fmt.Errorf("unmarshal line items: %w", err)
		}
	}
	return inv, nil
}
