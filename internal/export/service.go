// Package export renders stored invoices as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/db"
)

// Service produces XLSX bytes from the invoice store.
type Service struct {
	store  db.Store
	logger *zap.Logger
}

// NewService creates an export service over a store.
func NewService(store db.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// InvoicesXLSX returns a workbook with one summary row per stored invoice and
// a second sheet expanding every line item.
func (s *Service) InvoicesXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	invoices, err := s.store.GetAll(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const summary = "Invoices"
	const items = "Line Items"

	idx, err := f.NewSheet(summary)
	if err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(items); err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	writeRow(f, summary, 1, []any{
		"Invoice Date", "Vendor", "Invoice Number", "Total Amount",
		"Line Items", "Method", "Confidence", "Source File",
	})
	writeRow(f, items, 1, []any{
		"Vendor", "Invoice Number", "Position", "Description",
		"Quantity", "Unit Price", "Line Total",
	})

	itemRow := 2
	for i, inv := range invoices {
		date := ""
		if inv.InvoiceDate != nil {
			date = inv.InvoiceDate.Format("2006-01-02")
		}
		writeRow(f, summary, i+2, []any{
			date, inv.VendorName, inv.InvoiceNumber, inv.TotalAmount.StringFixed(2),
			len(inv.LineItems), inv.Method, inv.Confidence, inv.SourceFile,
		})

		for _, li := range inv.LineItems {
			writeRow(f, items, itemRow, []any{
				inv.VendorName, inv.InvoiceNumber, li.Position, li.Description,
				li.Quantity.String(), li.UnitPrice.StringFixed(2), li.LineTotal.StringFixed(2),
			})
			itemRow++
		}
	}

	_ = f.SetColWidth(summary, "A", "A", 14)
	_ = f.SetColWidth(summary, "B", "B", 28)
	_ = f.SetColWidth(summary, "C", "D", 16)
	_ = f.SetColWidth(summary, "H", "H", 40)
	_ = f.SetColWidth(items, "A", "B", 24)
	_ = f.SetColWidth(items, "D", "D", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("invoices exported",
		zap.Int("rows", len(invoices)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
