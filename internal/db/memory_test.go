package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iexcalibur/invoice-extractor/internal/models"
)

func extractedPage(number string) models.Page {
	return models.Page{
		PageNumber:    1,
		VendorName:    "Pacific Food Importers",
		InvoiceNumber: number,
		Date:          "2025-07-15",
		TotalAmount:   decimal.RequireFromString("522.75"),
		Method:        models.MethodPattern,
		Confidence:    0.95,
		Validated:     true,
	}
}

func TestSaveRejectsDuplicateInvoiceNumber(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Save(ctx, extractedPage("378093"), "a.pdf")
	require.NoError(t, err)

	// Re-submitting the same number for the same vendor is refused and the
	// original record is untouched.
	dup := extractedPage("378093")
	dup.TotalAmount = decimal.NewFromInt(999)
	_, err = s.Save(ctx, dup, "b.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateInvoice))

	all, err := s.GetAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].TotalAmount.Equal(first.TotalAmount))
}

func TestSaveSameNumberDifferentVendor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Save(ctx, extractedPage("378093"), "a.pdf")
	require.NoError(t, err)

	other := extractedPage("378093")
	other.VendorName = "Frank's Quality Produce"
	_, err = s.Save(ctx, other, "b.pdf")
	assert.NoError(t, err, "duplicate detection is scoped per vendor")
}

func TestSaveWithoutInvoiceNumberNeverCollides(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Save(ctx, extractedPage(""), "a.pdf")
	require.NoError(t, err)
	_, err = s.Save(ctx, extractedPage(""), "b.pdf")
	assert.NoError(t, err)
}

func TestGetByID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	saved, err := s.Save(ctx, extractedPage("378093"), "a.pdf")
	require.NoError(t, err)

	got, err := s.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "378093", got.InvoiceNumber)

	_, err = s.GetByID(ctx, uuid.New())
	assert.Error(t, err)
}

func TestSaveDocumentSkipsDuplicatesAndFailures(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Save(ctx, extractedPage("378093"), "earlier.pdf")
	require.NoError(t, err)

	result := models.DocumentResult{
		Source: "batch.pdf",
		Pages: []models.Page{
			extractedPage("378093"),                  // duplicate
			extractedPage("378094"),                  // new
			{PageNumber: 3, Method: models.MethodNone}, // not extracted
		},
	}

	out := SaveDocument(ctx, s, result)
	assert.True(t, out.Saved)
	assert.Equal(t, 1, out.SavedCount)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "already exists")
}

func TestMonthlyStatsAggregation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	july1 := extractedPage("378093")
	july2 := extractedPage("378094")
	august := extractedPage("378095")
	august.Date = "2025-08-02"

	for _, p := range []models.Page{july1, july2, august} {
		_, err := s.Save(ctx, p, "a.pdf")
		require.NoError(t, err)
	}

	stats, err := s.MonthlyStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "2025-08", stats[0].Month)
	assert.Equal(t, 1, stats[0].InvoiceCount)
	assert.Equal(t, "2025-07", stats[1].Month)
	assert.Equal(t, 2, stats[1].InvoiceCount)
	assert.True(t, stats[1].TotalAmount.Equal(decimal.RequireFromString("1045.50")))
}
