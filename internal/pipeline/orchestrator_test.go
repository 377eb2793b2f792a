package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/textfix"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

type stubEngine struct {
	pages     []string
	prepErr   error
	text      map[string]string
	onPrep    func()
	minUsable int
}

func (s *stubEngine) PreparePages(_ context.Context, _ string) ([]string, func(), error) {
	if s.onPrep != nil {
		s.onPrep()
	}
	return s.pages, func() {}, s.prepErr
}

func (s *stubEngine) Recognize(_ context.Context, imagePath string) (string, error) {
	return s.text[imagePath], nil
}

func (s *stubEngine) Usable(text string) bool {
	min := s.minUsable
	if min == 0 {
		min = 10
	}
	return len(strings.TrimSpace(text)) >= min
}

type stubTier struct {
	name  models.ExtractionMethod
	rec   *models.ExtractionRecord
	err   error
	calls int
}

func (s *stubTier) Name() models.ExtractionMethod { return s.name }

func (s *stubTier) Extract(_ context.Context, _ *PageInput) (*models.ExtractionRecord, error) {
	s.calls++
	if s.rec == nil {
		return nil, s.err
	}
	cp := *s.rec
	cp.Method = s.name
	return &cp, s.err
}

func goodRecord() *models.ExtractionRecord {
	return &models.ExtractionRecord{
		VendorName:    "Pacific Food Importers",
		InvoiceNumber: "378093",
		Date:          "2025-07-15",
		TotalAmount:   decimal.NewFromInt(100),
		Confidence:    0.85,
	}
}

func newTestOrchestrator(t *testing.T, engine ocrEngine, tiers ...Tier) *Orchestrator {
	t.Helper()
	reg, err := vendor.NewRegistry(filepath.Join(t.TempDir(), "registry.json"), zap.NewNop())
	require.NoError(t, err)
	return &Orchestrator{
		engine:      engine,
		corrector:   textfix.NewCorrector(),
		registry:    reg,
		tiers:       tiers,
		tierTimeout: time.Second,
		logger:      zap.NewNop(),
	}
}

func TestEscalationStopsAtFirstAcceptedTier(t *testing.T) {
	first := &stubTier{name: models.MethodPattern, rec: goodRecord()}
	second := &stubTier{name: models.MethodOCRLLM, rec: goodRecord()}
	o := newTestOrchestrator(t, &stubEngine{}, first, second)

	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: "some text"})

	assert.Equal(t, models.MethodPattern, page.Method)
	assert.True(t, page.Validated)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls, "accepted tier must stop escalation")
}

func TestFailedTiersEscalateInOrder(t *testing.T) {
	first := &stubTier{name: models.MethodPattern, err: ErrNoText}
	second := &stubTier{name: models.MethodLayoutModel, err: ErrLowConfidence}
	third := &stubTier{name: models.MethodOCRLLM, rec: goodRecord()}
	o := newTestOrchestrator(t, &stubEngine{}, first, second, third)

	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: "some text"})

	assert.Equal(t, models.MethodOCRLLM, page.Method)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
}

func TestAllTiersExhaustedIsTriageNotError(t *testing.T) {
	engine := &stubEngine{
		pages: []string{"p1.png"},
		text:  map[string]string{"p1.png": "completely illegible but long enough text"},
	}
	o := newTestOrchestrator(t, engine,
		&stubTier{name: models.MethodPattern},
		&stubTier{name: models.MethodOCRLLM, err: errors.New("model down")},
		&stubTier{name: models.MethodVisionLLM, err: errors.New("model down")},
	)

	result := o.ProcessDocument(context.Background(), "doc.pdf")

	assert.Equal(t, models.StatusManualReview, result.Status)
	assert.Empty(t, result.Error)
	require.Len(t, result.Pages, 1)
	assert.Equal(t, models.MethodNone, result.Pages[0].Method)
	assert.False(t, result.Pages[0].Validated)
}

func TestRelaxedValidationAcceptsThreeOfFour(t *testing.T) {
	rec := goodRecord()
	rec.InvoiceNumber = "" // vendor + date + total remain
	o := newTestOrchestrator(t, &stubEngine{}, &stubTier{name: models.MethodOCRLLM, rec: rec})

	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: "text"})
	assert.Equal(t, models.MethodOCRLLM, page.Method)
	assert.True(t, page.Validated)
}

func TestRelaxedValidationRejectsTwoOfFour(t *testing.T) {
	rec := goodRecord()
	rec.InvoiceNumber = ""
	rec.Date = ""
	o := newTestOrchestrator(t, &stubEngine{}, &stubTier{name: models.MethodOCRLLM, rec: rec})

	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: "text"})
	assert.Equal(t, models.MethodNone, page.Method)
}

func TestVisionTierRequiresStrictValidation(t *testing.T) {
	rec := goodRecord()
	rec.InvoiceNumber = "" // three of four is enough everywhere but the last tier
	o := newTestOrchestrator(t, &stubEngine{}, &stubTier{name: models.MethodVisionLLM, rec: rec})

	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: "text"})
	assert.Equal(t, models.MethodNone, page.Method)
}

func TestPostCorrectFixesVendorNameAndRelocatesNumber(t *testing.T) {
	rec := goodRecord()
	rec.VendorName = "PACIFIC FOOD IMPORTERS INC" // plausible but not canonical
	rec.InvoiceNumber = "444509"                  // order number, fails vendor rules
	o := newTestOrchestrator(t, &stubEngine{}, &stubTier{name: models.MethodOCRLLM, rec: rec})

	text := "PACIFIC FOOD IMPORTERS\nORDER NO: 444509\nINVOICE 378093\nTOTAL $100.00"
	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: text})

	assert.Equal(t, "Pacific Food Importers", page.VendorName)
	assert.Equal(t, "378093", page.InvoiceNumber, "number relocated next to the vendor's label")
}

func TestPostCorrectGivesUpOutsideWindow(t *testing.T) {
	rec := goodRecord()
	rec.InvoiceNumber = "444509"
	o := newTestOrchestrator(t, &stubEngine{}, &stubTier{name: models.MethodOCRLLM, rec: rec})

	// The only valid-looking number sits far beyond the relocation window.
	text := "Pacific Food Importers\nINVOICE smudged" + strings.Repeat(" x", 200) + " 378093"
	page := o.processPage(context.Background(), &PageInput{Number: 1, Text: text})

	assert.Empty(t, page.InvoiceNumber, "invalid number discarded, not kept")
	assert.True(t, page.Validated, "three valid fields still pass relaxed validation")
}

func TestProcessDocumentUnreadableFile(t *testing.T) {
	o := newTestOrchestrator(t, &stubEngine{prepErr: errors.New("no such file")})

	result := o.ProcessDocument(context.Background(), "missing.pdf")
	assert.Equal(t, models.StatusError, result.Status)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Pages)
}

func TestProcessDocumentSucceedsWhenAnyPageExtracts(t *testing.T) {
	engine := &stubEngine{
		pages: []string{"p1.png", "p2.png"},
		text: map[string]string{
			"p1.png": "x", // too short, unusable
			"p2.png": "PACIFIC FOOD IMPORTERS INVOICE 378093",
		},
	}
	tier := &stubTier{name: models.MethodPattern, rec: goodRecord()}
	o := newTestOrchestrator(t, engine, tier)

	result := o.ProcessDocument(context.Background(), "doc.pdf")

	assert.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, models.MethodPattern, result.Pages[1].Method)
}

func TestUnusableTextSkipsTextTiers(t *testing.T) {
	engine := &stubEngine{
		pages: []string{"p1.png"},
		text:  map[string]string{"p1.png": "short"},
	}
	o := newTestOrchestrator(t, engine, &stubTier{name: models.MethodPattern})

	result := o.ProcessDocument(context.Background(), "doc.pdf")
	require.Len(t, result.Pages, 1)
	assert.Equal(t, models.MethodNone, result.Pages[0].Method)
}

func TestBatchCancellationBetweenFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := &stubEngine{pages: []string{"p1.png"}, text: map[string]string{}}
	engine.onPrep = cancel // cancel as soon as the first document starts

	o := newTestOrchestrator(t, engine, &stubTier{name: models.MethodPattern})
	results := o.ProcessBatch(ctx, []string{"a.pdf", "b.pdf", "c.pdf"})

	assert.Len(t, results, 1, "files after cancellation are not processed")
}

func TestBatchAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(t, &stubEngine{})
	assert.Empty(t, o.ProcessBatch(ctx, []string{"a.pdf"}))
}
