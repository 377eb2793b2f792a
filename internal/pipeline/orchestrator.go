// Package pipeline runs the ordered extraction tier chain over documents:
// pattern matching first, then layout-assisted and plain LLM extraction, and
// finally vision. Cheap tiers gate expensive ones; a page that defeats every
// tier is a triage signal, never an error.
package pipeline

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/ai"
	"github.com/iexcalibur/invoice-extractor/internal/extract"
	"github.com/iexcalibur/invoice-extractor/internal/layout"
	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/textfix"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

// ocrEngine is the slice of ocr.Engine the orchestrator uses.
type ocrEngine interface {
	PreparePages(ctx context.Context, path string) ([]string, func(), error)
	Recognize(ctx context.Context, imagePath string) (string, error)
	Usable(text string) bool
}

// Orchestrator drives per-page tier escalation and assembles document results.
type Orchestrator struct {
	engine      ocrEngine
	corrector   *textfix.Corrector
	registry    *vendor.Registry
	tiers       []Tier
	tierTimeout time.Duration
	logger      *zap.Logger
}

// New wires the tier chain from configuration. Disabled tiers are left out of
// the chain entirely.
func New(
	cfg models.PipelineConfig,
	engine ocrEngine,
	corrector *textfix.Corrector,
	registry *vendor.Registry,
	patternEx *extract.Extractor,
	layoutClient *layout.Client,
	aiEx *ai.Extractor,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	var tiers []Tier
	if cfg.UsePattern && patternEx != nil {
		tiers = append(tiers, &patternTier{ex: patternEx})
	}
	if cfg.UseLayout && layoutClient != nil && aiEx != nil {
		tiers = append(tiers, &layoutTier{client: layoutClient, ex: aiEx, threshold: cfg.LayoutThreshold})
	}
	if cfg.UseOCRLLM && aiEx != nil {
		tiers = append(tiers, &ocrLLMTier{ex: aiEx})
	}
	if cfg.UseVision && aiEx != nil {
		tiers = append(tiers, &visionTier{ex: aiEx})
	}

	timeout := cfg.TierTimeout.Std()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Orchestrator{
		engine:      engine,
		corrector:   corrector,
		registry:    registry,
		tiers:       tiers,
		tierTimeout: timeout,
		logger:      logger,
	}
}

// ProcessBatch processes files in order, honoring cancellation between files.
// Results for files not reached before cancellation are omitted.
func (o *Orchestrator) ProcessBatch(ctx context.Context, paths []string) []models.DocumentResult {
	results := make([]models.DocumentResult, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			o.logger.Info("batch cancelled", zap.Int("processed", len(results)))
			break
		}
		results = append(results, o.ProcessDocument(ctx, path))
	}
	return results
}

// ProcessDocument runs the tier chain over every page of one file. A file
// that cannot be read or rasterized is the only error outcome; pages where
// all tiers fail resolve to manual review.
func (o *Orchestrator) ProcessDocument(ctx context.Context, path string) models.DocumentResult {
	result := models.DocumentResult{Source: path}

	pages, cleanup, err := o.engine.PreparePages(ctx, path)
	if err != nil {
		o.logger.Error("document unreadable", zap.String("path", path), zap.Error(err))
		result.Status = models.StatusError
		result.Error = err.Error()
		return result
	}
	defer cleanup()

	for i, imagePath := range pages {
		if ctx.Err() != nil {
			o.logger.Info("document cancelled",
				zap.String("path", path), zap.Int("pages_done", len(result.Pages)))
			break
		}

		in := PageInput{Number: i + 1, ImagePath: imagePath}
		if raw, err := o.engine.Recognize(ctx, imagePath); err == nil {
			in.RawText = raw
			if o.engine.Usable(raw) {
				in.Text = o.corrector.Correct(raw)
			} else {
				o.logger.Debug("ocr text unusable",
					zap.String("path", path), zap.Int("page", in.Number), zap.Int("length", len(raw)))
			}
		} else {
			o.logger.Warn("ocr failed", zap.String("path", path), zap.Int("page", in.Number), zap.Error(err))
		}

		result.Pages = append(result.Pages, o.processPage(ctx, &in))
	}

	switch {
	case result.Succeeded():
		result.Status = models.StatusSuccess
	default:
		result.Status = models.StatusManualReview
	}
	return result
}

// processPage walks the tier chain and stops at the first accepted record.
func (o *Orchestrator) processPage(ctx context.Context, in *PageInput) models.Page {
	for _, tier := range o.tiers {
		tctx, cancel := context.WithTimeout(ctx, o.tierTimeout)
		rec, err := tier.Extract(tctx, in)
		cancel()

		if err != nil {
			// Timeouts and tier errors both mean fall through, never abort.
			o.logger.Debug("tier failed",
				zap.Int("page", in.Number), zap.String("tier", string(tier.Name())), zap.Error(err))
			continue
		}
		if rec == nil {
			o.logger.Debug("tier produced nothing",
				zap.Int("page", in.Number), zap.String("tier", string(tier.Name())))
			continue
		}

		strict := tier.Name() == models.MethodVisionLLM
		if !o.validated(rec, strict) {
			o.logger.Debug("tier record failed validation",
				zap.Int("page", in.Number), zap.String("tier", string(tier.Name())), zap.Bool("strict", strict))
			continue
		}

		o.postCorrect(rec, in.Text)
		o.learn(rec, true)

		o.logger.Info("page extracted",
			zap.Int("page", in.Number),
			zap.String("tier", string(tier.Name())),
			zap.String("invoice_number", rec.InvoiceNumber),
			zap.Float64("confidence", rec.Confidence))

		return models.Page{
			PageNumber:    in.Number,
			VendorName:    rec.VendorName,
			InvoiceNumber: rec.InvoiceNumber,
			Date:          rec.Date,
			TotalAmount:   rec.TotalAmount,
			LineItems:     rec.LineItems,
			Method:        rec.Method,
			Confidence:    rec.Confidence,
			Validated:     true,
		}
	}

	// All tiers exhausted. Triage, not an error.
	o.logger.Info("page needs manual review", zap.Int("page", in.Number))
	if in.Text != "" {
		if v := o.registry.DetectVendor(in.Text, "", in.Text); v != nil {
			if err := o.registry.LearnFromInvoice(v.ID, false); err != nil {
				o.logger.Warn("registry feedback failed", zap.Error(err))
			}
		}
	}
	return models.Page{PageNumber: in.Number, Method: models.MethodNone}
}

// validated counts well-typed required fields. Relaxed acceptance needs three
// of four; the vision tier has nothing left to escalate to and needs all four.
func (o *Orchestrator) validated(rec *models.ExtractionRecord, strict bool) bool {
	present := 0
	if rec.VendorName != "" {
		present++
	}
	if rec.InvoiceNumber != "" {
		present++
	}
	if !rec.ParsedDate().IsZero() {
		present++
	}
	if rec.TotalAmount.IsPositive() {
		present++
	}
	if strict {
		return present == 4
	}
	return present >= 3
}

// postCorrect re-validates vendor identity and invoice number against the
// accepted record. A downstream tier can return a plausible but
// vendor-inconsistent value; the registry is authoritative.
func (o *Orchestrator) postCorrect(rec *models.ExtractionRecord, text string) {
	v := o.registry.DetectVendor(rec.VendorName, rec.InvoiceNumber, text)
	if v == nil {
		return
	}

	if rec.VendorName != v.Name {
		o.logger.Debug("vendor name corrected",
			zap.String("from", rec.VendorName), zap.String("to", v.Name))
		rec.VendorName = v.Name
	}

	if rec.InvoiceNumber != "" {
		if valid, reason := o.registry.ValidateInvoiceNumber(rec.InvoiceNumber, v); !valid {
			o.logger.Debug("accepted invoice number fails vendor rules",
				zap.String("number", rec.InvoiceNumber), zap.String("reason", reason))
			rec.InvoiceNumber = o.relocateInvoiceNumber(text, v)
		}
	}
}

// relocateInvoiceNumber makes a bounded attempt to find a valid number near
// the vendor's known label before giving up with an empty number.
func (o *Orchestrator) relocateInvoiceNumber(text string, v *vendor.Pattern) string {
	if text == "" || v.InvoiceNumberLabel == "" {
		return ""
	}
	labelRe, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(v.InvoiceNumberLabel))
	if err != nil {
		return ""
	}
	loc := labelRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}

	window := text[loc[1]:]
	if len(window) > relocationWindow {
		window = window[:relocationWindow]
	}
	for _, candidate := range digitRunRe.FindAllString(window, -1) {
		if valid, _ := o.registry.ValidateInvoiceNumber(candidate, v); valid {
			o.logger.Debug("invoice number relocated", zap.String("number", candidate))
			return candidate
		}
	}
	return ""
}

// relocationWindow bounds the search after the label so a number from an
// unrelated part of the page cannot be picked up.
const relocationWindow = 120

var digitRunRe = regexp.MustCompile(`\d{4,}`)

func (o *Orchestrator) learn(rec *models.ExtractionRecord, success bool) {
	v := o.registry.DetectVendor(rec.VendorName, rec.InvoiceNumber, "")
	if v == nil {
		return
	}
	if err := o.registry.LearnFromInvoice(v.ID, success); err != nil {
		o.logger.Warn("registry feedback failed", zap.Error(err))
	}
}
