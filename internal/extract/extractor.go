// Package extract is the pattern tier: deterministic, regex-driven field
// extraction for vendors whose invoice layout is known. It is the cheapest
// tier in the chain and the only one that needs no network at all.
package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

// Extractor extracts invoice fields from corrected OCR text using per-vendor
// pattern profiles. Vendor identity and invoice-number validity are delegated
// to the registry so the rules live in one place.
type Extractor struct {
	registry  *vendor.Registry
	logger    *zap.Logger
	threshold float64
}

// NewExtractor returns an extractor that rejects results scoring below
// threshold. A non-positive threshold falls back to 0.60.
func NewExtractor(registry *vendor.Registry, logger *zap.Logger, threshold float64) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = 0.60
	}
	return &Extractor{registry: registry, logger: logger, threshold: threshold}
}

// Extract runs pattern extraction over already-corrected OCR text. It returns
// nil when the vendor is unknown, has no pattern profile, or the extraction
// scores below the acceptance threshold; the caller then escalates to the
// next tier.
//
// The full text doubles as the vendor name hint: at this stage no structured
// hint exists yet, and a name pattern firing anywhere in the text is exactly
// the signal the hint would carry.
func (e *Extractor) Extract(text string) *models.ExtractionRecord {
	if text == "" {
		return nil
	}

	v := e.registry.DetectVendor(text, "", text)
	if v == nil {
		e.logger.Debug("pattern tier: no vendor detected")
		return nil
	}
	prof, ok := profiles[v.ID]
	if !ok {
		e.logger.Debug("pattern tier: vendor has no pattern profile", zap.String("vendor", v.ID))
		return nil
	}

	rec := &models.ExtractionRecord{
		VendorName: v.Name,
		Method:     models.MethodPattern,
	}

	for _, m := range prof.invoiceMatchers {
		sm := m.re.FindStringSubmatch(text)
		if sm == nil {
			continue
		}
		if valid, reason := e.registry.ValidateInvoiceNumber(sm[1], v); valid {
			rec.InvoiceNumber = sm[1]
			break
		} else {
			e.logger.Debug("pattern tier: invoice number candidate rejected",
				zap.String("matcher", m.name),
				zap.String("candidate", sm[1]),
				zap.String("reason", reason))
		}
	}

	for _, dm := range prof.dateMatchers {
		sm := dm.re.FindStringSubmatch(text)
		if sm == nil {
			continue
		}
		month := sm[1+dm.groupOffset]
		day := sm[2+dm.groupOffset]
		year := sm[3+dm.groupOffset]
		rec.Date = fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
		break
	}

	if s, found := prof.findTotal(text); found {
		if d, ok := parseMoney(s); ok {
			rec.TotalAmount = d
		}
	}

	rec.LineItems = e.lineItems(prof, text)
	prof.auxFields(text, rec)

	breakdown := Score(rec)
	rec.Confidence = breakdown.Total()

	e.logger.Debug("pattern tier result",
		zap.String("vendor", v.ID),
		zap.String("invoice_number", rec.InvoiceNumber),
		zap.Int("line_items", len(rec.LineItems)),
		zap.Float64("confidence", rec.Confidence))

	if rec.Confidence < e.threshold {
		return nil
	}
	return rec
}

// lineItems locates the vendor's table header, bounds the table region by the
// trailing marker (or the fixed window when none is present), and hands the
// region to the vendor's row parser.
func (e *Extractor) lineItems(prof *profile, text string) []models.LineItem {
	start := -1
	for _, h := range prof.headerRes {
		if loc := h.FindStringIndex(text); loc != nil {
			start = loc[1]
			break
		}
	}
	if start < 0 {
		return nil
	}

	region := text[start:]
	if loc := prof.tableEndRe.FindStringIndex(region); loc != nil {
		region = region[:loc[0]]
	} else if len(region) > tableWindow {
		region = region[:tableWindow]
	}
	return prof.parseItems(region)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
