package pipeline

import (
	"context"
	"errors"
	"os"

	"github.com/iexcalibur/invoice-extractor/internal/ai"
	"github.com/iexcalibur/invoice-extractor/internal/extract"
	"github.com/iexcalibur/invoice-extractor/internal/layout"
	"github.com/iexcalibur/invoice-extractor/internal/models"
)

var (
	// ErrNoText marks a tier that needs usable OCR text when the page has none.
	ErrNoText = errors.New("no usable ocr text")

	// ErrLowConfidence marks a record scored below the tier's threshold.
	ErrLowConfidence = errors.New("extraction confidence below threshold")

	// ErrNoHints marks the layout tier when the layout service produced nothing.
	ErrNoHints = errors.New("no layout hints available")
)

// PageInput carries everything a tier may need for one page.
type PageInput struct {
	Number    int
	ImagePath string
	RawText   string // raw OCR output
	Text      string // corrected OCR text, empty when OCR output was unusable
}

// Tier is one extraction strategy in the fallback chain. Extract returns
// (nil, err) or (nil, nil) on tier failure; a non-nil record always carries a
// confidence and the tier's method tag.
type Tier interface {
	Name() models.ExtractionMethod
	Extract(ctx context.Context, in *PageInput) (*models.ExtractionRecord, error)
}

// patternTier wraps the regex extractor. The extractor applies its own
// acceptance threshold and returns nil below it.
type patternTier struct {
	ex *extract.Extractor
}

func (t *patternTier) Name() models.ExtractionMethod { return models.MethodPattern }

func (t *patternTier) Extract(_ context.Context, in *PageInput) (*models.ExtractionRecord, error) {
	if in.Text == "" {
		return nil, ErrNoText
	}
	rec := t.ex.Extract(in.Text)
	if rec == nil {
		return nil, nil
	}
	return rec, nil
}

// layoutTier enriches the LLM prompt with layout-service hints and accepts at
// a lower confidence bar than the pattern tier.
type layoutTier struct {
	client    *layout.Client
	ex        *ai.Extractor
	threshold float64
}

func (t *layoutTier) Name() models.ExtractionMethod { return models.MethodLayoutModel }

func (t *layoutTier) Extract(ctx context.Context, in *PageInput) (*models.ExtractionRecord, error) {
	if in.Text == "" {
		return nil, ErrNoText
	}
	image, err := os.ReadFile(in.ImagePath)
	if err != nil {
		return nil, err
	}
	hints := t.client.Hints(ctx, image)
	if hints == "" {
		return nil, ErrNoHints
	}

	rec, err := t.ex.ExtractText(ctx, in.Text, hints)
	if err != nil {
		return nil, err
	}
	rec.Method = models.MethodLayoutModel
	rec.Confidence = extract.Score(rec).Total()
	if rec.Confidence < t.threshold {
		return nil, ErrLowConfidence
	}
	return rec, nil
}

// ocrLLMTier sends corrected OCR text to the LLM with no layout hints.
// Acceptance is decided by field validation alone.
type ocrLLMTier struct {
	ex *ai.Extractor
}

func (t *ocrLLMTier) Name() models.ExtractionMethod { return models.MethodOCRLLM }

func (t *ocrLLMTier) Extract(ctx context.Context, in *PageInput) (*models.ExtractionRecord, error) {
	if in.Text == "" {
		return nil, ErrNoText
	}
	rec, err := t.ex.ExtractText(ctx, in.Text, "")
	if err != nil {
		return nil, err
	}
	rec.Confidence = extract.Score(rec).Total()
	return rec, nil
}

// visionTier sends the page image itself. Last resort; the orchestrator holds
// it to strict validation.
type visionTier struct {
	ex *ai.Extractor
}

func (t *visionTier) Name() models.ExtractionMethod { return models.MethodVisionLLM }

func (t *visionTier) Extract(ctx context.Context, in *PageInput) (*models.ExtractionRecord, error) {
	image, err := os.ReadFile(in.ImagePath)
	if err != nil {
		return nil, err
	}
	rec, err := t.ex.ExtractVision(ctx, image, in.Text)
	if err != nil {
		return nil, err
	}
	rec.Confidence = extract.Score(rec).Total()
	return rec, nil
}
