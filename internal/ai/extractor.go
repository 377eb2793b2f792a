package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iexcalibur/invoice-extractor/internal/models"
	"github.com/iexcalibur/invoice-extractor/internal/vendor"
)

// Extractor turns corrected OCR text or a page image into an ExtractionRecord
// via a chat model. When the registry recognizes the vendor, its instructions
// are inlined into the prompt so the model honors the vendor's invoice-number
// rules and column semantics.
type Extractor struct {
	provider Provider
	registry *vendor.Registry
	logger   *zap.Logger
}

// NewExtractor creates an LLM extractor on top of a provider.
func NewExtractor(provider Provider, registry *vendor.Registry, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, registry: registry, logger: logger}
}

// ExtractText runs text-mode extraction. layoutHints may be empty.
func (e *Extractor) ExtractText(ctx context.Context, ocrText, layoutHints string) (*models.ExtractionRecord, error) {
	prompt := BuildPrompt(ocrText, e.vendorInstructions(ocrText), layoutHints)

	response, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai extraction: %w", err)
	}
	e.logger.Debug("ai response received",
		zap.String("provider", e.provider.Name()), zap.Int("length", len(response)))

	rec, err := ParseRecord(response)
	if err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}
	rec.Method = models.MethodOCRLLM
	return rec, nil
}

// ExtractVision runs image-mode extraction for pages whose OCR text was too
// poor to use. ocrText, when present, is only used to look up the vendor.
func (e *Extractor) ExtractVision(ctx context.Context, imagePNG []byte, ocrText string) (*models.ExtractionRecord, error) {
	prompt := BuildVisionPrompt(e.vendorInstructions(ocrText))

	response, err := e.provider.CompleteVision(ctx, prompt, imagePNG)
	if err != nil {
		return nil, fmt.Errorf("ai vision extraction: %w", err)
	}
	e.logger.Debug("ai vision response received",
		zap.String("provider", e.provider.Name()), zap.Int("length", len(response)))

	rec, err := ParseRecord(response)
	if err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}
	rec.Method = models.MethodVisionLLM
	return rec, nil
}

func (e *Extractor) vendorInstructions(text string) string {
	if e.registry == nil || text == "" {
		return ""
	}
	v := e.registry.DetectVendor(text, "", text)
	if v == nil {
		return ""
	}
	return e.registry.ExtractionInstructions(v)
}
