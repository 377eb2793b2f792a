package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Config locates the external binaries and tunes recognition.
type Config struct {
	Tesseract string // binary name or absolute path; empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; empty -> "pdftoppm"

	Language string // tesseract language, default "eng"
	DPI      int    // rasterization DPI for PDFs, default 300
	PSM      int    // page segmentation mode, default 6 (uniform text block)

	// MinTextLength is the shortest recognized text considered usable.
	MinTextLength int
}

// Engine rasterizes documents into page images and recognizes text on them.
type Engine struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

// NewEngine creates an engine with defaults filled in.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 50
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// PreparePages turns a document into one PNG per page. PDFs are rasterized
// with pdftoppm into a temp directory; plain images pass through as a single
// page. The cleanup func removes any temp artifacts and is always non-nil.
func (e *Engine) PreparePages(ctx context.Context, path string) ([]string, func(), error) {
	noop := func() {}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return []string{path}, noop, nil
	}

	dir, err := os.MkdirTemp("", "invoice-pages-")
	if err != nil {
		return nil, noop, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	prefix := filepath.Join(dir, "page")
	_, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", fmt.Sprint(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(stderr), 512))
	}

	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(pages) == 0 {
		cleanup()
		return nil, noop, fmt.Errorf("no pages rasterized from %s", path)
	}
	sort.Strings(pages)

	e.logger.Debug("document rasterized", zap.String("path", path), zap.Int("pages", len(pages)))
	return pages, cleanup, nil
}

// Recognize runs tesseract over one page image and returns the raw text.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	stdout, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract,
		imagePath, "stdout",
		"-l", e.cfg.Language,
		"--psm", fmt.Sprint(e.cfg.PSM))
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(stderr), 512))
	}
	return string(stdout), nil
}

// Usable reports whether recognized text is long enough to extract from.
// Short output means the page was blank, skewed, or unreadable, and the text
// tiers should not run on it.
func (e *Engine) Usable(text string) bool {
	return len(strings.TrimSpace(text)) >= e.cfg.MinTextLength
}
