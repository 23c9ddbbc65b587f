// Package ocr turns invoice files into transcripts for the extraction engine.
// It is the only place that touches OCR services or external binaries.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

// ErrNoProvider means the file format is known but no provider is configured
// for it (e.g. an image without Azure or tesseract).
var ErrNoProvider = errors.New("no ocr provider configured")

// Result is one transcript plus how it was produced.
type Result struct {
	Document extraction.RawDocument
	Method   string // "text" | "pdf-text" | "tesseract" | "azure-read"
	Language string
	Duration time.Duration
	Warnings []string
}

// Provider recognizes the text of one file.
type Provider interface {
	Recognize(ctx context.Context, path string) (Result, error)
}

// Config selects providers. Zero values disable the corresponding provider,
// except TEXT which is always available.
type Config struct {
	Language string // ISO code understood by the image provider, default "fr"

	AzureEndpoint string
	AzureKey      string

	Tesseract     string // binary name; empty disables tesseract
	TesseractLang string // default "fra"
	Pdftotext     string // binary name; empty disables PDF
}

// Extractor dispatches on file extension to the configured provider.
type Extractor struct {
	providers map[constants.SourceFormat]Provider
	logger    *slog.Logger
}

// NewExtractor wires the providers implied by cfg. Azure wins over tesseract
// for images when both are configured.
func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = "fr"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "fra"
	}
	e := &Extractor{
		providers: map[constants.SourceFormat]Provider{constants.TEXT: NewTextProvider()},
		logger:    logger,
	}
	runner := execRunner{logger: logger}
	switch {
	case cfg.AzureEndpoint != "":
		e.providers[constants.IMAGE] = NewAzureProvider(cfg.AzureEndpoint, cfg.AzureKey, cfg.Language, logger)
	case cfg.Tesseract != "":
		e.providers[constants.IMAGE] = &TesseractProvider{Binary: cfg.Tesseract, Lang: cfg.TesseractLang, runner: runner}
	}
	if cfg.Pdftotext != "" {
		e.providers[constants.PDF] = &PDFTextProvider{Binary: cfg.Pdftotext, runner: runner}
	}
	return e
}

// WithProvider overrides the provider for one format.
func (e *Extractor) WithProvider(format constants.SourceFormat, p Provider) *Extractor {
	e.providers[format] = p
	return e
}

// Supports reports whether a file with this extension can be recognized.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.providers[constants.MapExtToFormat(ext)]
	return ok
}

// Recognize picks a provider based on file extension and normalizes its text.
func (e *Extractor) Recognize(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	p, ok := e.providers[format]
	if !ok {
		return Result{}, fmt.Errorf("%w for %s files", ErrNoProvider, strings.ToLower(string(format)))
	}

	e.logger.Debug("ocr.start", "path", path, "format", format)
	res, err := p.Recognize(ctx, path)
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.failed", "path", path, "format", format, "error", err)
		return res, err
	}
	res.Document = NormalizeDocument(res.Document)
	e.logger.Debug("ocr.ok",
		"path", path,
		"method", res.Method,
		"chars", len(res.Document.Text),
		"blocks", len(res.Document.Blocks),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
