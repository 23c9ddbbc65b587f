package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// LoadPolicy reads the configured policy file and applies the review
// threshold override.
func LoadPolicy(cfg common.ExtractionConfig) (extraction.Policy, error) {
	p, err := extraction.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return p, err
	}
	if cfg.ReviewThreshold >= 0 {
		p.ReviewThreshold = cfg.ReviewThreshold
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("extraction policy: %w", err)
	}
	return p, nil
}

// Build assembles a Processor from configuration.
func Build(cfg *common.Config, scans repository.ScanRepository, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := LoadPolicy(cfg.Extraction)
	if err != nil {
		return nil, err
	}
	engine := extraction.NewEngine(policy,
		extraction.WithParallel(cfg.Extraction.Parallel),
		extraction.WithLogger(logger),
	)

	extractor := ocr.NewExtractor(ocr.Config{
		Language:      cfg.OCR.Language,
		AzureEndpoint: cfg.OCR.AzureEndpoint,
		AzureKey:      cfg.OCR.AzureKey,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		Pdftotext:     cfg.OCR.Pdftotext,
	}, logger)
	text := NewTextStage(logger, extractor)
	text.Timeout = cfg.OCR.Timeout

	stage, err := NewExtractStage(logger, engine, cfg.Extraction.CacheSize)
	if err != nil {
		return nil, err
	}
	logger.Info("pipeline.built",
		"review_threshold", policy.ReviewThreshold,
		"parallel", cfg.Extraction.Parallel,
		"cache_size", cfg.Extraction.CacheSize,
		"image_ocr", extractor.Supports("png"),
		"pdf_ocr", extractor.Supports("pdf"),
	)
	return NewProcessor(logger, scans, text, stage), nil
}
