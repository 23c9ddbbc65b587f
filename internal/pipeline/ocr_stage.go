package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// ErrNoSource means a scan carries neither a transcript nor a file to OCR.
var ErrNoSource = errors.New("scan has no transcript and no source file")

// Recognizer produces a transcript for a file on disk.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (ocr.Result, error)
}

// TextStage resolves the transcript of a scan: the stored raw text when the
// caller supplied one, otherwise an OCR pass over the source file.
type TextStage struct {
	Logger *slog.Logger
	OCR    Recognizer
	// Timeout bounds one OCR call; zero means no bound beyond ctx.
	Timeout time.Duration
}

func NewTextStage(logger *slog.Logger, rec Recognizer) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextStage{Logger: logger, OCR: rec}
}

// Run returns the document to extract from. A stored transcript wins even
// when empty, so an empty upload fails as empty input rather than silently
// falling back to OCR.
func (s *TextStage) Run(ctx context.Context, scan *entity.Scan) (extraction.RawDocument, error) {
	if scan.RawText != nil {
		s.Logger.Debug("textstage.stored", "scan_id", scan.ID, "chars", len(*scan.RawText))
		return extraction.RawDocument{Text: *scan.RawText}, nil
	}
	if scan.SourcePath == "" {
		return extraction.RawDocument{}, ErrNoSource
	}
	if s.OCR == nil {
		return extraction.RawDocument{}, fmt.Errorf("ocr %s: %w", scan.SourcePath, ocr.ErrNoProvider)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := s.OCR.Recognize(ctx, scan.SourcePath)
	metrics.RecordStageDuration("ocr", time.Since(start).Seconds())
	if err != nil {
		return extraction.RawDocument{}, fmt.Errorf("ocr %s: %w", scan.SourcePath, err)
	}
	s.Logger.Info("textstage.ocr.ok",
		"scan_id", scan.ID,
		"method", res.Method,
		"chars", len(res.Document.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res.Document, nil
}
