// Package pipeline is the caller around the extraction engine: it resolves a
// transcript, extracts, validates and persists the outcome of a scan.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const failureWriteTimeout = 10 * time.Second

// Processor coordinates the text stage then the extract stage for a scan.
type Processor struct {
	Logger  *slog.Logger
	Scans   repository.ScanRepository
	Text    *TextStage
	Extract *ExtractStage
}

func NewProcessor(logger *slog.Logger, scans repository.ScanRepository, text *TextStage, extract *ExtractStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Scans: scans, Text: text, Extract: extract}
}

// ProcessScan runs the whole pipeline for one stored scan and returns the
// scan as persisted afterwards. Any failure after the scan is loaded marks
// it failed before the error is returned.
func (p *Processor) ProcessScan(ctx context.Context, id uuid.UUID) (*entity.Scan, error) {
	ctx = common.WithScanID(ctx, id.String())
	scan, err := p.Scans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Scans.MarkRunning(ctx, id); err != nil {
		return nil, err
	}

	doc, err := p.Text.Run(ctx, scan)
	if err != nil {
		return nil, p.fail(ctx, id, "text", err)
	}
	return p.finish(ctx, id, doc)
}

// Reprocess replaces the result of a scan with an extraction of a new
// transcript, e.g. after a better OCR pass.
func (p *Processor) Reprocess(ctx context.Context, id uuid.UUID, text string) (*entity.Scan, error) {
	if _, err := p.Scans.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := p.Scans.MarkRunning(ctx, id); err != nil {
		return nil, err
	}
	ctx = common.WithScanID(ctx, id.String())
	common.LoggerFrom(ctx, p.Logger).Info("processor.reprocess", "chars", len(text))
	return p.finish(ctx, id, extraction.RawDocument{Text: text})
}

// Submit registers a scan and processes it synchronously. See Settle for
// how failures are reported.
func (p *Processor) Submit(ctx context.Context, req repository.CreateScanRequest) (*entity.Scan, error) {
	scan, err := p.Scans.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	done, err := p.ProcessScan(ctx, scan.ID)
	return p.Settle(ctx, scan.ID, done, err)
}

// Settle turns the result of ProcessScan or Reprocess into what an API
// returns: a scan that was marked failed is a result, not an error. Errors
// that left the scan in another state are returned as is.
func (p *Processor) Settle(ctx context.Context, id uuid.UUID, scan *entity.Scan, err error) (*entity.Scan, error) {
	if err == nil {
		return scan, nil
	}
	got, gerr := p.Scans.GetByID(context.WithoutCancel(ctx), id)
	if gerr != nil || got.Status != constants.ScanStatusFailed {
		return nil, err
	}
	return got, nil
}

// ExtractDocument extracts without touching storage.
func (p *Processor) ExtractDocument(doc extraction.RawDocument) (Result, error) {
	return p.Extract.Run(doc)
}

// ExtractFile OCRs a file and extracts it without touching storage.
func (p *Processor) ExtractFile(ctx context.Context, path string) (Result, error) {
	doc, err := p.Text.Run(ctx, &entity.Scan{SourcePath: path})
	if err != nil {
		return Result{}, err
	}
	return p.Extract.Run(doc)
}

func (p *Processor) finish(ctx context.Context, id uuid.UUID, doc extraction.RawDocument) (*entity.Scan, error) {
	res, err := p.Extract.Run(doc)
	if err != nil {
		return nil, p.fail(ctx, id, "extract", err)
	}

	status := statusFor(res.Outcome)
	overall := res.Invoice.ConfidenceScores.Overall
	err = p.Scans.FinishExtraction(ctx, id, repository.ExtractionOutcome{
		RawText:       res.Invoice.RawText,
		ExtractedData: res.JSON,
		Overall:       overall,
		Status:        status,
	})
	if err != nil {
		return nil, p.fail(ctx, id, "persist", err)
	}
	metrics.RecordExtraction(string(status), overall)
	common.LoggerFrom(ctx, p.Logger).Info("processor.extract.ok", "status", status, "overall", overall)

	return p.Scans.GetByID(ctx, id)
}

// fail records err on the scan and returns it. The write uses a context
// detached from ctx so a cancelled request still leaves a terminal status.
func (p *Processor) fail(ctx context.Context, id uuid.UUID, stage string, cause error) error {
	msg := cause.Error()
	if errors.Is(cause, extraction.ErrEmptyInput) {
		msg = "no text extracted from document"
	}
	log := common.LoggerFrom(ctx, p.Logger)
	log.Error("processor.failed", "stage", stage, "err", cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := p.Scans.FinishFailure(wctx, id, msg); err != nil {
		log.Error("processor.mark_failed.failed", "err", err)
		return fmt.Errorf("%s: %w (marking failed: %v)", stage, cause, err)
	}
	metrics.RecordExtraction(string(constants.ScanStatusFailed), 0)
	return fmt.Errorf("%s: %w", stage, cause)
}

func statusFor(o extraction.Outcome) constants.ScanStatus {
	if o == extraction.OutcomeCompleted {
		return constants.ScanStatusCompleted
	}
	return constants.ScanStatusNeedsReview
}
