package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const invoiceText = `Quincaillerie Durand SARL
12 rue des Lilas, 75011 Paris
SIRET 123 456 789 00012
Facture N° FACT-2024-0012
Date : 15/03/2024
Vis inox 3 10,00 30,00
Chevilles 2 35,00 70,00
TVA 20% 20,00
Total TTC 120,00 €
`

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string) (ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return ocr.Result{}, f.err
	}
	return ocr.Result{Document: extraction.RawDocument{Text: f.text}, Method: "fake"}, nil
}

func newTestProcessor(t *testing.T, rec Recognizer) (*Processor, repository.ScanRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.SQLite, DSN: filepath.Join(t.TempDir(), "p.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	scans := repository.NewScanRepository(db, nil)
	stage, err := NewExtractStage(nil, extraction.NewEngine(extraction.DefaultPolicy()), 16)
	require.NoError(t, err)
	return NewProcessor(nil, scans, NewTextStage(nil, rec), stage), scans
}

func ptr(s string) *string { return &s }

func TestProcessScanStoredTranscript(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecognizer{}
	p, scans := newTestProcessor(t, rec)

	s, err := scans.Create(ctx, repository.CreateScanRequest{FileExt: "txt", RawText: ptr(invoiceText)})
	require.NoError(t, err)

	got, err := p.ProcessScan(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.calls)
	assert.Equal(t, constants.ScanStatusCompleted, got.Status)
	require.NotNil(t, got.OverallConfidence)
	assert.InDelta(t, 0.85, *got.OverallConfidence, 1e-9)
	require.NotNil(t, got.FinishedAt)

	var inv map[string]any
	require.NoError(t, json.Unmarshal(got.ExtractedData, &inv))
	assert.Equal(t, "FACT-2024-0012", inv["invoice_number"])
	assert.Equal(t, "2024-03-15", inv["invoice_date"])
	assert.Equal(t, "100.00", inv["subtotal_ht"])
	assert.NoError(t, extraction.ValidateJSON(got.ExtractedData))
}

func TestProcessScanRunsOCR(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecognizer{text: "Bonjour\nMerci"}
	p, scans := newTestProcessor(t, rec)

	s, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/scan.png", FileExt: "png"})
	require.NoError(t, err)

	got, err := p.ProcessScan(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, constants.ScanStatusNeedsReview, got.Status)
	require.NotNil(t, got.RawText)
	assert.Equal(t, "Bonjour\nMerci", *got.RawText)
}

func TestProcessScanEmptyTextFails(t *testing.T) {
	ctx := context.Background()
	p, scans := newTestProcessor(t, &fakeRecognizer{text: "  \n\t"})

	s, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/blank.png", FileExt: "png"})
	require.NoError(t, err)

	_, err = p.ProcessScan(ctx, s.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, extraction.ErrEmptyInput))

	got, err := scans.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusFailed, got.Status)
	assert.Nil(t, got.OverallConfidence)
	assert.JSONEq(t, `{"error":"no text extracted from document"}`, string(got.ExtractedData))
}

func TestProcessScanOCRErrorFails(t *testing.T) {
	ctx := context.Background()
	p, scans := newTestProcessor(t, &fakeRecognizer{err: errors.New("vision quota exceeded")})

	s, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/a.jpg", FileExt: "jpg"})
	require.NoError(t, err)

	_, err = p.ProcessScan(ctx, s.ID)
	require.Error(t, err)

	got, err := scans.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "vision quota exceeded")
}

func TestProcessScanNoSource(t *testing.T) {
	ctx := context.Background()
	p, scans := newTestProcessor(t, nil)

	s, err := scans.Create(ctx, repository.CreateScanRequest{FileExt: "txt"})
	require.NoError(t, err)

	_, err = p.ProcessScan(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestProcessScanMissing(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	_, err := p.ProcessScan(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReprocessReplacesResult(t *testing.T) {
	ctx := context.Background()
	p, scans := newTestProcessor(t, nil)

	s, err := scans.Create(ctx, repository.CreateScanRequest{FileExt: "txt", RawText: ptr("Bonjour")})
	require.NoError(t, err)
	first, err := p.ProcessScan(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusNeedsReview, first.Status)

	second, err := p.Reprocess(ctx, s.ID, invoiceText)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusCompleted, second.Status)
	require.NotNil(t, second.RawText)
	assert.Equal(t, invoiceText, *second.RawText)
}

func TestExtractStageCache(t *testing.T) {
	stage, err := NewExtractStage(nil, extraction.NewEngine(extraction.DefaultPolicy()), 4)
	require.NoError(t, err)

	a, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	b, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	assert.NotSame(t, a.Invoice, b.Invoice)
	assert.Equal(t, a, b)
	assert.Equal(t, extraction.OutcomeCompleted, b.Outcome)

	_, err = stage.Run(extraction.RawDocument{Text: " "})
	assert.ErrorIs(t, err, extraction.ErrEmptyInput)
}

func TestExtractStageCacheIsolatesCallers(t *testing.T) {
	stage, err := NewExtractStage(nil, extraction.NewEngine(extraction.DefaultPolicy()), 4)
	require.NoError(t, err)

	a, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	want, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	require.NotNil(t, a.Invoice.InvoiceNumber)
	require.NotEmpty(t, a.Invoice.LineItems)

	*a.Invoice.InvoiceNumber = "TAMPERED"
	a.Invoice.LineItems[0].Description = "tampered"
	a.Invoice.LineItems = append(a.Invoice.LineItems, extraction.LineItem{Description: "extra"})
	want.Invoice.SupplierName = nil
	a.JSON[0] = 'x'

	got, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	assert.Equal(t, "FACT-2024-0012", *got.Invoice.InvoiceNumber)
	assert.NotEqual(t, "tampered", got.Invoice.LineItems[0].Description)
	assert.Len(t, got.Invoice.LineItems, len(a.Invoice.LineItems)-1)
	assert.NotNil(t, got.Invoice.SupplierName)
	assert.NoError(t, extraction.ValidateJSON(got.JSON))
}

func TestExtractStageWithoutCache(t *testing.T) {
	stage, err := NewExtractStage(nil, extraction.NewEngine(extraction.DefaultPolicy()), 0)
	require.NoError(t, err)

	a, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	b, err := stage.Run(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	assert.NotSame(t, a.Invoice, b.Invoice)
	assert.JSONEq(t, string(a.JSON), string(b.JSON))
}

func TestExtractFile(t *testing.T) {
	p, _ := newTestProcessor(t, &fakeRecognizer{text: invoiceText})
	res, err := p.ExtractFile(context.Background(), "/in/a.png")
	require.NoError(t, err)
	require.True(t, res.Invoice.TotalTTC.Valid)
	assert.Equal(t, "120", res.Invoice.TotalTTC.Decimal.String())
}

func TestSubmitReturnsFailedScan(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProcessor(t, nil)

	got, err := p.Submit(ctx, repository.CreateScanRequest{FileExt: "txt", RawText: ptr("   ")})
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusFailed, got.Status)

	got, err = p.Submit(ctx, repository.CreateScanRequest{FileExt: "txt", RawText: ptr(invoiceText)})
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusCompleted, got.Status)
}

func TestSettlePassesThroughOtherErrors(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	boom := errors.New("boom")
	_, err := p.Settle(context.Background(), uuid.New(), nil, boom)
	assert.ErrorIs(t, err, boom)
}
