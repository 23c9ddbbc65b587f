package export

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const invoiceText = `Quincaillerie Durand SARL
Facture N° FACT-2024-0012
Date : 15/03/2024
Vis inox 3 10,00 30,00
Chevilles 2 35,00 70,00
TVA 20% 20,00
Total TTC 120,00 €
`

func seed(t *testing.T) repository.ScanRepository {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.SQLite, DSN: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	scans := repository.NewScanRepository(db, nil)

	inv, err := extraction.NewEngine(extraction.DefaultPolicy()).Extract(extraction.RawDocument{Text: invoiceText})
	require.NoError(t, err)
	data, err := json.Marshal(inv)
	require.NoError(t, err)

	ok, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/durand.txt", FileExt: "txt"})
	require.NoError(t, err)
	require.NoError(t, scans.FinishExtraction(ctx, ok.ID, repository.ExtractionOutcome{
		RawText:       invoiceText,
		ExtractedData: data,
		Overall:       inv.ConfidenceScores.Overall,
		Status:        constants.ScanStatusCompleted,
	}))

	bad, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/blank.png", FileExt: "png"})
	require.NoError(t, err)
	require.NoError(t, scans.FinishFailure(ctx, bad.ID, "no text extracted from document"))
	return scans
}

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExportInvoicesXLSX(t *testing.T) {
	svc := NewService(seed(t), nil)
	b, err := svc.ExportInvoicesXLSX(context.Background(), "")
	require.NoError(t, err)

	f := open(t, b)
	assert.Equal(t, []string{"Invoices", "LineItems"}, f.GetSheetList())

	rows, err := f.GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Invoice Number", rows[0][3])

	byStatus := map[string][]string{}
	for _, r := range rows[1:] {
		byStatus[r[1]] = r
	}
	done := byStatus["completed"]
	require.NotNil(t, done)
	assert.Equal(t, "FACT-2024-0012", done[3])
	assert.Equal(t, "2024-03-15", done[4])
	assert.Equal(t, "Quincaillerie Durand SARL", done[5])
	assert.Equal(t, "100", done[8])
	assert.Equal(t, "120", done[10])

	failed := byStatus["failed"]
	require.NotNil(t, failed)
	assert.Equal(t, "no text extracted from document", failed[len(failed)-1])

	items, err := f.GetRows("LineItems")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Vis inox", items[1][2])
	assert.Equal(t, "30", items[1][5])
	assert.Equal(t, "20", items[1][6])
}

func TestExportFiltersByStatus(t *testing.T) {
	svc := NewService(seed(t), nil)
	b, err := svc.ExportInvoicesXLSX(context.Background(), constants.ScanStatusFailed)
	require.NoError(t, err)

	rows, err := open(t, b).GetRows("Invoices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "failed", rows[1][1])

	items, err := open(t, b).GetRows("LineItems")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))

	got := truncate("échec: reçu illisible", 3)
	assert.Equal(t, "éc…", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "é", truncate("été", 1))
}

func TestExportTruncatesAccentedErrors(t *testing.T) {
	ctx := context.Background()
	scans := seed(t)
	s, err := scans.Create(ctx, repository.CreateScanRequest{SourcePath: "/in/scan.pdf", FileExt: "pdf"})
	require.NoError(t, err)
	msg := strings.Repeat("é", 200)
	require.NoError(t, scans.FinishFailure(ctx, s.ID, msg))

	b, err := NewService(scans, nil).ExportInvoicesXLSX(ctx, constants.ScanStatusFailed)
	require.NoError(t, err)
	rows, err := open(t, b).GetRows("Invoices")
	require.NoError(t, err)

	var cell string
	for _, r := range rows[1:] {
		if r[0] == s.ID.String() {
			cell = r[len(r)-1]
		}
	}
	assert.True(t, utf8.ValidString(cell))
	assert.Equal(t, 140, utf8.RuneCountInString(cell))
	assert.True(t, strings.HasSuffix(cell, "…"))
}
