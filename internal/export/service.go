// Package export renders extracted invoices as spreadsheets.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const (
	invoicesSheet  = "Invoices"
	lineItemsSheet = "LineItems"
	pageSize       = 500
)

// Service is a tiny façade over the scan repository that produces XLSX bytes.
type Service struct {
	scans  repository.ScanRepository
	logger *slog.Logger
}

func NewService(scans repository.ScanRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{scans: scans, logger: logger}
}

// ExportInvoicesXLSX returns a workbook with one row per scan on the
// Invoices sheet and one row per accepted line item on the LineItems sheet.
// An empty status exports every scan.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, status constants.ScanStatus) ([]byte, error) {
	start := time.Now()

	var scans []*entity.Scan
	for offset := 0; ; offset += pageSize {
		page, err := s.scans.List(ctx, repository.ListScansFilter{Status: status, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("query scans: %w", err)
		}
		scans = append(scans, page...)
		if len(page) < pageSize {
			break
		}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", invoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(lineItemsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(invoicesSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, invoicesSheet, 1, []any{
		"Scan ID", "Status", "Source", "Invoice Number", "Invoice Date", "Supplier",
		"SIRET", "VAT Number", "Subtotal HT", "VAT", "Total TTC", "Overall Confidence", "Error",
	})
	writeRow(f, lineItemsSheet, 1, []any{
		"Scan ID", "Invoice Number", "Description", "Quantity", "Unit Price", "Line Total", "VAT Rate",
	})

	invRow, itemRow := 2, 2
	for _, sc := range scans {
		var inv extraction.ExtractedInvoice
		if sc.Status != constants.ScanStatusFailed && len(sc.ExtractedData) > 0 {
			if err := json.Unmarshal(sc.ExtractedData, &inv); err != nil {
				s.logger.Warn("export.decode.failed", "scan_id", sc.ID, "err", err)
			}
		}

		writeRow(f, invoicesSheet, invRow, []any{
			sc.ID.String(),
			string(sc.Status),
			sc.SourcePath,
			deref(inv.InvoiceNumber),
			deref(inv.InvoiceDate),
			deref(inv.SupplierName),
			deref(inv.SupplierSIRET),
			deref(inv.SupplierVATNumber),
			amount(inv.SubtotalHT),
			amount(inv.VATAmount),
			amount(inv.TotalTTC),
			confidence(sc.OverallConfidence),
			truncate(deref(sc.ErrorMessage), 140),
		})
		invRow++

		for _, it := range inv.LineItems {
			writeRow(f, lineItemsSheet, itemRow, []any{
				sc.ID.String(),
				deref(inv.InvoiceNumber),
				it.Description,
				it.Quantity.InexactFloat64(),
				it.UnitPrice.InexactFloat64(),
				it.LineTotal.InexactFloat64(),
				it.VATRate.InexactFloat64(),
			})
			itemRow++
		}
	}

	_ = f.SetColWidth(invoicesSheet, "A", "A", 38) // id
	_ = f.SetColWidth(invoicesSheet, "C", "C", 48) // path
	_ = f.SetColWidth(invoicesSheet, "D", "H", 22)
	_ = f.SetColWidth(invoicesSheet, "I", "L", 14) // amounts
	_ = f.SetColWidth(invoicesSheet, "M", "M", 48)
	_ = f.SetColWidth(lineItemsSheet, "A", "A", 38)
	_ = f.SetColWidth(lineItemsSheet, "C", "C", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"status", status,
		"rows", len(scans),
		"line_items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// amount leaves absent values as empty cells.
func amount(d decimal.NullDecimal) any {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

func confidence(c *float64) any {
	if c == nil {
		return ""
	}
	return *c
}

// truncate caps s at n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}
