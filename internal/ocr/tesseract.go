package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

// TesseractProvider shells out to a local tesseract install for images.
type TesseractProvider struct {
	Binary string
	Lang   string
	runner Runner
}

func (p *TesseractProvider) Recognize(ctx context.Context, path string) (Result, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := p.runner.Run(ctx, p.Binary, path, "stdout", "-l", p.Lang)
	if err != nil {
		return Result{Method: "tesseract", Warnings: []string{string(errb)}}, fmt.Errorf("tesseract: %w", err)
	}
	return Result{
		Document: extraction.RawDocument{Text: string(out)},
		Method:   "tesseract",
		Language: p.Lang,
	}, nil
}

// PDFTextProvider reads the embedded text layer of a PDF with pdftotext.
// Scanned PDFs without a text layer come back empty and fail extraction.
type PDFTextProvider struct {
	Binary string
	runner Runner
}

func (p *PDFTextProvider) Recognize(ctx context.Context, path string) (Result, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.Binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Result{Method: "pdf-text", Warnings: []string{string(errb)}}, fmt.Errorf("pdftotext: %w", err)
	}
	// pages are separated by form feeds
	pages := strings.Split(string(out), "\f")
	doc := extraction.RawDocument{Text: strings.Join(pages, "\n")}
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, extraction.Block{Lines: strings.Split(strings.TrimRight(page, "\n"), "\n")})
	}
	return Result{Document: doc, Method: "pdf-text"}, nil
}
