package ocr

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

// TextProvider reads transcripts produced by an earlier OCR pass. Files that
// are not valid UTF-8 are decoded as Windows-1252, the usual fallback for
// French exports.
type TextProvider struct{}

func NewTextProvider() *TextProvider { return &TextProvider{} }

func (TextProvider) Recognize(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read transcript: %w", err)
	}
	text, err := decodeText(b)
	if err != nil {
		return Result{}, fmt.Errorf("decode transcript %s: %w", path, err)
	}
	return Result{Document: extraction.RawDocument{Text: text}, Method: "text"}, nil
}

func decodeText(b []byte) (string, error) {
	b = bytesTrimBOM(b)
	if utf8.Valid(b) {
		return string(b), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func bytesTrimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
