package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

func TestNormalize(t *testing.T) {
	in := "Facture\tN° 12  \r\n\r\n\r\n\r\n-----\nTotal   TTC 1 200,00 €\r\n"
	assert.Equal(t, "Facture N° 12\n\nTotal TTC 1 200,00 €", Normalize(in))
	assert.Equal(t, "", Normalize(""))
	// dates and leading zeros are untouched
	assert.Equal(t, "Date 05/03/2024", Normalize("Date 05/03/2024"))
}

func TestNormalizeDocument(t *testing.T) {
	doc := NormalizeDocument(extraction.RawDocument{
		Text:   "a  b\r\n",
		Blocks: []extraction.Block{{Lines: []string{"  ", "x\ty"}}, {Lines: []string{""}}},
	})
	assert.Equal(t, "a b", doc.Text)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, []string{"x y"}, doc.Blocks[0].Lines)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestTextProvider(t *testing.T) {
	ctx := context.Background()

	path := writeFile(t, "a.txt", []byte("\xef\xbb\xbfNet à payer 10,00 €"))
	res, err := NewTextProvider().Recognize(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Net à payer 10,00 €", res.Document.Text)
	assert.Equal(t, "text", res.Method)

	// Windows-1252: "à" = 0xE0, "€" = 0x80
	path = writeFile(t, "b.txt", []byte("Net \xe0 payer 10,00 \x80"))
	res, err = NewTextProvider().Recognize(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Net à payer 10,00 €", res.Document.Text)

	_, err = NewTextProvider().Recognize(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type fakeRunner struct {
	name   string
	args   []string
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	if f.err != nil {
		return nil, []byte("boom"), f.err
	}
	return []byte(f.stdout), nil, nil
}

func TestTesseractProvider(t *testing.T) {
	r := &fakeRunner{stdout: "Facture N° 12\n"}
	p := &TesseractProvider{Binary: "tesseract", Lang: "fra", runner: r}
	res, err := p.Recognize(context.Background(), "/in/a.png")
	require.NoError(t, err)
	assert.Equal(t, "tesseract", r.name)
	assert.Equal(t, []string{"/in/a.png", "stdout", "-l", "fra"}, r.args)
	assert.Equal(t, "Facture N° 12\n", res.Document.Text)

	r.err = errors.New("exit status 1")
	res, err = p.Recognize(context.Background(), "/in/a.png")
	assert.Error(t, err)
	assert.Equal(t, []string{"boom"}, res.Warnings)
}

func TestPDFTextProviderSplitsPages(t *testing.T) {
	r := &fakeRunner{stdout: "Page un\nTotal 1,00\n\fPage deux\n\f"}
	p := &PDFTextProvider{Binary: "pdftotext", runner: r}
	res, err := p.Recognize(context.Background(), "/in/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", r.name)
	require.Len(t, res.Document.Blocks, 2)
	assert.Equal(t, []string{"Page un", "Total 1,00"}, res.Document.Blocks[0].Lines)
	assert.Contains(t, res.Document.Text, "Page deux")
}

type fakeRecognizer struct {
	got    []byte
	lang   computervision.OcrLanguages
	result computervision.OcrResult
}

func (f *fakeRecognizer) RecognizePrintedTextInStream(_ context.Context, _ bool, img io.ReadCloser,
	lang computervision.OcrLanguages) (computervision.OcrResult, error) {
	defer img.Close()
	b, err := io.ReadAll(img)
	if err != nil {
		return computervision.OcrResult{}, err
	}
	f.got, f.lang = b, lang
	return f.result, nil
}

func strp(s string) *string { return &s }

func ocrLine(words ...string) computervision.OcrLine {
	ws := make([]computervision.OcrWord, 0, len(words))
	for _, w := range words {
		ws = append(ws, computervision.OcrWord{Text: strp(w)})
	}
	return computervision.OcrLine{Words: &ws}
}

func writePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.Black)
	}
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestAzureProvider(t *testing.T) {
	header := []computervision.OcrLine{ocrLine("Garage", "Martin"), ocrLine("Facture", "N°", "FA-00912")}
	body := []computervision.OcrLine{ocrLine("Total", "TTC", "89,90", "€"), ocrLine()}
	regions := []computervision.OcrRegion{{Lines: &header}, {Lines: &body}}
	fake := &fakeRecognizer{result: computervision.OcrResult{Language: strp("fr"), Regions: &regions}}

	p := newAzureProvider(fake, "fr", nil)
	res, err := p.Recognize(context.Background(), writePNG(t))
	require.NoError(t, err)

	// JPEG SOI marker
	require.GreaterOrEqual(t, len(fake.got), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, fake.got[:2])
	assert.Equal(t, computervision.Fr, fake.lang)

	assert.Equal(t, "azure-read", res.Method)
	require.Len(t, res.Document.Blocks, 2)
	assert.Equal(t, []string{"Garage Martin", "Facture N° FA-00912"}, res.Document.Blocks[0].Lines)
	assert.Equal(t, []string{"Total TTC 89,90 €"}, res.Document.Blocks[1].Lines)
	assert.Equal(t, "Garage Martin\nFacture N° FA-00912\nTotal TTC 89,90 €\n", res.Document.Text)
}

func TestAzureProviderRejectsUnreadableImage(t *testing.T) {
	p := newAzureProvider(&fakeRecognizer{}, "fr", nil)
	_, err := p.Recognize(context.Background(), writeFile(t, "bad.png", []byte("not an image")))
	assert.Error(t, err)
}

func TestExtractorRouting(t *testing.T) {
	ctx := context.Background()
	e := NewExtractor(Config{}, nil)
	assert.True(t, e.Supports(".txt"))
	assert.False(t, e.Supports(".png"))

	res, err := e.Recognize(ctx, writeFile(t, "a.txt", []byte("Total  TTC\t12,00\r\n")))
	require.NoError(t, err)
	assert.Equal(t, "Total TTC 12,00", res.Document.Text)

	_, err = e.Recognize(ctx, "/in/a.png")
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = e.Recognize(ctx, "/in/a.docx")
	assert.Error(t, err)

	e.WithProvider(constants.IMAGE, &TesseractProvider{Binary: "tesseract", Lang: "fra", runner: &fakeRunner{stdout: "ok"}})
	res, err = e.Recognize(ctx, "/in/a.PNG")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Document.Text)
}
