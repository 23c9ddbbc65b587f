package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

// maxImageSide keeps uploads under the service's size limits.
const maxImageSide = 3200

// printedTextRecognizer is the slice of the Computer Vision client we use.
type printedTextRecognizer interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, imageParameter io.ReadCloser,
		language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// AzureProvider sends an enhanced copy of the image to Azure Computer Vision.
// Regions come back as blocks, lines as space-joined words.
type AzureProvider struct {
	client   printedTextRecognizer
	language string
	logger   *slog.Logger
}

func NewAzureProvider(endpoint, apiKey, language string, logger *slog.Logger) *AzureProvider {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return newAzureProvider(client, language, logger)
}

func newAzureProvider(client printedTextRecognizer, language string, logger *slog.Logger) *AzureProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureProvider{client: client, language: language, logger: logger}
}

func (p *AzureProvider) Recognize(ctx context.Context, path string) (Result, error) {
	img, err := enhanceForOCR(path)
	if err != nil {
		return Result{Method: "azure-read"}, err
	}

	res, err := p.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(bytes.NewReader(img)),
		computervision.OcrLanguages(p.language))
	if err != nil {
		return Result{Method: "azure-read"}, fmt.Errorf("azure ocr: %w", err)
	}

	doc := documentFromOCR(res)
	lang := p.language
	if res.Language != nil && *res.Language != "" {
		lang = *res.Language
	}
	p.logger.Debug("azure ocr done", "path", path, "blocks", len(doc.Blocks), "language", lang)
	return Result{Document: doc, Method: "azure-read", Language: lang}, nil
}

// enhanceForOCR converts the image to a contrasted, sharpened grayscale JPEG.
func enhanceForOCR(path string) ([]byte, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func documentFromOCR(res computervision.OcrResult) extraction.RawDocument {
	var (
		doc  extraction.RawDocument
		text strings.Builder
	)
	if res.Regions == nil {
		return doc
	}
	for _, region := range *res.Regions {
		if region.Lines == nil {
			continue
		}
		var block extraction.Block
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, w := range *line.Words {
				if w.Text != nil && *w.Text != "" {
					words = append(words, *w.Text)
				}
			}
			if len(words) == 0 {
				continue
			}
			l := strings.Join(words, " ")
			block.Lines = append(block.Lines, l)
			text.WriteString(l)
			text.WriteByte('\n')
		}
		if len(block.Lines) > 0 {
			doc.Blocks = append(doc.Blocks, block)
		}
	}
	doc.Text = text.String()
	return doc
}
