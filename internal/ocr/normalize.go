package ocr

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/extraction"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^[ \t]*[_\-=]{3,}[ \t]*$`)
)

// Normalize collapses noisy whitespace from OCR output. Line breaks are kept;
// runs of blank lines collapse to one. No-break spaces are left alone since
// they separate thousands in French amounts.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormalizeDocument normalizes the transcript and every block line, dropping
// lines that end up empty.
func NormalizeDocument(doc extraction.RawDocument) extraction.RawDocument {
	out := extraction.RawDocument{Text: Normalize(doc.Text)}
	for _, b := range doc.Blocks {
		var nb extraction.Block
		for _, l := range b.Lines {
			if l = Normalize(l); l != "" {
				nb.Lines = append(nb.Lines, l)
			}
		}
		if len(nb.Lines) > 0 {
			out.Blocks = append(out.Blocks, nb)
		}
	}
	return out
}
