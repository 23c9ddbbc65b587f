package constants

import "strings"

// SourceFormat says how a scan's file is turned into text.
type SourceFormat string

const (
	TEXT  SourceFormat = "TEXT"  // transcript already produced by an OCR pass
	IMAGE SourceFormat = "IMAGE" // needs an OCR provider
	PDF   SourceFormat = "PDF"   // text layer read with pdftotext
)

// AllowedExtensions holds the default allowed file extensions for invoice ingestion.
var AllowedExtensions = map[string]struct{}{
	"txt":  {},
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns the source format for an extension, or "" when the
// extension is not ingestible.
func MapExtToFormat(ext string) SourceFormat {
	switch NormalizeExt(ext) {
	case "txt":
		return TEXT
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	}
	return ""
}
