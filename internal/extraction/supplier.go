package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reSIRET     = regexp.MustCompile(`\b\d{3}[ \x{00A0}]?\d{3}[ \x{00A0}]?\d{3}[ \x{00A0}]?\d{5}\b`)
	reVATNumber = regexp.MustCompile(`FR[ \x{00A0}]?\d{2}[ \x{00A0}]?\d{9}`)
	reSpaces    = regexp.MustCompile(`[ \x{00A0}]`)
)

// supplierHeadLines bounds how far down the page the supplier name is sought.
const supplierHeadLines = 5

// Supplier groups the supplier identity fields; they share one confidence.
type Supplier struct {
	Name      *string
	SIRET     *string
	VATNumber *string
}

// ExtractSupplier takes the first line longer than two characters among the
// first five as the supplier name, and the first SIRET and FR VAT number
// anywhere in the text. Confidence depends on the name alone.
func ExtractSupplier(text string, p Policy) Candidate[Supplier] {
	var s Supplier
	lines := splitLines(text)
	for _, line := range lines[:min(supplierHeadLines, len(lines))] {
		if t := strings.TrimSpace(line); utf8.RuneCountInString(t) > 2 {
			s.Name = &t
			break
		}
	}
	if m := reSIRET.FindString(text); m != "" {
		v := reSpaces.ReplaceAllString(m, "")
		s.SIRET = &v
	}
	if m := reVATNumber.FindString(text); m != "" {
		v := reSpaces.ReplaceAllString(m, "")
		s.VATNumber = &v
	}

	conf := p.SupplierUnnamed
	if s.Name != nil {
		conf = p.SupplierNamed
	}
	return Found(s, conf)
}
