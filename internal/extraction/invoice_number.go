package extraction

import (
	"regexp"
	"strings"
)

var (
	// "Facture N° FACT-2024-0012", "Facture numéro 42", "Invoice no. 2024/15"
	reInvoiceLabelled = regexp.MustCompile(
		`(?i)\b(?:facture|invoice)\s*(?:n\s*[°º]|num[ée]ro|no\.?|#)?\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	// bare "N° 2024-117"
	reInvoiceBare = regexp.MustCompile(
		`(?i)(?:\bn\s*[°º]|\bnum[ée]ro\b|\bno\.)\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-/]*)`)
	// prefix codes "FACT-0042", "INV2024/7", "FAC 118"
	reInvoiceCode = regexp.MustCompile(
		`(?i)\b((?:FACT|FAC|INV)[\s:\-/]*\d[A-Z0-9\-/]*)`)

	reInvoiceStrict = regexp.MustCompile(`^[A-Z]{2,5}[\-/]?\d{3,}(?:[\-/][A-Z0-9]+)*$`)
)

// invoiceNumberRule returns the first capture of re that contains a digit.
func invoiceNumberRule(re *regexp.Regexp, p Policy) Rule[string] {
	return func(text string) Candidate[string] {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			num := strings.TrimRight(strings.TrimSpace(m[1]), "-/")
			num = strings.Join(strings.Fields(num), "")
			if !strings.ContainsAny(num, "0123456789") {
				continue
			}
			conf := p.InvoiceNumberLoose
			if reInvoiceStrict.MatchString(num) {
				conf = p.InvoiceNumberStrict
			}
			return Found(num, conf)
		}
		return Candidate[string]{}
	}
}

// ExtractInvoiceNumber tries labelled, bare "N°" and prefix-code forms in order.
func ExtractInvoiceNumber(text string, p Policy) Candidate[string] {
	return FirstMatch(text,
		invoiceNumberRule(reInvoiceLabelled, p),
		invoiceNumberRule(reInvoiceBare, p),
		invoiceNumberRule(reInvoiceCode, p),
	)
}
