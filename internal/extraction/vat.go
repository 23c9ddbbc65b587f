package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// "TVA 20% : 20,00", "TVA (5,5 %) 11,00", "VAT: 4.00"
	reVATLabelled = regexp.MustCompile(
		`(?i)\b(?:tva|vat)\s*(?:\(?\d{1,2}(?:[.,]\d{1,2})?\s*%\)?)?\s*[:\-]?\s*(` + amountNumber + `)`)
	// "Montant TVA : 20,00", "Montant de la TVA 20,00"
	reVATMontant = regexp.MustCompile(
		`(?i)\bmontant\s+(?:de\s+(?:la\s+)?)?tva\s*[:\-]?\s*(` + amountNumber + `)`)
)

// vatRule returns the first capture of re that reads as an amount. A number
// followed by '%' is a rate and is skipped.
func vatRule(re *regexp.Regexp, p Policy) Rule[decimal.Decimal] {
	return func(text string) Candidate[decimal.Decimal] {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			rest := strings.TrimLeftFunc(text[end:], isHSpace)
			if strings.HasPrefix(rest, "%") || (end < len(text) && isDigit(text[end])) {
				continue
			}
			v, err := ParseAmount(text[start:end])
			if err != nil {
				continue
			}
			return Found(v, p.VAT)
		}
		return Candidate[decimal.Decimal]{}
	}
}

// ExtractVAT finds the VAT amount from its label.
func ExtractVAT(text string, p Policy) Candidate[decimal.Decimal] {
	return FirstMatch(text,
		vatRule(reVATLabelled, p),
		vatRule(reVATMontant, p),
	)
}
