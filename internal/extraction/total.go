package extraction

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	totalKeywords  = []string{"total", "ttc", "a payer", "net a payer", "montant"}
	strongKeywords = []string{"ttc", "payer"}
)

// totalWindow is the keyword line plus the lines that may carry its figure.
const totalWindow = 3

// ExtractTotal finds the tax-inclusive total. The first keyword line whose
// window holds an amount wins, taking the largest amount of the window; with
// no such line the largest amount of the whole document is used.
func ExtractTotal(text string, p Policy) Candidate[decimal.Decimal] {
	lines := splitLines(text)
	for i, line := range lines {
		folded := fold(line)
		if !containsAny(folded, totalKeywords) {
			continue
		}
		end := min(i+totalWindow, len(lines))
		amounts := FindAmounts(strings.Join(lines[i:end], "\n"))
		if len(amounts) == 0 {
			continue
		}
		conf := p.TotalLabelled
		if containsAny(folded, strongKeywords) {
			conf = p.TotalStrong
		}
		return Found(maxDecimal(amounts), conf)
	}

	if all := FindAmounts(text); len(all) > 0 {
		return Found(maxDecimal(all), p.TotalFallback)
	}
	return Candidate[decimal.Decimal]{}
}
