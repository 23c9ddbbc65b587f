package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// description, quantity, unit price, line total
var reLineItem = regexp.MustCompile(
	`^\s*(.+?)\s+(\d+(?:[.,]\d+)?)\s+(\d+[.,]\d{2})\s*€?\s+(\d+[.,]\d{2})\s*€?(?:\s|$)`)

// rows carrying these words are summary lines, not items
var summaryKeywords = []string{"total", "tva", "vat", "a payer", "sous-total"}

// LineItems is the parser output with its single confidence.
type LineItems struct {
	Items []LineItem
}

// ExtractLineItems reads one candidate row per line and keeps only rows whose
// quantity times unit price is within the policy tolerance of the line total.
// Rejected rows are dropped silently.
func ExtractLineItems(doc RawDocument, p Policy) Candidate[LineItems] {
	tolerance := decimal.NewFromFloat(p.LineTolerance)
	vatRate := decimal.NewFromFloat(p.DefaultVATRate)

	items := make([]LineItem, 0)
	for _, line := range splitLines(doc.FullText()) {
		item, ok := parseLineItem(line, tolerance)
		if !ok {
			continue
		}
		item.VATRate = vatRate
		items = append(items, item)
	}

	conf := p.LineItemsNone
	if len(items) > 0 {
		conf = p.LineItemsFound
	}
	return Found(LineItems{Items: items}, conf)
}

func parseLineItem(line string, tolerance decimal.Decimal) (LineItem, bool) {
	m := reLineItem.FindStringSubmatch(line)
	if m == nil {
		return LineItem{}, false
	}
	desc := strings.TrimSpace(m[1])
	if !strings.ContainsFunc(desc, unicode.IsLetter) || containsAny(fold(desc), summaryKeywords) {
		return LineItem{}, false
	}
	qty, err := ParseQuantity(m[2])
	if err != nil {
		return LineItem{}, false
	}
	unit, err := ParseAmount(m[3])
	if err != nil {
		return LineItem{}, false
	}
	total, err := ParseAmount(m[4])
	if err != nil {
		return LineItem{}, false
	}
	if !qty.Mul(unit).Sub(total).Abs().LessThan(tolerance) {
		return LineItem{}, false
	}
	return LineItem{
		Description: desc,
		Quantity:    qty,
		UnitPrice:   unit,
		LineTotal:   total,
	}, true
}
