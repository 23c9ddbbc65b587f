package extraction

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedAmount is returned when a fragment cannot be read as a
// non-negative two-decimal euro amount.
var ErrMalformedAmount = errors.New("malformed amount")

// amountNumber matches "1 234,56", "1.234,56", "1,234.56", "1234.56", "12,50".
// The grouped form is tried first so thousands are not split off.
const amountNumber = `\d{1,3}(?:[ \t\x{00A0}\x{202F},.]\d{3})+[,.]\d{2}|\d+[,.]\d{2}`

var (
	reAmount = regexp.MustCompile(
		`(?i)(?:(€|\$|£|eur|usd|gbp)[ \t\x{00A0}\x{202F}]*)?(` + amountNumber + `)(?:[ \t\x{00A0}\x{202F}]*(€|\$|£|eur\b|usd\b|gbp\b))?`)
	reQuantity = regexp.MustCompile(`^\d+(?:[.,]\d+)?$`)
)

func isHSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u00a0' || r == '\u202f'
}

func isSep(r rune) bool { return r == ',' || r == '.' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// stripEuro removes a leading or trailing "€"/"EUR" marker.
func stripEuro(s string) string {
	for _, sym := range []string{"€", "eur"} {
		if len(s) >= len(sym) && strings.EqualFold(s[:len(sym)], sym) {
			s = strings.TrimLeftFunc(s[len(sym):], isHSpace)
		}
		if len(s) >= len(sym) && strings.EqualFold(s[len(s)-len(sym):], sym) {
			s = strings.TrimRightFunc(s[:len(s)-len(sym)], isHSpace)
		}
	}
	return s
}

// ParseAmount normalizes a monetary fragment to a decimal. It accepts an
// optional euro marker, space/comma/dot thousands separators and a comma or
// dot before exactly two fractional digits. Anything else, including other
// currencies and signs, is ErrMalformedAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	t := stripEuro(strings.TrimSpace(s))
	t = strings.Map(func(r rune) rune {
		if isHSpace(r) {
			return -1
		}
		return r
	}, t)
	if t == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	for _, r := range t {
		if !(r >= '0' && r <= '9') && !isSep(r) {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
		}
	}

	i := strings.LastIndexAny(t, ",.")
	if i <= 0 || len(t)-i-1 != 2 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	intPart, frac := t[:i], t[i+1:]

	groups := strings.FieldsFunc(intPart, isSep)
	if strings.Count(intPart, ",")+strings.Count(intPart, ".") != len(groups)-1 {
		// empty group: leading, trailing or doubled separator
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}
	if len(groups) > 1 {
		if len(groups[0]) > 3 {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
			}
		}
	}

	v, err := decimal.NewFromString(strings.Join(groups, "") + "." + frac)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrMalformedAmount, s, err)
	}
	return v, nil
}

// ParseQuantity reads an item quantity such as "3", "1,5" or "2.25".
func ParseQuantity(s string) (decimal.Decimal, error) {
	t := strings.TrimSpace(s)
	if !reQuantity.MatchString(t) {
		return decimal.Zero, fmt.Errorf("%w: quantity %q", ErrMalformedAmount, s)
	}
	return decimal.NewFromString(strings.Replace(t, ",", ".", 1))
}

// FindAmounts returns every well-formed amount in text, in reading order.
// Numbers glued to further digits and fragments marked with a foreign
// currency are skipped.
func FindAmounts(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range reAmount.FindAllStringSubmatchIndex(text, -1) {
		if gluedToNumber(text, m[4], m[5]) {
			continue
		}
		v, err := ParseAmount(text[m[0]:m[1]])
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// gluedToNumber reports whether text[start:end] is a slice of a longer
// number such as a phone number or reference ("01.23.45.67").
func gluedToNumber(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1]
		if isDigit(prev) || ((prev == '.' || prev == ',') && start > 1 && isDigit(text[start-2])) {
			return true
		}
	}
	if end < len(text) {
		next := text[end]
		if isDigit(next) || ((next == '.' || next == ',') && end+1 < len(text) && isDigit(text[end+1])) {
			return true
		}
	}
	return false
}

func maxDecimal(vs []decimal.Decimal) decimal.Decimal {
	best := vs[0]
	for _, v := range vs[1:] {
		if v.GreaterThan(best) {
			best = v
		}
	}
	return best
}
