package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/agext/levenshtein"
)

var (
	reDateDMY   = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)
	reDateYMD   = regexp.MustCompile(`\b(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})\b`)
	reDateNamed = regexp.MustCompile(`(?i)\b(\d{1,2})(?:er)?\s+(\pL+)\.?\s+(\d{4})\b`)
)

// frenchMonths is keyed by the folded (lowercase, accent-free) spelling.
var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"janv":      time.January,
	"fevrier":   time.February,
	"fevr":      time.February,
	"fev":       time.February,
	"mars":      time.March,
	"avril":     time.April,
	"avr":       time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"juil":      time.July,
	"aout":      time.August,
	"septembre": time.September,
	"sept":      time.September,
	"octobre":   time.October,
	"oct":       time.October,
	"novembre":  time.November,
	"nov":       time.November,
	"decembre":  time.December,
	"dec":       time.December,
}

// fullMonthNames are the only spellings eligible for fuzzy lookup.
var fullMonthNames = []string{
	"janvier", "fevrier", "avril", "juillet", "septembre", "octobre", "novembre", "decembre",
}

// lookupMonth resolves a month word. Full names of five letters or more may
// differ by one edit (OCR damage such as "novembrc").
func lookupMonth(word string) (time.Month, bool) {
	w := fold(word)
	if m, ok := frenchMonths[w]; ok {
		return m, true
	}
	if len([]rune(w)) < 5 {
		return 0, false
	}
	for _, name := range fullMonthNames {
		if levenshtein.Distance(w, name, nil) <= 1 {
			return frenchMonths[name], true
		}
	}
	return 0, false
}

// calendarDate formats y-m-d as ISO-8601 if it is a real calendar date.
func calendarDate(y, m, d int) (string, bool) {
	if m < 1 || m > 12 || d < 1 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// numericDateRule accepts the first match of re only; an impossible date
// makes the rule absent rather than falling through to later matches.
func numericDateRule(re *regexp.Regexp, ymd bool, p Policy) Rule[string] {
	return func(text string) Candidate[string] {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Candidate[string]{}
		}
		y, mo, d := atoi(m[3]), atoi(m[2]), atoi(m[1])
		if ymd {
			y, d = atoi(m[1]), atoi(m[3])
		}
		if iso, ok := calendarDate(y, mo, d); ok {
			return Found(iso, p.Date)
		}
		return Candidate[string]{}
	}
}

// namedDateRule accepts the first "DD <month> YYYY" whose middle word is a
// French month name.
func namedDateRule(p Policy) Rule[string] {
	return func(text string) Candidate[string] {
		for _, m := range reDateNamed.FindAllStringSubmatch(text, -1) {
			month, ok := lookupMonth(m[2])
			if !ok {
				continue
			}
			if iso, ok := calendarDate(atoi(m[3]), int(month), atoi(m[1])); ok {
				return Found(iso, p.Date)
			}
			return Candidate[string]{}
		}
		return Candidate[string]{}
	}
}

// ExtractDate tries DD/MM/YYYY, YYYY/MM/DD, then "DD <mois> YYYY".
func ExtractDate(text string, p Policy) Candidate[string] {
	return FirstMatch(text,
		numericDateRule(reDateDMY, false, p),
		numericDateRule(reDateYMD, true, p),
		namedDateRule(p),
	)
}
