// Package normalize converts scraped Japanese parliamentary text into the
// canonical forms stored in the database: half-width digits, western dates,
// zero-padded identifiers.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// ErrNotADate indicates the input does not contain a recognizable era date.
var ErrNotADate = errors.New("not an era date")

// Fold converts full-width characters to their half-width forms and trims
// surrounding whitespace. Scraped Diet pages mix ０-９ and 0-9 freely.
func Fold(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// Truncate cuts s to at most max bytes without splitting a multibyte rune;
// the cut point walks back to the nearest rune boundary. Japanese text
// byte-sliced mid-rune is invalid UTF-8 and Postgres rejects it.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var kanjiDigits = map[rune]int{
	'〇': 0, '一': 1, '二': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var kanjiUnits = map[rune]int{
	'十': 10, '百': 100, '千': 1000,
}

// ParseNumber parses an integer written in ASCII, full-width, or kanji
// numerals ("208", "２０８", "二百八"). Mixed positional kanji ("二〇八")
// is also accepted.
func ParseNumber(s string) (int, error) {
	s = Fold(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}

	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	total := 0
	current := 0
	positional := true
	for _, r := range s {
		if d, ok := kanjiDigits[r]; ok {
			current = current*10 + d
			continue
		}
		if unit, ok := kanjiUnits[r]; ok {
			positional = false
			if current == 0 {
				current = 1
			}
			total += current * unit
			current = 0
			continue
		}
		return 0, fmt.Errorf("unexpected character %q in number %q", r, s)
	}

	if positional {
		return current, nil
	}
	return total + current, nil
}

// era start years for the eras that appear in Diet records.
var eraStart = map[string]int{
	"令和": 2019,
	"平成": 1989,
	"昭和": 1926,
}

var eraDateRe = regexp.MustCompile(`(令和|平成|昭和)(元|[0-9０-９一二三四五六七八九十]+)年([0-9０-９一二三四五六七八九十]+)月([0-9０-９一二三四五六七八九十]+)日`)

// ParseEraDate converts a Japanese era date ("令和4年3月15日") to a
// time.Time in JST. "元年" is year one of the era. Returns ErrNotADate when
// no era date is present, and an error for impossible calendar dates.
func ParseEraDate(s string) (time.Time, error) {
	m := eraDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNotADate, s)
	}

	eraYear := 1
	if m[2] != "元" {
		var err error
		eraYear, err = ParseNumber(m[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("era year: %w", err)
		}
	}
	month, err := ParseNumber(m[3])
	if err != nil {
		return time.Time{}, fmt.Errorf("month: %w", err)
	}
	day, err := ParseNumber(m[4])
	if err != nil {
		return time.Time{}, fmt.Errorf("day: %w", err)
	}

	year := eraStart[m[1]] + eraYear - 1
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range in %q", month, s)
	}
	jst := time.FixedZone("JST", 9*60*60)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, jst)
	// time.Date normalizes overflow (e.g. Feb 30 -> Mar 2); reject it.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("day %d out of range for %d-%02d in %q", day, year, month, s)
	}
	return t, nil
}

var sessionRe = regexp.MustCompile(`第([0-9０-９一二三四五六七八九十百]+)回`)

// ParseSession extracts the Diet session number from strings such as
// "第208回国会" or "第二百八回国会".
func ParseSession(s string) (int, error) {
	m := sessionRe.FindStringSubmatch(Fold(s))
	if m == nil {
		return 0, fmt.Errorf("no session number in %q", s)
	}
	return ParseNumber(m[1])
}

// PadBillNumber zero-pads an all-digit bill number to three digits
// ("5" -> "005"). Identifiers containing non-digits are folded but
// otherwise left alone.
func PadBillNumber(s string) string {
	s = Fold(s)
	if s == "" {
		return s
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return s
		}
	}
	if len(s) >= 3 {
		return s
	}
	return strings.Repeat("0", 3-len(s)) + s
}
