package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DisplayLayout is the dd/mm/yyyy form every parsed date is rendered in.
const DisplayLayout = "02/01/2006"

// ErrUnrecognizedDate is returned when text matches no supported date grammar.
var ErrUnrecognizedDate = errors.New("unrecognized date")

var (
	numericDatePattern = regexp.MustCompile(`^\s*(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	textualDatePattern = regexp.MustCompile(`^\s*(\d{1,2})\s+de\s+(\pL+)\s+de\s+(\d{4})`)
	urlDatePattern     = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})`)
)

// months is keyed by folded month name.
var months = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"marco":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

// ParseNumericDate parses "dd/mm/yyyy", "d-m-yy" and similar. Two-digit years
// are read as 20yy. Trailing text after the date is ignored.
func ParseNumericDate(raw string) (time.Time, error) {
	m := numericDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDate, raw)
	}
	year := m[3]
	switch len(year) {
	case 2:
		year = "20" + year
	case 4:
	default:
		return time.Time{}, fmt.Errorf("%w: bad year in %q", ErrUnrecognizedDate, raw)
	}
	return buildDate(m[1], m[2], year, raw)
}

// ParsePortugueseDate parses "27 de outubro de 2025". Month names are matched
// case- and accent-insensitively.
func ParsePortugueseDate(raw string) (time.Time, error) {
	m := textualDatePattern.FindStringSubmatch(Fold(raw))
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDate, raw)
	}
	month, ok := months[m[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month %q", ErrUnrecognizedDate, m[2])
	}
	return buildDate(m[1], strconv.Itoa(int(month)), m[3], raw)
}

// ParseURLDate reads a dd-mm-yyyy date from the last path segment of rawURL.
func ParseURLDate(rawURL string) (time.Time, error) {
	segment := LastPathSegment(rawURL)
	if segment == "" {
		return time.Time{}, fmt.Errorf("%w: no path segment in %q", ErrUnrecognizedDate, rawURL)
	}
	m := urlDatePattern.FindStringSubmatch(segment)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDate, segment)
	}
	return buildDate(m[1], m[2], m[3], segment)
}

// LastPathSegment returns the final non-empty path segment of rawURL.
func LastPathSegment(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// NormalizeDate accepts numeric or Portuguese textual input and returns it as
// dd/mm/yyyy.
func NormalizeDate(raw string) (string, error) {
	if t, err := ParseNumericDate(raw); err == nil {
		return FormatDate(t), nil
	}
	t, err := ParsePortugueseDate(raw)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// FormatDate renders t as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(DisplayLayout)
}

func buildDate(dayText, monthText, yearText, raw string) (time.Time, error) {
	day, errDay := strconv.Atoi(dayText)
	month, errMonth := strconv.Atoi(monthText)
	year, errYear := strconv.Atoi(yearText)
	if errDay != nil || errMonth != nil || errYear != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDate, raw)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("%w: out of range %q", ErrUnrecognizedDate, raw)
	}
	return t, nil
}
