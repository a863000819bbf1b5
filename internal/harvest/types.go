// Package harvest defines the core types shared across the crawl engine and
// drives one site's pagination loop.
package harvest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the dd/mm/yyyy layout used for cutoffs and persisted records.
const DateLayout = "02/01/2006"

// Date is a calendar date without a time component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping the calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a dd/mm/yyyy string.
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrUnparsableDate, raw)
	}
	return DateOf(t), nil
}

// Time returns the date as midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d was never set.
func (d Date) IsZero() bool { return d.t.IsZero() }

// After reports whether d is a later calendar day than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// Equal reports whether both dates name the same day.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// String renders the date as dd/mm/yyyy.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON encodes the date as a dd/mm/yyyy string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a dd/mm/yyyy string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Record is one accepted publication. Records are never mutated once built.
type Record struct {
	Date        Date   `json:"date"`
	Title       string `json:"title"`
	PDFURL      string `json:"pdf_url"`
	Site        string `json:"site"`
	OriginalURL string `json:"original_url"`
}

// Entry is a partially extracted index item. Single-phase sites fill Title
// and PDFURL directly; two-phase sites only provide DetailURL.
type Entry struct {
	DateText  string
	Title     string
	PDFURL    string
	DetailURL string
}

// SiteConfig describes where and how a site is paginated.
type SiteConfig struct {
	// ID is the registry key used by the API, CLI and artifact names.
	ID string
	// Host is the value stored in Record.Site.
	Host      string
	BaseURL   string
	IndexPath string
	// MaxPages caps pagination; zero means run until a page yields nothing.
	MaxPages int
	// TwoPhase sites need a detail fetch to learn title and PDF link.
	TwoPhase bool
	// StopAtCutoff ends the crawl at the first entry newer than the cutoff,
	// which assumes the index lists entries newest first.
	StopAtCutoff bool
}

// IndexURL expands the index path template for page.
func (c SiteConfig) IndexURL(page int) string {
	path := strings.ReplaceAll(c.IndexPath, "{page}", fmt.Sprint(page))
	return strings.TrimRight(c.BaseURL, "/") + path
}

// TerminationReason records why a crawl stopped.
type TerminationReason string

// Termination reasons reported by the controller.
const (
	ReasonIndexFetchFailed TerminationReason = "index_fetch_failed"
	ReasonNoEntriesOnPage  TerminationReason = "no_entries_on_page"
	ReasonNoNewRecords     TerminationReason = "no_new_records"
	ReasonPageLimitReached TerminationReason = "page_limit_reached"
	ReasonCutoffReached    TerminationReason = "cutoff_reached"
	ReasonCanceled         TerminationReason = "canceled"
)

// CrawlResult is what one controller run returns.
type CrawlResult struct {
	Records []Record
	Reason  TerminationReason
	Pages   int
}
