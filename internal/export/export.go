// Package export encodes record lists as JSON or CSV documents.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// TimestampLayout is the suffix layout of every written artifact.
const TimestampLayout = "20060102_150405"

// csvHeader is the column order of CSV output.
var csvHeader = []string{"date", "title", "pdf_url", "site", "original_url"}

// ParseFormat validates a user supplied format; empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format %q: use json or csv", raw)
	}
}

// ContentType returns the HTTP media type for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Filename builds "{prefix}_{site}_{YYYYmmdd_HHMMSS}.{format}".
func Filename(prefix, site string, at time.Time, f Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, site, at.Format(TimestampLayout), f)
}

// Write encodes records to w in format f.
func Write(w io.Writer, f Format, records []harvest.Record) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// WriteJSON writes records as a 4-space indented array without escaping
// non-ASCII or HTML characters.
func WriteJSON(w io.Writer, records []harvest.Record) error {
	if records == nil {
		records = []harvest.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []harvest.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{r.Date.String(), r.Title, r.PDFURL, r.Site, r.OriginalURL}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Encode returns the encoded document.
func Encode(f Format, records []harvest.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
