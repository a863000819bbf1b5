package sites

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/normalize"
)

// AgoraRNID is the registry key of the Agora RN portal.
const AgoraRNID = "agorarn"

var (
	agoraCompanyClass = regexp.MustCompile(`strong`)
	agoraDescClass    = regexp.MustCompile(`col-md-5`)
	agoraDateClass    = regexp.MustCompile(`text-center`)
)

// AgoraRNConfig returns the default configuration of the Agora RN portal.
func AgoraRNConfig() harvest.SiteConfig {
	return harvest.SiteConfig{
		ID:           AgoraRNID,
		Host:         "agorarn.com.br",
		BaseURL:      "https://agorarn.com.br",
		IndexPath:    "/publicacoescertificadas/page/{page}/",
		StopAtCutoff: true,
	}
}

// AgoraRN extracts publications from the certified-publications list. Each
// row wraps a single PDF anchor holding company, description and date cells.
type AgoraRN struct {
	cfg harvest.SiteConfig
}

// NewAgoraRN builds the strategy for cfg.
func NewAgoraRN(cfg harvest.SiteConfig) *AgoraRN {
	return &AgoraRN{cfg: cfg}
}

// Config implements harvest.Strategy.
func (s *AgoraRN) Config() harvest.SiteConfig { return s.cfg }

// IndexURL implements harvest.Strategy.
func (s *AgoraRN) IndexURL(page int) string { return s.cfg.IndexURL(page) }

// ParseIndex implements harvest.Strategy.
func (s *AgoraRN) ParseIndex(html string) ([]harvest.Entry, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var entries []harvest.Entry
	doc.Find("div#certificadas.row").Each(func(_ int, row *goquery.Selection) {
		anchor, href, ok := pdfAnchor(row)
		if !ok {
			return
		}
		divs := anchor.Find("div")

		company := fallbackTitle
		if c := withClass(divs, agoraCompanyClass).First(); c.Length() > 0 {
			if text := cleanText(c); text != "" {
				company = text
			}
		}
		title := company
		if d := withClass(divs, agoraDescClass).First(); d.Length() > 0 {
			if desc := cleanText(d); desc != "" {
				title = company + " - " + desc
			}
		}

		entries = append(entries, harvest.Entry{
			DateText: cleanText(withClass(divs, agoraDateClass).First()),
			Title:    title,
			PDFURL:   resolveURL(s.cfg.BaseURL, href),
		})
	})
	return entries, nil
}

// ParseDate implements harvest.Strategy. Dates are numeric, e.g. 11/10/2025
// or 11-10-25.
func (s *AgoraRN) ParseDate(entry harvest.Entry) (harvest.Date, error) {
	t, err := normalize.ParseNumericDate(entry.DateText)
	if err != nil {
		return harvest.Date{}, err
	}
	return harvest.DateOf(t), nil
}
