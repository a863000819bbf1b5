package sites

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/normalize"
)

// DiarioComercialID is the registry key of the Diário Comercial portal.
const DiarioComercialID = "diariocomercial"

// DiarioComercialConfig returns the default configuration of the Diário
// Comercial portal.
func DiarioComercialConfig() harvest.SiteConfig {
	return harvest.SiteConfig{
		ID:           DiarioComercialID,
		Host:         "diariocomercial.com.br",
		BaseURL:      "https://diariocomercial.com.br",
		IndexPath:    "/publicidade-legal/pagina/{page}/",
		StopAtCutoff: true,
	}
}

// DiarioComercial extracts publication cards carrying a textual Portuguese
// date such as "27 de outubro de 2025".
type DiarioComercial struct {
	cfg harvest.SiteConfig
}

// NewDiarioComercial builds the strategy for cfg.
func NewDiarioComercial(cfg harvest.SiteConfig) *DiarioComercial {
	return &DiarioComercial{cfg: cfg}
}

// Config implements harvest.Strategy.
func (s *DiarioComercial) Config() harvest.SiteConfig { return s.cfg }

// IndexURL implements harvest.Strategy.
func (s *DiarioComercial) IndexURL(page int) string { return s.cfg.IndexURL(page) }

// ParseIndex implements harvest.Strategy. Cards without a date or a PDF link
// are dropped.
func (s *DiarioComercial) ParseIndex(html string) ([]harvest.Entry, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var entries []harvest.Entry
	doc.Find("div.publicidade_box_infos").Each(func(_ int, box *goquery.Selection) {
		date := box.Find("span.publicidade_data").First()
		_, href, ok := pdfAnchor(box)
		if date.Length() == 0 || !ok {
			return
		}
		title := fallbackTitle
		if h2 := box.Find("h2").First(); h2.Length() > 0 {
			if text := cleanText(h2); text != "" {
				title = text
			}
		}
		entries = append(entries, harvest.Entry{
			DateText: cleanText(date),
			Title:    title,
			PDFURL:   resolveURL(s.cfg.BaseURL, href),
		})
	})
	return entries, nil
}

// ParseDate implements harvest.Strategy.
func (s *DiarioComercial) ParseDate(entry harvest.Entry) (harvest.Date, error) {
	t, err := normalize.ParsePortugueseDate(entry.DateText)
	if err != nil {
		return harvest.Date{}, err
	}
	return harvest.DateOf(t), nil
}
