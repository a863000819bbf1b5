package sites

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/normalize"
)

// DiarioDoComercioID is the registry key of the Diário do Comércio portal.
const DiarioDoComercioID = "diariodocomercio"

// diarioDoComercioMaxPages bounds the crawl since the index is scanned in full.
const diarioDoComercioMaxPages = 200

var (
	editalPathPattern   = regexp.MustCompile(`(?i)/edital-completo/`)
	downloadTextPattern = regexp.MustCompile(`(?i)download|visualizar|pdf|edital completo`)
)

// DiarioDoComercioConfig returns the default configuration of the Diário do
// Comércio portal.
func DiarioDoComercioConfig() harvest.SiteConfig {
	return harvest.SiteConfig{
		ID:        DiarioDoComercioID,
		Host:      "diariodocomercio.com.br",
		BaseURL:   "https://diariodocomercio.com.br",
		IndexPath: "/publicidade-legal-impresso/page/{page}/",
		MaxPages:  diarioDoComercioMaxPages,
		TwoPhase:  true,
	}
}

// DiarioDoComercio is a two-phase strategy. The index only lists links to
// edition pages whose last path segment is the dd-mm-yyyy publication date;
// title and PDF link come from the edition page itself.
type DiarioDoComercio struct {
	cfg harvest.SiteConfig
}

// NewDiarioDoComercio builds the strategy for cfg.
func NewDiarioDoComercio(cfg harvest.SiteConfig) *DiarioDoComercio {
	return &DiarioDoComercio{cfg: cfg}
}

// Config implements harvest.Strategy.
func (s *DiarioDoComercio) Config() harvest.SiteConfig { return s.cfg }

// IndexURL implements harvest.Strategy.
func (s *DiarioDoComercio) IndexURL(page int) string { return s.cfg.IndexURL(page) }

// ParseIndex implements harvest.Strategy. Links are deduplicated keeping the
// first occurrence.
func (s *DiarioDoComercio) ParseIndex(html string) ([]harvest.Entry, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(s.cfg.BaseURL, "/")
	seen := make(map[string]struct{})
	var entries []harvest.Entry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !editalPathPattern.MatchString(href) {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = base + href
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		entries = append(entries, harvest.Entry{
			DateText:  normalize.LastPathSegment(href),
			DetailURL: href,
		})
	})
	return entries, nil
}

// ParseDate implements harvest.Strategy using the detail URL.
func (s *DiarioDoComercio) ParseDate(entry harvest.Entry) (harvest.Date, error) {
	t, err := normalize.ParseURLDate(entry.DetailURL)
	if err != nil {
		return harvest.Date{}, err
	}
	return harvest.DateOf(t), nil
}

// ParseDetail implements harvest.DetailParser. The PDF link is looked up as a
// ".pdf" anchor, then an anchor labelled like a download, then the "file"
// parameter of an embedded pdf.js viewer.
func (s *DiarioDoComercio) ParseDetail(html, detailURL string) (string, string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", "", err
	}

	title := fallbackTitle
	if t, err := normalize.ParseURLDate(detailURL); err == nil {
		title = "Edição " + normalize.FormatDate(t)
	}

	pdfURL := detailPDFLink(doc)
	if pdfURL == "" {
		return title, "", fmt.Errorf("%w: pdf link on %s", harvest.ErrMissingElement, detailURL)
	}
	if root := siteRoot(detailURL); root != "" {
		pdfURL = resolveURL(root, pdfURL)
	}
	return title, pdfURL, nil
}

func detailPDFLink(doc *goquery.Document) string {
	if _, href, ok := pdfAnchor(doc.Selection); ok {
		return href
	}

	var labelled string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		if downloadTextPattern.MatchString(a.Text()) {
			labelled = href
			return false
		}
		return true
	})
	if labelled != "" {
		return labelled
	}

	src, ok := doc.Find("iframe.pdfjs-iframe").First().Attr("src")
	if !ok || src == "" {
		return ""
	}
	viewer, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return viewer.Query().Get("file")
}
