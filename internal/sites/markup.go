// Package sites holds the extraction strategy for each supported portal and
// the registry that builds them from configuration.
package sites

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// fallbackTitle is used when a page carries no usable title.
const fallbackTitle = "Publicação Legal"

var pdfHrefPattern = regexp.MustCompile(`(?i)\.pdf$`)

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// withClass keeps the elements whose class attribute matches pattern.
func withClass(sel *goquery.Selection, pattern *regexp.Regexp) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, ok := s.Attr("class")
		return ok && pattern.MatchString(class)
	})
}

// pdfAnchor returns the first descendant anchor whose href ends in ".pdf".
func pdfAnchor(sel *goquery.Selection) (*goquery.Selection, string, bool) {
	var (
		found *goquery.Selection
		href  string
	)
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h := strings.TrimSpace(a.AttrOr("href", ""))
		if pdfHrefPattern.MatchString(h) {
			found, href = a, h
			return false
		}
		return true
	})
	return found, href, found != nil
}

// cleanText collapses runs of whitespace in the selection's text.
func cleanText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// resolveURL resolves ref against base. Absolute refs are returned unchanged.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// siteRoot returns scheme://host of rawURL.
func siteRoot(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}
