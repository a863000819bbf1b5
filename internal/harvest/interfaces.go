package harvest

import (
	"context"
	"time"
)

// Fetcher retrieves a page and returns its decoded text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Strategy turns one site's index markup into entries.
type Strategy interface {
	Config() SiteConfig
	IndexURL(page int) string
	ParseIndex(html string) ([]Entry, error)
	// ParseDate applies the site's date grammar to an entry.
	ParseDate(entry Entry) (Date, error)
}

// DetailParser is implemented by two-phase strategies.
type DetailParser interface {
	ParseDetail(html string, detailURL string) (title string, pdfURL string, err error)
}

// Pauser blocks for politeness and backoff delays.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// RetryPolicy decides whether a failed crawl attempt is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}
