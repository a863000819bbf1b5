// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

const (
	// DefaultTimeout bounds each request.
	DefaultTimeout = 15 * time.Second
	// DefaultUserAgent is the desktop Chrome string the portals expect.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs single GET requests through a cloned Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchOutcome is filled by the collector callbacks of one request.
type fetchOutcome struct {
	body   string
	status int
	err    error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Clones share the visited set, and retries must refetch the same page.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch returns the decoded body of rawURL. Failures are *harvest.FetchError
// unless ctx ended first.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var outcome fetchOutcome
	collector := f.buildCollector(ctx, &outcome)
	if err := f.runCollector(ctx, collector, rawURL, &outcome); err != nil {
		return "", err
	}
	return outcome.body, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, outcome *fetchOutcome) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.Context = ctx
	collector.SetRequestTimeout(f.cfg.Timeout)
	configureCollectorHooks(collector, outcome)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, outcome *fetchOutcome) {
	hooks.OnResponse(func(r *colly.Response) {
		outcome.status = r.StatusCode
		// colly has already converted a declared charset to UTF-8
		outcome.body = strings.ToValidUTF8(string(r.Body), "\uFFFD")
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			outcome.status = r.StatusCode
		}
		outcome.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, outcome *fetchOutcome) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err == nil {
			err = outcome.err
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
		}
		return classify(rawURL, outcome.status, err)
	}
}

// classify maps a colly failure onto the harvest failure kinds. colly reports
// statuses above 202 as errors carrying the status text.
func classify(rawURL string, status int, err error) *harvest.FetchError {
	// the status is only recorded next to an error for rejected responses
	if status > 0 {
		return &harvest.FetchError{
			Kind:   harvest.KindHTTPStatus,
			URL:    rawURL,
			Code:   status,
			Reason: http.StatusText(status),
			Err:    err,
		}
	}

	var (
		urlErr *url.Error
		netErr net.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &harvest.FetchError{Kind: harvest.KindConnection, URL: rawURL, Reason: "timeout", Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &harvest.FetchError{Kind: harvest.KindConnection, URL: rawURL, Reason: "timeout", Err: err}
	case errors.As(err, &urlErr), errors.As(err, &netErr):
		return &harvest.FetchError{Kind: harvest.KindConnection, URL: rawURL, Reason: err.Error(), Err: err}
	default:
		return &harvest.FetchError{Kind: harvest.KindUnexpected, URL: rawURL, Reason: err.Error(), Err: err}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
