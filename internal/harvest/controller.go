package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/metrics"
	"github.com/JakeFAU/legal-notice-harvester/internal/normalize"
)

const (
	// DefaultEntryDelay is the pause after each accepted record.
	DefaultEntryDelay = 500 * time.Millisecond
	// DefaultPageDelay is the pause between index page fetches.
	DefaultPageDelay = 2 * time.Second
)

// ControllerConfig holds the politeness delays applied by a Controller.
type ControllerConfig struct {
	EntryDelay time.Duration
	PageDelay  time.Duration
}

// Controller walks one site's index pages in order and collects records.
type Controller struct {
	strategy Strategy
	detail   DetailParser
	fetcher  Fetcher
	pauser   Pauser
	cfg      ControllerConfig
	logger   *zap.Logger
}

// NewController wires a strategy to a fetcher. Two-phase sites must provide a
// strategy that also implements DetailParser.
func NewController(
	strategy Strategy,
	fetcher Fetcher,
	pauser Pauser,
	cfg ControllerConfig,
	logger *zap.Logger,
) (*Controller, error) {
	if strategy == nil || fetcher == nil {
		return nil, fmt.Errorf("controller requires a strategy and a fetcher")
	}
	site := strategy.Config()
	detail, _ := strategy.(DetailParser)
	if site.TwoPhase && detail == nil {
		return nil, fmt.Errorf("site %s is two-phase but has no detail parser", site.ID)
	}
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		strategy: strategy,
		detail:   detail,
		fetcher:  fetcher,
		pauser:   pauser,
		cfg:      cfg,
		logger:   logger.With(zap.String("site", site.ID)),
	}, nil
}

// Site returns the configuration of the crawled site.
func (c *Controller) Site() SiteConfig {
	return c.strategy.Config()
}

// crawlState lives for a single Run call.
type crawlState struct {
	page    int
	pages   int
	records []Record
	reason  TerminationReason
}

func (s *crawlState) finish(reason TerminationReason) CrawlResult {
	s.reason = reason
	return CrawlResult{Records: s.records, Reason: reason, Pages: s.pages}
}

// Run crawls from page 1 until a termination condition is met. Every returned
// record has a date on or before cutoff and a title matching filter. An error
// is returned only when an index page could not be fetched or ctx ended; the
// partial records gathered so far are returned alongside it.
func (c *Controller) Run(ctx context.Context, cutoff Date, filter string) (CrawlResult, error) {
	site := c.strategy.Config()
	state := &crawlState{page: 1}

	for {
		if err := ctx.Err(); err != nil {
			return state.finish(ReasonCanceled), fmt.Errorf("crawl %s canceled: %w", site.ID, err)
		}

		indexURL := c.strategy.IndexURL(state.page)
		c.logger.Info("processing index page", zap.Int("page", state.page), zap.String("url", indexURL))

		html, err := c.fetcher.Fetch(ctx, indexURL)
		if err != nil {
			metrics.ObservePage(site.ID, "failed")
			c.logger.Warn("index fetch failed", zap.String("url", indexURL), zap.Error(err))
			return state.finish(ReasonIndexFetchFailed), fmt.Errorf("fetch index page %d of %s: %w", state.page, site.ID, err)
		}
		metrics.ObservePage(site.ID, "fetched")
		state.pages++

		entries, err := c.strategy.ParseIndex(html)
		if err != nil {
			c.logger.Warn("index page could not be parsed", zap.String("url", indexURL), zap.Error(err))
		}
		if len(entries) == 0 {
			c.logger.Info("no entries on page, stopping", zap.Int("page", state.page))
			return state.finish(ReasonNoEntriesOnPage), nil
		}
		c.logger.Debug("entries found", zap.Int("page", state.page), zap.Int("count", len(entries)))

		accepted, cutoffHit := c.evaluate(ctx, state, entries, indexURL, cutoff, filter)
		if cutoffHit {
			return state.finish(ReasonCutoffReached), nil
		}
		if err := ctx.Err(); err != nil {
			return state.finish(ReasonCanceled), fmt.Errorf("crawl %s canceled: %w", site.ID, err)
		}
		if site.MaxPages > 0 && state.page >= site.MaxPages {
			c.logger.Info("page limit reached", zap.Int("max_pages", site.MaxPages))
			return state.finish(ReasonPageLimitReached), nil
		}
		if site.MaxPages == 0 && accepted == 0 {
			c.logger.Info("no new records on page, stopping", zap.Int("page", state.page))
			return state.finish(ReasonNoNewRecords), nil
		}

		state.page++
		c.pauser.Pause(ctx, c.cfg.PageDelay)
	}
}

// evaluate processes entries in discovery order. It reports how many records
// were accepted and whether an early-stop site hit an entry past the cutoff.
func (c *Controller) evaluate(
	ctx context.Context,
	state *crawlState,
	entries []Entry,
	indexURL string,
	cutoff Date,
	filter string,
) (int, bool) {
	site := c.strategy.Config()
	accepted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return accepted, false
		}
		date, err := c.strategy.ParseDate(entry)
		if err != nil {
			c.logger.Debug("skipping entry with invalid date", zap.String("date", entry.DateText), zap.Error(err))
			continue
		}
		if date.After(cutoff) {
			if site.StopAtCutoff {
				c.logger.Info("entry newer than cutoff, stopping",
					zap.String("date", date.String()),
					zap.String("cutoff", cutoff.String()),
				)
				return accepted, true
			}
			continue
		}

		record, ok := c.complete(ctx, site, entry, date, indexURL)
		if !ok {
			continue
		}
		if normalize.ShouldExclude(record.Title, filter) {
			c.logger.Debug("skipping filtered title", zap.String("title", record.Title), zap.String("filter", filter))
			continue
		}

		state.records = append(state.records, record)
		accepted++
		metrics.ObserveRecord(site.ID)
		c.logger.Info("collected", zap.String("date", record.Date.String()), zap.String("title", record.Title))
		c.pauser.Pause(ctx, c.cfg.EntryDelay)
	}
	return accepted, false
}

// complete builds the record for an entry, fetching the detail page first on
// two-phase sites. A failed or incomplete detail page skips the entry.
func (c *Controller) complete(
	ctx context.Context,
	site SiteConfig,
	entry Entry,
	date Date,
	indexURL string,
) (Record, bool) {
	if entry.DetailURL == "" || c.detail == nil {
		if entry.PDFURL == "" {
			return Record{}, false
		}
		return Record{
			Date:        date,
			Title:       entry.Title,
			PDFURL:      entry.PDFURL,
			Site:        site.Host,
			OriginalURL: indexURL,
		}, true
	}

	html, err := c.fetcher.Fetch(ctx, entry.DetailURL)
	if err != nil {
		metrics.ObservePage(site.ID, "detail_failed")
		c.logger.Warn("detail fetch failed", zap.String("url", entry.DetailURL), zap.Error(err))
		return Record{}, false
	}
	metrics.ObservePage(site.ID, "detail_fetched")

	title, pdfURL, err := c.detail.ParseDetail(html, entry.DetailURL)
	if err != nil || title == "" || pdfURL == "" {
		c.logger.Debug("detail page incomplete", zap.String("url", entry.DetailURL), zap.Error(err))
		return Record{}, false
	}
	return Record{
		Date:        date,
		Title:       title,
		PDFURL:      pdfURL,
		Site:        site.Host,
		OriginalURL: entry.DetailURL,
	}, true
}
