// Package dispatcher fans a harvest run out to every registered site and
// wraps each site's crawl in the retry envelope.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/metrics"
	"github.com/JakeFAU/legal-notice-harvester/internal/telemetry"
)

// ErrUnknownSite is returned for site IDs that are not registered.
var ErrUnknownSite = errors.New("unknown site")

// Crawler runs one full crawl of a site. *harvest.Controller satisfies it.
type Crawler interface {
	Site() harvest.SiteConfig
	Run(ctx context.Context, cutoff harvest.Date, filter string) (harvest.CrawlResult, error)
}

// Outcome is the tagged result of one site within a RunAll call. Exactly one
// of Records or Err is meaningful.
type Outcome struct {
	Site     string
	Records  []harvest.Record
	Reason   harvest.TerminationReason
	Attempts int
	Err      error
}

// Failed reports whether the site exhausted its attempts.
func (o Outcome) Failed() bool { return o.Err != nil }

// Orchestrator owns the site registry.
type Orchestrator struct {
	crawlers map[string]Crawler
	ids      []string
	policy   harvest.RetryPolicy
	pauser   harvest.Pauser
	logger   *zap.Logger
}

// New builds an Orchestrator. Site IDs must be unique.
func New(crawlers []Crawler, policy harvest.RetryPolicy, pauser harvest.Pauser, logger *zap.Logger) (*Orchestrator, error) {
	if policy == nil {
		policy = harvest.NewFixedRetryPolicy(harvest.DefaultMaxAttempts, harvest.DefaultRetryBackoff)
	}
	if pauser == nil {
		pauser = harvest.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		crawlers: make(map[string]Crawler, len(crawlers)),
		policy:   policy,
		pauser:   pauser,
		logger:   logger,
	}
	for _, c := range crawlers {
		id := c.Site().ID
		if _, dup := o.crawlers[id]; dup {
			return nil, fmt.Errorf("site %q registered twice", id)
		}
		o.crawlers[id] = c
		o.ids = append(o.ids, id)
	}
	sort.Strings(o.ids)
	return o, nil
}

// Sites returns the registered site IDs in sorted order.
func (o *Orchestrator) Sites() []string {
	return append([]string(nil), o.ids...)
}

// Site returns the configuration of a registered site.
func (o *Orchestrator) Site(id string) (harvest.SiteConfig, bool) {
	c, ok := o.crawlers[id]
	if !ok {
		return harvest.SiteConfig{}, false
	}
	return c.Site(), true
}

// Run crawls a single site once, without retries.
func (o *Orchestrator) Run(ctx context.Context, siteID string, cutoff harvest.Date, filter string) ([]harvest.Record, error) {
	c, ok := o.crawlers[siteID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSite, siteID)
	}
	result, err := o.attempt(ctx, c, cutoff, filter, 1)
	if err != nil {
		metrics.ObserveSiteRun(siteID, "failed")
		return nil, err
	}
	metrics.ObserveSiteRun(siteID, "success")
	return result.Records, nil
}

// RunAll crawls every site concurrently and waits for all of them. Each site
// is retried from page 1 on failure; a site that keeps failing is reported
// with Err set and never affects its siblings.
func (o *Orchestrator) RunAll(ctx context.Context, cutoff harvest.Date, filter string) map[string]Outcome {
	slots := make([]Outcome, len(o.ids))
	var g errgroup.Group
	for i, id := range o.ids {
		g.Go(func() error {
			slots[i] = o.runWithRetry(ctx, o.crawlers[id], cutoff, filter)
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make(map[string]Outcome, len(slots))
	for _, out := range slots {
		outcomes[out.Site] = out
	}
	return outcomes
}

func (o *Orchestrator) runWithRetry(ctx context.Context, c Crawler, cutoff harvest.Date, filter string) Outcome {
	id := c.Site().ID
	logger := o.logger.With(zap.String("site", id))

	for attempt := 1; ; attempt++ {
		result, err := o.attempt(ctx, c, cutoff, filter, attempt)
		if err == nil {
			metrics.ObserveSiteRun(id, "success")
			logger.Info("site finished",
				zap.Int("attempt", attempt),
				zap.Int("records", len(result.Records)),
				zap.String("reason", string(result.Reason)),
			)
			return Outcome{Site: id, Records: result.Records, Reason: result.Reason, Attempts: attempt}
		}

		if !o.policy.ShouldRetry(err, attempt) {
			metrics.ObserveSiteRun(id, "failed")
			logger.Error("site failed", zap.Int("attempts", attempt), zap.Error(err))
			return Outcome{Site: id, Reason: result.Reason, Attempts: attempt, Err: err}
		}

		backoff := o.policy.Backoff(attempt)
		metrics.ObserveRetry(id)
		logger.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		o.pauser.Pause(ctx, backoff)
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveSiteRun(id, "failed")
			return Outcome{Site: id, Reason: harvest.ReasonCanceled, Attempts: attempt, Err: fmt.Errorf("retry of %s canceled: %w", id, ctxErr)}
		}
	}
}

// attempt runs one crawl inside a span, converting a panic into an error.
func (o *Orchestrator) attempt(
	ctx context.Context,
	c Crawler,
	cutoff harvest.Date,
	filter string,
	n int,
) (result harvest.CrawlResult, err error) {
	id := c.Site().ID
	ctx, span := telemetry.Tracer().Start(ctx, "crawl "+id, trace.WithAttributes(
		attribute.String("harvest.site", id),
		attribute.Int("harvest.attempt", n),
		attribute.String("harvest.cutoff", cutoff.String()),
	))
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("crawl of %s panicked: %v", id, rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Int("harvest.records", len(result.Records)),
				attribute.String("harvest.reason", string(result.Reason)),
			)
		}
		span.End()
	}()
	return c.Run(ctx, cutoff, filter)
}

// Successful keeps the records of sites that did not fail.
func Successful(outcomes map[string]Outcome) map[string][]harvest.Record {
	out := make(map[string][]harvest.Record, len(outcomes))
	for id, o := range outcomes {
		if o.Failed() {
			continue
		}
		out[id] = o.Records
	}
	return out
}
