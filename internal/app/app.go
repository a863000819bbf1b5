// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/api"
	"github.com/JakeFAU/legal-notice-harvester/internal/clock/system"
	"github.com/JakeFAU/legal-notice-harvester/internal/config"
	"github.com/JakeFAU/legal-notice-harvester/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/legal-notice-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/metrics"
	"github.com/JakeFAU/legal-notice-harvester/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/legal-notice-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/legal-notice-harvester/internal/scheduler"
	"github.com/JakeFAU/legal-notice-harvester/internal/sites"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage/gcs"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage/local"
	"github.com/JakeFAU/legal-notice-harvester/internal/telemetry"
)

// App holds the shared services built from one Config. Commands take what
// they need from it and call Close when done.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	clock        *system.Clock
	orchestrator *dispatcher.Orchestrator
	store        storage.ArtifactStore
	notifier     scheduler.Notifier
	tracer       *sdktrace.TracerProvider
	closers      []func() error
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	fetcher harvest.Fetcher
	pauser  harvest.Pauser
	store   storage.ArtifactStore
}

// WithFetcher replaces the Colly fetcher.
func WithFetcher(f harvest.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithPauser replaces the timer used for politeness delays and backoff.
func WithPauser(p harvest.Pauser) Option {
	return func(o *options) { o.pauser = p }
}

// WithStore replaces the configured snapshot store.
func WithStore(s storage.ArtifactStore) Option {
	return func(o *options) { o.store = s }
}

// NewApp builds every service described by cfg. It fails fast when a
// configured backend cannot be reached.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}
	a.clock = system.New(loc)

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		a.tracer = tp
	}

	orchestrator, err := buildOrchestrator(cfg, o, logger)
	if err != nil {
		return nil, err
	}
	a.orchestrator = orchestrator

	if err := a.initStore(ctx, o.store); err != nil {
		return nil, err
	}
	if err := a.initNotifier(ctx); err != nil {
		return nil, err
	}

	logger.Info("application services initialized",
		zap.Strings("sites", orchestrator.Sites()),
		zap.String("timezone", loc.String()),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)
	ok = true
	return a, nil
}

func buildOrchestrator(cfg config.Config, o options, logger *zap.Logger) (*dispatcher.Orchestrator, error) {
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Fetch.Timeout,
		})
	}
	fetcher = ratelimit.NewFetcher(fetcher, ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	}))
	pauser := o.pauser
	if pauser == nil {
		pauser = harvest.TimerPauser{}
	}

	strategies, err := sites.Build(cfg.SiteOverrides())
	if err != nil {
		return nil, fmt.Errorf("build site strategies: %w", err)
	}
	crawlCfg := harvest.ControllerConfig{
		EntryDelay: cfg.Crawl.EntryDelay,
		PageDelay:  cfg.Crawl.PageDelay,
	}
	crawlers := make([]dispatcher.Crawler, 0, len(strategies))
	for _, strategy := range strategies {
		controller, err := harvest.NewController(strategy, fetcher, pauser, crawlCfg, logger.Named("crawl"))
		if err != nil {
			return nil, fmt.Errorf("build controller: %w", err)
		}
		crawlers = append(crawlers, controller)
	}

	policy := harvest.NewFixedRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.Backoff)
	orchestrator, err := dispatcher.New(crawlers, policy, pauser, logger.Named("dispatcher"))
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return orchestrator, nil
}

func (a *App) initStore(ctx context.Context, override storage.ArtifactStore) error {
	switch {
	case override != nil:
		a.store = override
	case a.cfg.Storage.GCSBucket != "":
		store, err := gcs.Open(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return fmt.Errorf("init gcs store: %w", err)
		}
		a.logger.Info("using GCS snapshot store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		a.store = store
		a.closers = append(a.closers, store.Close)
	default:
		store, err := local.New(local.Config{Dir: a.cfg.Output.Dir})
		if err != nil {
			return fmt.Errorf("init local store: %w", err)
		}
		a.logger.Info("using local snapshot store", zap.String("dir", store.Dir()))
		a.store = store
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		return nil
	}
	pub, err := pubsubpublisher.Open(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.logger.Info("publishing snapshot notifications", zap.String("topic", a.cfg.PubSub.TopicName))
	a.notifier = pub
	a.closers = append(a.closers, pub.Close)
	return nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the wall clock in the configured timezone.
func (a *App) Clock() *system.Clock { return a.clock }

// Orchestrator returns the multi-site orchestrator.
func (a *App) Orchestrator() *dispatcher.Orchestrator { return a.orchestrator }

// Store returns the snapshot store.
func (a *App) Store() storage.ArtifactStore { return a.store }

// NewScheduler builds the daily trigger over the orchestrator and store.
func (a *App) NewScheduler() (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.orchestrator, a.store, a.notifier, a.clock, scheduler.Config{
		TriggerTime:    a.cfg.Scheduler.TriggerTime,
		PollInterval:   a.cfg.Scheduler.PollInterval,
		Topic:          a.cfg.PubSub.TopicName,
		SkipInitialRun: a.cfg.Scheduler.SkipInitialRun,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	return sched, nil
}

// NewAPIServer builds the HTTP API over the orchestrator.
func (a *App) NewAPIServer() *api.Server {
	return api.NewServer(a.orchestrator, api.Options{
		RequestTimeout: a.cfg.Server.RequestTimeout,
	}, a.logger)
}

// Close releases clients and flushes spans. Errors are logged.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
		a.tracer = nil
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down application services", zap.Error(err))
	}
}
