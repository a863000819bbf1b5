// Package scheduler runs a full harvest at startup and then once a day, and
// writes one snapshot per site.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-notice-harvester/internal/dispatcher"
	"github.com/JakeFAU/legal-notice-harvester/internal/export"
	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
	"github.com/JakeFAU/legal-notice-harvester/internal/hash/sha256"
	"github.com/JakeFAU/legal-notice-harvester/internal/id/uuid"
	"github.com/JakeFAU/legal-notice-harvester/internal/metrics"
	"github.com/JakeFAU/legal-notice-harvester/internal/storage"
)

const (
	// DefaultTriggerTime is the local time of the daily run.
	DefaultTriggerTime = "06:00"
	// DefaultPollInterval is how often the loop checks for a due run.
	DefaultPollInterval = 60 * time.Second
	// SnapshotPrefix starts every snapshot name.
	SnapshotPrefix = "publicacoes"
)

// Runner harvests all sites. *dispatcher.Orchestrator satisfies it.
type Runner interface {
	RunAll(ctx context.Context, cutoff harvest.Date, filter string) map[string]dispatcher.Outcome
}

// Notifier announces a written snapshot. Publishers in internal/publisher
// satisfy it.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator names each harvest run.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher checksums snapshot bodies.
type Hasher interface {
	Hash(data []byte) string
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithIDGenerator replaces the UUIDv7 run ID generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Scheduler) { s.ids = ids }
}

// WithHasher replaces the SHA-256 snapshot hasher.
func WithHasher(h Hasher) Option {
	return func(s *Scheduler) { s.hasher = h }
}

// Config controls the trigger loop.
type Config struct {
	TriggerTime  string
	PollInterval time.Duration
	// Topic is passed to the Notifier with every notification.
	Topic string
	// SkipInitialRun disables the harvest performed when Start is called.
	SkipInitialRun bool
}

// Notification is the payload published per snapshot.
type Notification struct {
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	URI        string    `json:"uri"`
	Records    int       `json:"records"`
	CutoffDate string    `json:"cutoff_date"`
	SHA256     string    `json:"sha256"`
	WrittenAt  time.Time `json:"written_at"`
}

// Snapshot describes one written file.
type Snapshot struct {
	RunID   string
	Site    string
	Name    string
	URI     string
	Records int
	SHA256  string
}

// Scheduler owns the daily trigger.
type Scheduler struct {
	runner   Runner
	store    storage.ArtifactStore
	notifier Notifier
	clock    harvest.Clock
	ids      IDGenerator
	hasher   Hasher
	schedule cron.Schedule
	cfg      Config
	logger   *zap.Logger

	mu   sync.Mutex
	next time.Time
}

// ParseTriggerTime turns "HH:MM" into a daily cron schedule.
func ParseTriggerTime(raw string) (cron.Schedule, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid trigger time %q: want HH:MM", raw)
	}
	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()))
	if err != nil {
		return nil, fmt.Errorf("build schedule for %q: %w", raw, err)
	}
	return schedule, nil
}

// New builds a Scheduler. notifier may be nil.
func New(
	runner Runner,
	store storage.ArtifactStore,
	notifier Notifier,
	clock harvest.Clock,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if runner == nil || store == nil || clock == nil {
		return nil, fmt.Errorf("scheduler requires a runner, a store and a clock")
	}
	if cfg.TriggerTime == "" {
		cfg.TriggerTime = DefaultTriggerTime
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule, err := ParseTriggerTime(cfg.TriggerTime)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		runner:   runner,
		store:    store,
		notifier: notifier,
		clock:    clock,
		ids:      uuid.New(),
		hasher:   sha256.New(),
		schedule: schedule,
		cfg:      cfg,
		logger:   logger.Named("scheduler"),
		next:     schedule.Next(clock.Now()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Start runs a harvest immediately (unless disabled), then polls until ctx is
// done, running once each time the trigger time passes.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.SkipInitialRun {
		s.RunOnce(ctx)
	}
	s.mu.Lock()
	s.next = s.schedule.Next(s.clock.Now())
	s.mu.Unlock()
	s.logger.Info("scheduler started",
		zap.String("trigger_time", s.cfg.TriggerTime),
		zap.Time("next_run", s.Next()),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs a harvest when the next trigger time has passed and reports
// whether it did. The following trigger is computed after the run, so a day
// never runs twice.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.clock.Now().Before(s.Next()) {
		return false
	}
	s.RunOnce(ctx)
	s.mu.Lock()
	s.next = s.schedule.Next(s.clock.Now())
	s.mu.Unlock()
	s.logger.Info("next run scheduled", zap.Time("next_run", s.Next()))
	return true
}

// RunOnce harvests every site with today's date as cutoff and writes a
// snapshot for each site that succeeded with at least one record.
func (s *Scheduler) RunOnce(ctx context.Context) []Snapshot {
	started := s.clock.Now()
	cutoff := harvest.DateOf(started)
	runID, err := s.ids.NewID()
	if err != nil {
		runID = started.Format(export.TimestampLayout)
		s.logger.Warn("run id generation failed, using timestamp", zap.Error(err))
	}
	runLogger := s.logger.With(zap.String("run_id", runID))
	runLogger.Info("starting harvest", zap.String("cutoff", cutoff.String()))

	outcomes := s.runner.RunAll(ctx, cutoff, "")

	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var written []Snapshot
	for _, id := range ids {
		outcome := outcomes[id]
		logger := runLogger.With(zap.String("site", id))
		switch {
		case outcome.Failed():
			logger.Error("site failed after retries", zap.Int("attempts", outcome.Attempts), zap.Error(outcome.Err))
			continue
		case len(outcome.Records) == 0:
			logger.Info("no records collected")
			continue
		}

		snap, err := s.writeSnapshot(ctx, runID, id, cutoff, outcome.Records)
		if err != nil {
			logger.Error("snapshot write failed", zap.Error(err))
			continue
		}
		logger.Info("snapshot written", zap.String("uri", snap.URI), zap.Int("records", snap.Records))
		written = append(written, snap)
	}

	runLogger.Info("harvest finished",
		zap.Int("sites", len(outcomes)),
		zap.Int("snapshots", len(written)),
		zap.Duration("elapsed", s.clock.Now().Sub(started)),
	)
	return written
}

func (s *Scheduler) writeSnapshot(
	ctx context.Context,
	runID, site string,
	cutoff harvest.Date,
	records []harvest.Record,
) (Snapshot, error) {
	body, err := export.Encode(export.FormatJSON, records)
	if err != nil {
		return Snapshot{}, err
	}
	writtenAt := s.clock.Now()
	name := export.Filename(SnapshotPrefix, site, writtenAt, export.FormatJSON)
	uri, err := s.store.PutObject(ctx, name, export.FormatJSON.ContentType(), bytes.NewReader(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("store %s: %w", name, err)
	}
	metrics.ObserveArtifact(site)

	snap := Snapshot{
		RunID:   runID,
		Site:    site,
		Name:    name,
		URI:     uri,
		Records: len(records),
		SHA256:  s.hasher.Hash(body),
	}
	if s.notifier != nil {
		note := Notification{
			RunID:      runID,
			Site:       site,
			URI:        uri,
			Records:    len(records),
			CutoffDate: cutoff.String(),
			SHA256:     snap.SHA256,
			WrittenAt:  writtenAt,
		}
		if _, err := s.notifier.Publish(ctx, s.cfg.Topic, note); err != nil {
			s.logger.Warn("snapshot notification failed", zap.String("site", site), zap.Error(err))
		}
	}
	return snap, nil
}
