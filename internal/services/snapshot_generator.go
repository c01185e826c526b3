package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/irfndi/kdp-pulse/internal/logging"
	"github.com/irfndi/kdp-pulse/internal/models"
)

const tracerName = "github.com/irfndi/kdp-pulse/internal/services"

// SnapshotGeneratorConfig holds configuration for the generation job
type SnapshotGeneratorConfig struct {
	WindowDays     int
	MaxConcurrency int
	ListingTimeout time.Duration
	ReadsPerSecond float64
	AlgoVersion    string
	NetImpactNudge bool
	Enabled        bool
	Schedule       string
	Timezone       string
}

// DefaultSnapshotGeneratorConfig returns default generation settings
func DefaultSnapshotGeneratorConfig() SnapshotGeneratorConfig {
	return SnapshotGeneratorConfig{
		WindowDays:     30,
		MaxConcurrency: 8,
		ListingTimeout: 20 * time.Second,
		ReadsPerSecond: 50,
		AlgoVersion:    DefaultAlgoVersion,
		NetImpactNudge: true,
		Enabled:        false,
		Schedule:       "0 6 * * *",
		Timezone:       "UTC",
	}
}

// FailedListing records a listing the batch had to skip
type FailedListing struct {
	UserID    string `json:"user_id"`
	ListingID int64  `json:"listing_id,omitempty"`
	ASIN      string `json:"asin,omitempty"`
	Error     string `json:"error"`
}

// GenerationReport summarises one batch run
type GenerationReport struct {
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Users     int             `json:"users"`
	Processed int             `json:"processed"`
	Failed    []FailedListing `json:"failed"`

	mu sync.Mutex
}

func (r *GenerationReport) addFailure(f FailedListing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, f)
}

func (r *GenerationReport) addProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Processed++
}

// SnapshotGenerator drives the scoring engine over every tracked listing
type SnapshotGenerator struct {
	samples  SampleReader
	listings ListingCatalog
	users    UserDirectory
	store    SnapshotStore
	ledgers  FeedbackLedgerStore
	digest   DigestSender
	ranker   *RelevanceRanker

	cfg     SnapshotGeneratorConfig
	logger  *logrus.Logger
	limiter *rate.Limiter
	tracer  trace.Tracer

	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	isRunning  bool
	lastReport *GenerationReport
}

// NewSnapshotGenerator creates a new generation job
func NewSnapshotGenerator(
	cfg SnapshotGeneratorConfig,
	samples SampleReader,
	listings ListingCatalog,
	users UserDirectory,
	store SnapshotStore,
	logger *logrus.Logger,
) *SnapshotGenerator {
	defaults := DefaultSnapshotGeneratorConfig()
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaults.WindowDays
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.ListingTimeout <= 0 {
		cfg.ListingTimeout = defaults.ListingTimeout
	}
	if cfg.AlgoVersion == "" {
		cfg.AlgoVersion = defaults.AlgoVersion
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaults.Schedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaults.Timezone
	}
	if logger == nil {
		logger = logrus.New()
	}

	limit := rate.Inf
	burst := 1
	if cfg.ReadsPerSecond > 0 {
		limit = rate.Limit(cfg.ReadsPerSecond)
		burst = int(cfg.ReadsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &SnapshotGenerator{
		samples:  samples,
		listings: listings,
		users:    users,
		store:    store,
		ranker:   NewRelevanceRanker(cfg.NetImpactNudge),
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, burst),
		tracer:   otel.Tracer(tracerName),
	}
}

// WithDigest enables delivery of recommended snapshots after each user's run
func (g *SnapshotGenerator) WithDigest(ledgers FeedbackLedgerStore, sender DigestSender) *SnapshotGenerator {
	g.ledgers = ledgers
	g.digest = sender
	return g
}

// Start registers the batch on its cron schedule
func (g *SnapshotGenerator) Start() error {
	if !g.cfg.Enabled {
		g.logger.Info("Snapshot generation schedule is disabled in configuration")
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isRunning {
		return fmt.Errorf("snapshot generator is already running")
	}

	loc, err := time.LoadLocation(g.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", g.cfg.Timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(g.cfg.Schedule, g.scheduledRun); err != nil {
		return fmt.Errorf("failed to schedule snapshot generation: %w", err)
	}
	// each Start gets a fresh context so a restart after Stop runs live
	g.ctx, g.cancel = context.WithCancel(context.Background())
	c.Start()

	g.cron = c
	g.isRunning = true
	g.logger.WithFields(logrus.Fields{
		"schedule": g.cfg.Schedule,
		"timezone": g.cfg.Timezone,
	}).Info("Snapshot generator started")
	return nil
}

// Stop halts the schedule and waits for a running batch to finish
func (g *SnapshotGenerator) Stop() {
	g.mu.Lock()
	if !g.isRunning {
		g.mu.Unlock()
		return
	}
	g.isRunning = false
	c, cancel := g.cron, g.cancel
	g.mu.Unlock()

	g.logger.Info("Stopping snapshot generator")
	cancel()
	<-c.Stop().Done()
	g.logger.Info("Snapshot generator stopped")
}

// IsRunning returns true if the schedule is active
func (g *SnapshotGenerator) IsRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isRunning
}

// LastReport returns the report of the most recent completed run
func (g *SnapshotGenerator) LastReport() *GenerationReport {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastReport
}

func (g *SnapshotGenerator) runContext() context.Context {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.ctx == nil {
		return context.Background()
	}
	return g.ctx
}

func (g *SnapshotGenerator) scheduledRun() {
	report, err := g.Run(g.runContext(), time.Now())
	if err != nil {
		g.logger.WithError(err).Error("Scheduled snapshot generation failed")
		return
	}
	logging.LogBusinessEvent(g.logger, "generation_run", map[string]interface{}{
		"users":     report.Users,
		"processed": report.Processed,
		"failed":    len(report.Failed),
		"duration":  report.Duration.String(),
	})
}

// Run scores every tracked listing of every user. Only a failure to list
// users aborts the run; listing failures are collected in the report.
func (g *SnapshotGenerator) Run(ctx context.Context, now time.Time) (*GenerationReport, error) {
	ctx, span := g.tracer.Start(ctx, "snapshot_generator.run")
	defer span.End()

	users, err := g.users.ListUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	started := time.Now()
	report := &GenerationReport{StartedAt: now, Failed: []FailedListing{}}
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		g.runUser(ctx, u, now, report)
		report.Users++
	}
	report.Duration = time.Since(started)
	span.SetAttributes(
		attribute.Int("users", report.Users),
		attribute.Int("processed", report.Processed),
		attribute.Int("failed", len(report.Failed)),
	)

	g.mu.Lock()
	g.lastReport = report
	g.mu.Unlock()

	return report, ctx.Err()
}

// RunForUser scores the listings of a single user
func (g *SnapshotGenerator) RunForUser(ctx context.Context, userID string, now time.Time) (*GenerationReport, error) {
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	started := time.Now()
	report := &GenerationReport{StartedAt: now, Failed: []FailedListing{}}
	g.runUser(ctx, *user, now, report)
	report.Users = 1
	report.Duration = time.Since(started)
	return report, nil
}

func (g *SnapshotGenerator) runUser(ctx context.Context, user models.User, now time.Time, report *GenerationReport) {
	log := g.logger.WithField("user_id", user.ID)

	listings, err := g.listings.ListTrackedListings(ctx, user.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to list tracked listings")
		report.addFailure(FailedListing{UserID: user.ID, Error: err.Error()})
		return
	}

	weights := models.DefaultDriverWeights()
	if w, err := g.users.GetDriverWeights(ctx, user.ID); err != nil {
		log.WithError(err).Warn("Failed to load driver weights, using defaults")
	} else if w != nil {
		weights = NormalizeWeights(*w)
	}

	prevWindow, currWindow := ComparisonWindows(now, g.cfg.WindowDays)

	var (
		mu        sync.Mutex
		snapshots []models.Snapshot
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.MaxConcurrency)
	for _, l := range listings {
		listing := l
		eg.Go(func() error {
			snap, err := g.processListing(egCtx, user.ID, listing, weights, prevWindow, currWindow, now)
			if err != nil {
				log.WithFields(logrus.Fields{
					"asin":       listing.ASIN,
					"listing_id": listing.ID,
				}).WithError(err).Warn("Failed to generate snapshot")
				report.addFailure(FailedListing{
					UserID:    user.ID,
					ListingID: listing.ID,
					ASIN:      listing.ASIN,
					Error:     err.Error(),
				})
				return nil
			}
			report.addProcessed()
			mu.Lock()
			snapshots = append(snapshots, *snap)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	g.sendDigest(ctx, user, snapshots)
}

func (g *SnapshotGenerator) processListing(
	ctx context.Context,
	userID string,
	listing models.Listing,
	weights models.DriverWeights,
	prevWindow, currWindow Window,
	now time.Time,
) (*models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ListingTimeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "snapshot_generator.listing",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("asin", listing.ASIN),
		))
	defer span.End()

	var prevSamples, currSamples []models.Sample
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		prevSamples, err = g.readWindow(egCtx, listing.ID, prevWindow)
		return err
	})
	eg.Go(func() error {
		var err error
		currSamples, err = g.readWindow(egCtx, listing.ID, currWindow)
		return err
	})
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	in := SnapshotInput{
		UserID:      userID,
		Listing:     listing,
		Prev:        prevWindow,
		Curr:        currWindow,
		Weights:     weights,
		AlgoVersion: g.cfg.AlgoVersion,
		Now:         now,
	}
	snap := BuildSnapshotFromAggregates(in,
		AggregateWindow(prevSamples, prevWindow, &listing),
		AggregateWindow(currSamples, currWindow, &listing),
	)

	if err := g.store.InsertSnapshot(ctx, &snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	if err := g.store.UpsertDailyRollup(ctx, BuildDailyRollup(snap)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to upsert daily rollup: %w", err)
	}

	span.SetAttributes(
		attribute.String("status", string(snap.Status)),
		attribute.Float64("net_impact", snap.NetImpact),
	)
	return &snap, nil
}

func (g *SnapshotGenerator) readWindow(ctx context.Context, listingID int64, w Window) ([]models.Sample, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return g.samples.GetSamples(ctx, listingID, w.Start, w.End)
}

func (g *SnapshotGenerator) sendDigest(ctx context.Context, user models.User, snapshots []models.Snapshot) {
	if g.digest == nil || user.TelegramChatID == nil || len(snapshots) == 0 {
		return
	}

	ledger := models.NewFeedbackLedger()
	if g.ledgers != nil {
		loaded, err := g.ledgers.Load(ctx, user.ID)
		if err != nil {
			g.logger.WithField("user_id", user.ID).WithError(err).Warn("Failed to load feedback ledger for digest")
		} else if loaded != nil {
			ledger = loaded
		}
	}

	opts := g.ranker.Options()
	opts.RecommendedOnly = true
	candidates := g.ranker.Rank(snapshots, ledger, opts)
	if len(candidates) == 0 {
		return
	}

	if err := g.digest.SendDigest(ctx, user, candidates); err != nil {
		g.logger.WithField("user_id", user.ID).WithError(err).Warn("Failed to send notification digest")
	}
}
