package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/services/features"
	"CoinPull/pkg/logger"
)

const (
	DefaultTopK         = 3
	DefaultHistoryDays  = 30
	DefaultRequestDelay = 1500 * time.Millisecond
	DefaultCoolDown     = 2 * time.Minute

	eventBuffer = 16
)

// OrchestratorConfig tunes the live acquisition protocol.
type OrchestratorConfig struct {
	TopK            int
	HistoryDays     int
	RequestDelay    time.Duration
	DefaultCoolDown time.Duration
}

func (c OrchestratorConfig) withDefaults() OrchestratorConfig {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.RequestDelay <= 0 {
		c.RequestDelay = DefaultRequestDelay
	}
	if c.DefaultCoolDown <= 0 {
		c.DefaultCoolDown = DefaultCoolDown
	}
	return c
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSleeper replaces the delay between items.
func WithSleeper(sleep func(time.Duration)) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock replaces the event and batch time source.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the attempt id generator.
func WithIDGenerator(gen func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = gen }
}

// Orchestrator runs acquisition attempts on a worker goroutine. At most one
// attempt is in flight at any time; a concurrent Start is rejected with
// models.ErrBusy.
type Orchestrator struct {
	source  drepo.MarketSource
	demo    drepo.DemoSource
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     OrchestratorConfig

	sleep func(time.Duration)
	now   func() time.Time
	newID func() string

	running atomic.Bool
}

// NewOrchestrator creates a new Orchestrator instance.
func NewOrchestrator(
	source drepo.MarketSource,
	demo drepo.DemoSource,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg OrchestratorConfig,
	opts ...OrchestratorOption,
) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	o := &Orchestrator{
		source:  source,
		demo:    demo,
		metrics: metrics,
		log:     log,
		cfg:     cfg.withDefaults(),
		sleep:   time.Sleep,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether an attempt is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Start launches one acquisition attempt and returns its ordered event
// stream. The stream begins with EventStarted, ends with EventDone and is
// closed afterwards; callers must drain it.
func (o *Orchestrator) Start(ctx context.Context, mode models.Mode) (<-chan models.ProgressEvent, error) {
	if !drepo.IsValidMode(mode) {
		return nil, fmt.Errorf("unknown acquisition mode %q", mode)
	}
	if mode == models.ModeLive && o.source == nil {
		return nil, fmt.Errorf("live mode: %w", models.ErrConnectivity)
	}
	if mode == models.ModeDemo && o.demo == nil {
		return nil, errors.New("demo mode is not configured")
	}
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RecordAcquisition(string(mode), "busy")
		return nil, models.ErrBusy
	}

	a := &attempt{
		o:    o,
		id:   o.newID(),
		mode: mode,
		ch:   make(chan models.ProgressEvent, eventBuffer),
	}
	go a.run(ctx)
	return a.ch, nil
}

// Acquire runs one attempt to completion, calling sink for every event on the
// caller's goroutine, and returns the terminal result.
func (o *Orchestrator) Acquire(ctx context.Context, mode models.Mode, sink func(models.ProgressEvent)) (*models.Batch, error) {
	ch, err := o.Start(ctx, mode)
	if err != nil {
		return nil, err
	}
	var (
		batch  *models.Batch
		result error
	)
	for ev := range ch {
		if sink != nil {
			sink(ev)
		}
		if ev.Terminal() {
			batch, result = ev.Batch, ev.Err
		}
	}
	return batch, result
}

type attempt struct {
	o    *Orchestrator
	id   string
	mode models.Mode
	ch   chan models.ProgressEvent
}

func (a *attempt) emit(ev models.ProgressEvent) {
	ev.AttemptID = a.id
	ev.At = a.o.now()
	a.ch <- ev
}

func (a *attempt) run(ctx context.Context) {
	start := a.o.now()
	a.emit(models.ProgressEvent{Kind: models.EventStarted, Message: fmt.Sprintf("Starting %s acquisition", a.mode)})

	var (
		batch *models.Batch
		err   error
	)
	switch a.mode {
	case models.ModeDemo:
		batch = a.runDemo()
	default:
		batch, err = a.runLive(ctx)
	}

	outcome := outcomeOf(err)
	a.o.metrics.RecordAcquisition(string(a.mode), outcome)
	a.o.metrics.RecordLatency("acquire_"+string(a.mode), a.o.now().Sub(start).Seconds())

	done := models.ProgressEvent{Kind: models.EventDone, Batch: batch, Err: err}
	if err != nil {
		done.Message = models.UserMessage(err)
		a.o.log.Warn("acquisition failed",
			logger.String("attempt_id", a.id),
			logger.String("mode", string(a.mode)),
			logger.String("outcome", outcome),
			logger.Error(err))
	} else {
		done.Message = fmt.Sprintf("Loaded %d assets", batch.Len())
		done.Total = batch.Len()
		a.o.log.Info("acquisition finished",
			logger.String("attempt_id", a.id),
			logger.String("mode", string(a.mode)),
			logger.Int("assets", batch.Len()))
	}

	a.o.running.Store(false)
	a.emit(done)
	close(a.ch)
}

func (a *attempt) runDemo() *models.Batch {
	a.emit(models.ProgressEvent{Kind: models.EventStatus, Message: "Generating demo data"})
	assets := a.o.demo.Generate()
	return &models.Batch{AttemptID: a.id, Mode: models.ModeDemo, AcquiredAt: a.o.now().UTC(), Assets: assets}
}

func (a *attempt) runLive(ctx context.Context) (*models.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrCancelled, err)
	}

	a.emit(models.ProgressEvent{Kind: models.EventStatus, Message: "Checking API connectivity"})
	if err := a.o.source.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrConnectivity, err)
	}

	k := a.o.cfg.TopK
	a.emit(models.ProgressEvent{Kind: models.EventStatus, Message: fmt.Sprintf("Fetching top %d assets", k)})
	listings, err := a.o.source.TopMarkets(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("ranked list: %w", err)
	}
	if len(listings) == 0 {
		return nil, models.ErrNoData
	}
	if len(listings) > k {
		listings = listings[:k]
	}

	total := len(listings)
	assets := make([]models.Asset, 0, total)
	seen := make(map[string]bool, total)
	for i, l := range listings {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		if asset, ok := a.fetchItem(ctx, l, i+1, total, seen); ok {
			assets = append(assets, asset)
		}
		a.o.sleep(a.o.cfg.RequestDelay)
	}

	if len(assets) == 0 {
		return nil, models.ErrNoData
	}
	return &models.Batch{AttemptID: a.id, Mode: models.ModeLive, AcquiredAt: a.o.now().UTC(), Assets: assets}, nil
}

// fetchItem turns one listing into an asset. Failures are reported as events
// and never retried.
func (a *attempt) fetchItem(ctx context.Context, l drepo.MarketListing, index, total int, seen map[string]bool) (models.Asset, bool) {
	base := models.ProgressEvent{AssetID: l.ID, Index: index, Total: total}

	fail := func(kind string, msg string) {
		ev := base
		ev.Kind = models.EventFetchFailed
		ev.Message = msg
		a.o.metrics.RecordItemFailure(kind)
		a.emit(ev)
	}

	if l.Invalid != nil {
		fail("invalid", fmt.Sprintf("Skipping %s: %v", displayName(l), l.Invalid))
		return models.Asset{}, false
	}
	if seen[l.ID] {
		fail("duplicate", fmt.Sprintf("Skipping %s: duplicate id", displayName(l)))
		return models.Asset{}, false
	}
	seen[l.ID] = true

	ev := base
	ev.Kind = models.EventStatus
	ev.Message = fmt.Sprintf("Fetching history for %s (%d/%d)", displayName(l), index, total)
	a.emit(ev)

	points, err := a.o.source.History(ctx, l.ID, a.o.cfg.HistoryDays)
	if err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			coolDown := a.o.cfg.DefaultCoolDown
			var rl *models.RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > 0 {
				coolDown = rl.RetryAfter
			}
			ev := base
			ev.Kind = models.EventRateLimited
			ev.CoolDown = coolDown
			ev.Message = fmt.Sprintf("Rate limited on %s, wait %s before retrying", displayName(l), coolDown)
			a.o.metrics.RecordItemFailure("rate_limited")
			a.emit(ev)
			return models.Asset{}, false
		}
		fail("fetch_failed", fmt.Sprintf("Failed to fetch %s: %v", displayName(l), err))
		return models.Asset{}, false
	}

	a.o.metrics.RecordLastPrice(l.Symbol, l.CurrentPrice)
	return models.Asset{
		ID:           l.ID,
		DisplayName:  l.Name,
		Symbol:       l.Symbol,
		CurrentPrice: l.CurrentPrice,
		MarketCap:    l.MarketCap,
		Volume24h:    l.Volume24h,
		Change24hPct: l.Change24hPct,
		Rank:         l.Rank,
		Series:       features.SortSeries(points),
	}, true
}

func displayName(l drepo.MarketListing) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrCancelled):
		return "cancelled"
	case errors.Is(err, models.ErrConnectivity):
		return "connectivity"
	case errors.Is(err, models.ErrNoData):
		return "no_data"
	case errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, models.ErrFetchFailed):
		return "fetch_failed"
	default:
		return "error"
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordAcquisition(string, string) {}
func (nopMetrics) RecordItemFailure(string) {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}
