package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/services/forecast"
	"CoinPull/pkg/cache"
	"CoinPull/pkg/logger"
)

const (
	defaultLockKey        = "lock:acquire"
	defaultLockTTL        = 10 * time.Minute
	defaultReportTTL      = time.Hour
	defaultPublishTimeout = 10 * time.Second
)

// AnalysisConfig tunes AnalysisService.
type AnalysisConfig struct {
	Horizon        int
	LockKey        string
	LockTTL        time.Duration
	ReportTTL      time.Duration
	PublishTimeout time.Duration
}

func (c AnalysisConfig) withDefaults() AnalysisConfig {
	if c.Horizon < 1 {
		c.Horizon = forecast.DefaultHorizon
	}
	if c.LockKey == "" {
		c.LockKey = defaultLockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaultLockTTL
	}
	if c.ReportTTL <= 0 {
		c.ReportTTL = defaultReportTTL
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	return c
}

// AnalysisService runs acquisitions, turns each successful batch into a
// snapshot and publishes it. Readers always see a complete snapshot.
type AnalysisService struct {
	orch       *Orchestrator
	forecaster domsvc.Forecaster
	reports    domsvc.ReportBuilder
	publisher  drepo.SnapshotPublisher
	cache      cache.Service
	hub        *ProgressHub
	log        *logger.Logger
	cfg        AnalysisConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	snapshot atomic.Pointer[models.Snapshot]
	newOwner func() string

	mu     sync.Mutex
	status models.AcquisitionStatus
}

// NewAnalysisService creates a new AnalysisService instance. publisher and
// cache may be nil.
func NewAnalysisService(
	orch *Orchestrator,
	forecaster domsvc.Forecaster,
	reports domsvc.ReportBuilder,
	publisher drepo.SnapshotPublisher,
	c cache.Service,
	hub *ProgressHub,
	log *logger.Logger,
	cfg AnalysisConfig,
) *AnalysisService {
	if log == nil {
		log = logger.NewNop()
	}
	if hub == nil {
		hub = NewProgressHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AnalysisService{
		orch:       orch,
		forecaster: forecaster,
		reports:    reports,
		publisher:  publisher,
		cache:      c,
		hub:        hub,
		log:        log,
		cfg:        cfg.withDefaults(),
		ctx:        ctx,
		cancel:     cancel,
		newOwner:   uuid.NewString,
	}
}

// Hub returns the progress fan-out shared by every attempt.
func (s *AnalysisService) Hub() *ProgressHub { return s.hub }

// Refresh starts an acquisition in the background and returns its attempt id.
func (s *AnalysisService) Refresh(ctx context.Context, req models.RefreshRequest) (string, error) {
	mode, horizon, err := s.resolve(req)
	if err != nil {
		return "", err
	}
	owner, err := s.lock(ctx)
	if err != nil {
		return "", err
	}

	ch, err := s.orch.Start(s.ctx, mode)
	if err != nil {
		s.unlock(owner)
		return "", err
	}

	first := <-ch
	s.hub.Publish(first)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unlock(owner)
		for ev := range ch {
			s.hub.Publish(ev)
			if ev.Terminal() {
				s.finish(mode, horizon, ev)
			}
		}
	}()
	return first.AttemptID, nil
}

// RefreshSync runs one acquisition on the caller's goroutine and returns the
// resulting snapshot.
func (s *AnalysisService) RefreshSync(ctx context.Context, req models.RefreshRequest, sink func(models.ProgressEvent)) (*models.Snapshot, error) {
	mode, horizon, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	owner, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer s.unlock(owner)

	var done models.ProgressEvent
	_, err = s.orch.Acquire(ctx, mode, func(ev models.ProgressEvent) {
		s.hub.Publish(ev)
		if sink != nil {
			sink(ev)
		}
		if ev.Terminal() {
			done = ev
		}
	})
	if err != nil && done.Kind != models.EventDone {
		// rejected before the attempt started
		return nil, err
	}
	return s.finish(mode, horizon, done), err
}

// Analyze computes forecasts and the report for a batch.
func (s *AnalysisService) Analyze(batch *models.Batch, horizon int) *models.Snapshot {
	if horizon < 1 {
		horizon = s.cfg.Horizon
	}
	forecasts := forecast.ForecastBatch(s.forecaster, batch, horizon)
	if forecasts == nil {
		forecasts = []models.Forecast{}
	}
	return &models.Snapshot{
		Batch:     batch,
		Forecasts: forecasts,
		Report:    s.reports.Build(batch, forecasts),
		Horizon:   horizon,
	}
}

// Snapshot returns the latest snapshot.
func (s *AnalysisService) Snapshot() (*models.Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, models.ErrNoSnapshot
	}
	return snap, nil
}

// Report returns the report of the latest snapshot, going through the cache
// when one is configured.
func (s *AnalysisService) Report(ctx context.Context) (models.Report, string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return models.Report{}, "", err
	}
	id := snap.Batch.AttemptID
	if s.cache == nil {
		return snap.Report, id, nil
	}

	key := cache.Key("report", id)
	var cached models.Report
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, id, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("report cache read failed", logger.String("key", key), logger.Error(err))
	}
	if err := s.cache.Set(ctx, key, snap.Report, s.cfg.ReportTTL); err != nil {
		s.log.Warn("report cache write failed", logger.String("key", key), logger.Error(err))
	}
	return snap.Report, id, nil
}

// Status reports whether an attempt is running and how the last one ended.
func (s *AnalysisService) Status() models.AcquisitionStatus {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()

	st.Running = s.orch.Running()
	if snap := s.snapshot.Load(); snap != nil {
		st.SnapshotAttempt = snap.Batch.AttemptID
		st.SnapshotAssets = snap.Batch.Len()
	}
	return st
}

// Close cancels the running attempt, waits for it and disconnects the
// progress subscribers.
func (s *AnalysisService) Close() {
	s.cancel()
	s.wg.Wait()
	s.hub.Close()
}

func (s *AnalysisService) resolve(req models.RefreshRequest) (models.Mode, int, error) {
	mode := models.Mode(req.Mode)
	if mode == "" {
		mode = drepo.DefaultMode()
	}
	if !drepo.IsValidMode(mode) {
		return "", 0, fmt.Errorf("unknown acquisition mode %q", req.Mode)
	}
	horizon := req.Horizon
	if horizon < 1 {
		horizon = s.cfg.Horizon
	}
	return mode, horizon, nil
}

func (s *AnalysisService) finish(mode models.Mode, horizon int, done models.ProgressEvent) *models.Snapshot {
	s.mu.Lock()
	s.status.LastAttemptID = done.AttemptID
	s.status.LastMode = mode
	s.status.LastOutcome = outcomeOf(done.Err)
	s.status.LastMessage = done.Message
	s.status.LastFinishedAt = done.At
	s.mu.Unlock()

	if done.Err != nil || done.Batch == nil {
		return nil
	}

	snap := s.Analyze(done.Batch, horizon)
	s.snapshot.Store(snap)
	s.export(snap)
	return snap
}

func (s *AnalysisService) export(snap *models.Snapshot) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishSnapshot(ctx, snap); err != nil {
		s.log.Error("publish snapshot failed",
			logger.String("attempt_id", snap.Batch.AttemptID),
			logger.Error(err))
	}
}

// lock takes the shared acquisition lock and returns the owner token needed
// to release it. An empty token means no shared lock is held.
func (s *AnalysisService) lock(ctx context.Context) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	owner := s.newOwner()
	ok, err := s.cache.TryLock(ctx, s.cfg.LockKey, owner, s.cfg.LockTTL)
	if err != nil {
		// shared lock unavailable, fall back to the in-process guard
		s.log.Warn("acquisition lock unavailable", logger.Error(err))
		return "", nil
	}
	if !ok {
		return "", models.ErrBusy
	}
	return owner, nil
}

func (s *AnalysisService) unlock(owner string) {
	if s.cache == nil || owner == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.cache.Unlock(ctx, s.cfg.LockKey, owner)
	switch {
	case errors.Is(err, cache.ErrLockNotHeld):
		s.log.Warn("acquisition lock expired before release",
			logger.String("key", s.cfg.LockKey),
			logger.Duration("lock_ttl", s.cfg.LockTTL))
	case err != nil:
		s.log.Warn("acquisition unlock failed", logger.Error(err))
	}
}
