package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	"CoinPull/internal/service/demo"
)

type fakeSource struct {
	pingErr    error
	listErr    error
	listings   []drepo.MarketListing
	historyErr map[string]error
	block      chan struct{}

	mu       sync.Mutex
	requests []string
}

func (f *fakeSource) Ping(context.Context) error { return f.pingErr }

func (f *fakeSource) TopMarkets(_ context.Context, limit int) ([]drepo.MarketListing, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.listings) > limit {
		return f.listings[:limit], nil
	}
	return f.listings, nil
}

func (f *fakeSource) History(_ context.Context, id string, days int) ([]models.PricePoint, error) {
	f.mu.Lock()
	f.requests = append(f.requests, id)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if err := f.historyErr[id]; err != nil {
		return nil, err
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Out of order on purpose.
	return []models.PricePoint{
		{Timestamp: base.AddDate(0, 0, 2), Price: 12},
		{Timestamp: base, Price: 10},
		{Timestamp: base.AddDate(0, 0, 1), Price: 11},
	}, nil
}

type recordingMetrics struct {
	mu           sync.Mutex
	acquisitions []string
	failures     []string
}

func (m *recordingMetrics) RecordAcquisition(mode, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquisitions = append(m.acquisitions, mode+":"+outcome)
}

func (m *recordingMetrics) RecordItemFailure(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, kind)
}

func (m *recordingMetrics) RecordLastPrice(string, float64) {}
func (m *recordingMetrics) RecordLatency(string, float64) {}

func threeListings() []drepo.MarketListing {
	return []drepo.MarketListing{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", CurrentPrice: 45000, Rank: 1},
		{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", CurrentPrice: 3200, Rank: 2},
		{ID: "tether", Name: "Tether", Symbol: "USDT", CurrentPrice: 1, Rank: 3},
	}
}

type sleepCounter struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepCounter) sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

func newTestOrchestrator(src drepo.MarketSource, sleeper *sleepCounter, metrics drepo.Metrics) *Orchestrator {
	return NewOrchestrator(src, demo.NewGenerator(demo.WithSeed(1)), metrics, nil, OrchestratorConfig{},
		WithSleeper(sleeper.sleep),
		WithIDGenerator(func() string { return "attempt-1" }),
	)
}

func collect(t *testing.T, o *Orchestrator, mode models.Mode) ([]models.ProgressEvent, *models.Batch, error) {
	t.Helper()
	var events []models.ProgressEvent
	batch, err := o.Acquire(context.Background(), mode, func(ev models.ProgressEvent) {
		events = append(events, ev)
	})
	return events, batch, err
}

func countKind(events []models.ProgressEvent, kind models.EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func assertFramed(t *testing.T, events []models.ProgressEvent) {
	t.Helper()
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventStarted, events[0].Kind)
	assert.Equal(t, models.EventDone, events[len(events)-1].Kind)
	assert.Equal(t, 1, countKind(events, models.EventStarted))
	assert.Equal(t, 1, countKind(events, models.EventDone))
	for _, ev := range events {
		assert.Equal(t, "attempt-1", ev.AttemptID)
	}
}

func TestAcquireLiveAllSucceed(t *testing.T) {
	src := &fakeSource{listings: threeListings()}
	sleeper := &sleepCounter{}
	o := newTestOrchestrator(src, sleeper, nil)

	events, batch, err := collect(t, o, models.ModeLive)
	require.NoError(t, err)
	assertFramed(t, events)

	require.Equal(t, 3, batch.Len())
	assert.Equal(t, models.ModeLive, batch.Mode)
	assert.Equal(t, "attempt-1", batch.AttemptID)
	assert.Equal(t, []string{"bitcoin", "ethereum", "tether"}, src.requests)

	series := batch.Assets[0].Series
	require.Len(t, series, 3)
	assert.Equal(t, []float64{10, 11, 12}, batch.Assets[0].Prices())

	assert.Equal(t, []time.Duration{DefaultRequestDelay, DefaultRequestDelay, DefaultRequestDelay}, sleeper.calls)
	assert.False(t, o.Running())
}

func TestAcquireRateLimitedItemIsSkipped(t *testing.T) {
	src := &fakeSource{
		listings: threeListings(),
		historyErr: map[string]error{
			"ethereum": &models.RateLimitError{RetryAfter: 30 * time.Second},
		},
	}
	metrics := &recordingMetrics{}
	sleeper := &sleepCounter{}
	o := newTestOrchestrator(src, sleeper, metrics)

	events, batch, err := collect(t, o, models.ModeLive)
	require.NoError(t, err)
	assertFramed(t, events)

	require.Equal(t, 2, batch.Len())
	assert.Equal(t, "bitcoin", batch.Assets[0].ID)
	assert.Equal(t, "tether", batch.Assets[1].ID)

	require.Equal(t, 1, countKind(events, models.EventRateLimited))
	assert.Zero(t, countKind(events, models.EventFetchFailed))
	for _, ev := range events {
		if ev.Kind == models.EventRateLimited {
			assert.Equal(t, "ethereum", ev.AssetID)
			assert.Equal(t, 2, ev.Index)
			assert.Equal(t, 3, ev.Total)
			assert.Equal(t, 30*time.Second, ev.CoolDown)
		}
	}
	assert.Len(t, sleeper.calls, 3)
	assert.Equal(t, []string{"rate_limited"}, metrics.failures)
	assert.Equal(t, []string{"live:ok"}, metrics.acquisitions)
}

func TestAcquireRateLimitedWithoutHintUsesDefaultCoolDown(t *testing.T) {
	src := &fakeSource{
		listings:   threeListings(),
		historyErr: map[string]error{"bitcoin": &models.RateLimitError{}},
	}
	o := newTestOrchestrator(src, &sleepCounter{}, nil)

	events, batch, err := collect(t, o, models.ModeLive)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())
	for _, ev := range events {
		if ev.Kind == models.EventRateLimited {
			assert.Equal(t, DefaultCoolDown, ev.CoolDown)
		}
	}
}

func TestAcquireAllItemsFail(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		listings: threeListings(),
		historyErr: map[string]error{
			"bitcoin":  boom,
			"ethereum": &models.RateLimitError{},
			"tether":   boom,
		},
	}
	sleeper := &sleepCounter{}
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(src, sleeper, metrics)

	events, batch, err := collect(t, o, models.ModeLive)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, models.ErrNoData)
	assertFramed(t, events)
	assert.Equal(t, 2, countKind(events, models.EventFetchFailed))
	assert.Equal(t, 1, countKind(events, models.EventRateLimited))
	assert.Len(t, sleeper.calls, 3)
	assert.Equal(t, []string{"live:no_data"}, metrics.acquisitions)

	done := events[len(events)-1]
	assert.ErrorIs(t, done.Err, models.ErrNoData)
	assert.Contains(t, done.Message, "demo mode")
}

func TestAcquirePingFailure(t *testing.T) {
	src := &fakeSource{pingErr: errors.New("dial tcp: refused"), listings: threeListings()}
	sleeper := &sleepCounter{}
	o := newTestOrchestrator(src, sleeper, nil)

	events, batch, err := collect(t, o, models.ModeLive)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, models.ErrConnectivity)
	assertFramed(t, events)
	assert.Empty(t, src.requests)
	assert.Empty(t, sleeper.calls)
}

func TestAcquireEmptyList(t *testing.T) {
	src := &fakeSource{}
	o := newTestOrchestrator(src, &sleepCounter{}, nil)

	events, batch, err := collect(t, o, models.ModeLive)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, models.ErrNoData)
	assertFramed(t, events)
}

func TestAcquireListFailureIsFatal(t *testing.T) {
	src := &fakeSource{listErr: &models.RateLimitError{RetryAfter: time.Minute}}
	o := newTestOrchestrator(src, &sleepCounter{}, nil)

	_, batch, err := collect(t, o, models.ModeLive)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestAcquireSkipsInvalidAndDuplicateListings(t *testing.T) {
	listings := threeListings()
	listings[1].Invalid = errors.New("current_price must be positive")
	listings[2].ID = "bitcoin"
	src := &fakeSource{listings: listings}
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(src, &sleepCounter{}, metrics)

	events, batch, err := collect(t, o, models.ModeLive)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())
	assert.Equal(t, 2, countKind(events, models.EventFetchFailed))
	assert.Equal(t, []string{"bitcoin"}, src.requests)
	assert.ElementsMatch(t, []string{"invalid", "duplicate"}, metrics.failures)
}

func TestAcquireHonoursConfiguredTopK(t *testing.T) {
	listings := append(threeListings(), drepo.MarketListing{ID: "solana", Name: "Solana", CurrentPrice: 95, Rank: 4})
	src := &fakeSource{listings: listings}
	o := NewOrchestrator(src, nil, nil, nil, OrchestratorConfig{TopK: 4}, WithSleeper(func(time.Duration) {}))

	batch, err := o.Acquire(context.Background(), models.ModeLive, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, batch.Len())
}

func TestAcquireCancelledBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{listings: threeListings()}
	calls := 0
	o := NewOrchestrator(src, nil, nil, nil, OrchestratorConfig{},
		WithSleeper(func(time.Duration) {
			calls++
			cancel()
		}))

	batch, err := o.Acquire(ctx, models.ModeLive, nil)
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, models.ErrCancelled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"bitcoin"}, src.requests)
}

func TestStartRejectsConcurrentAttempt(t *testing.T) {
	src := &fakeSource{listings: threeListings(), block: make(chan struct{})}
	metrics := &recordingMetrics{}
	o := newTestOrchestrator(src, &sleepCounter{}, metrics)

	ch, err := o.Start(context.Background(), models.ModeLive)
	require.NoError(t, err)
	assert.True(t, o.Running())

	_, err = o.Start(context.Background(), models.ModeDemo)
	assert.ErrorIs(t, err, models.ErrBusy)

	close(src.block)
	var last models.ProgressEvent
	for ev := range ch {
		last = ev
	}
	assert.Equal(t, models.EventDone, last.Kind)
	require.NoError(t, last.Err)
	assert.False(t, o.Running())

	_, batch, err := collect(t, o, models.ModeDemo)
	require.NoError(t, err)
	assert.Equal(t, 10, batch.Len())
	assert.Contains(t, metrics.acquisitions, "demo:busy")
}

func TestAcquireDemo(t *testing.T) {
	src := &fakeSource{pingErr: errors.New("offline")}
	sleeper := &sleepCounter{}
	o := newTestOrchestrator(src, sleeper, nil)

	events, batch, err := collect(t, o, models.ModeDemo)
	require.NoError(t, err)
	assertFramed(t, events)
	require.Equal(t, 10, batch.Len())
	assert.Equal(t, models.ModeDemo, batch.Mode)
	for _, a := range batch.Assets {
		assert.Len(t, a.Series, demo.SeriesLength)
	}
	assert.Empty(t, src.requests)
	assert.Empty(t, sleeper.calls)
}

func TestStartRejectsUnknownMode(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{}, &sleepCounter{}, nil)
	_, err := o.Start(context.Background(), models.Mode("paper"))
	assert.Error(t, err)
	assert.False(t, o.Running())
}
