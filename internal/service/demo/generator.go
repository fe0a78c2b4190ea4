// Package demo synthesizes an offline batch so the analysis can run without
// the network.
package demo

import (
	"math/rand"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
)

const (
	// SeriesLength is the number of daily points generated per asset.
	SeriesLength = 30
	// DailySigma is the standard deviation of the daily perturbation.
	DailySigma = 0.05
	// MaxDeviation bounds the perturbation around the current price.
	MaxDeviation = 0.25
	// FloorRatio keeps generated prices above this share of the current price.
	FloorRatio = 0.5
)

// Assets is the fixed demo universe, ordered by rank.
var Assets = []models.Asset{
	{ID: "bitcoin", DisplayName: "Bitcoin", Symbol: "BTC", CurrentPrice: 45000, MarketCap: 850000000000, Volume24h: 25000000000, Change24hPct: 2.5, Rank: 1},
	{ID: "ethereum", DisplayName: "Ethereum", Symbol: "ETH", CurrentPrice: 3200, MarketCap: 380000000000, Volume24h: 18000000000, Change24hPct: 1.8, Rank: 2},
	{ID: "binancecoin", DisplayName: "BNB", Symbol: "BNB", CurrentPrice: 320, MarketCap: 48000000000, Volume24h: 1200000000, Change24hPct: -0.5, Rank: 3},
	{ID: "cardano", DisplayName: "Cardano", Symbol: "ADA", CurrentPrice: 0.45, MarketCap: 16000000000, Volume24h: 800000000, Change24hPct: 3.2, Rank: 4},
	{ID: "solana", DisplayName: "Solana", Symbol: "SOL", CurrentPrice: 95, MarketCap: 41000000000, Volume24h: 2500000000, Change24hPct: 4.1, Rank: 5},
	{ID: "ripple", DisplayName: "XRP", Symbol: "XRP", CurrentPrice: 0.52, MarketCap: 28000000000, Volume24h: 1500000000, Change24hPct: -1.2, Rank: 6},
	{ID: "polkadot", DisplayName: "Polkadot", Symbol: "DOT", CurrentPrice: 7.2, MarketCap: 9000000000, Volume24h: 400000000, Change24hPct: 2.8, Rank: 7},
	{ID: "dogecoin", DisplayName: "Dogecoin", Symbol: "DOGE", CurrentPrice: 0.08, MarketCap: 11000000000, Volume24h: 600000000, Change24hPct: 1.5, Rank: 8},
	{ID: "avalanche", DisplayName: "Avalanche", Symbol: "AVAX", CurrentPrice: 35, MarketCap: 12000000000, Volume24h: 800000000, Change24hPct: 5.2, Rank: 9},
	{ID: "chainlink", DisplayName: "Chainlink", Symbol: "LINK", CurrentPrice: 15, MarketCap: 8500000000, Volume24h: 500000000, Change24hPct: -0.8, Rank: 10},
}

// Generator builds demo batches. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// Option configures Generator.
type Option func(*Generator)

// WithSeed makes the generated series reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rnd = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the demo assets with freshly generated series.
func (g *Generator) Generate() []models.Asset {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	out := make([]models.Asset, 0, len(Assets))
	for _, base := range Assets {
		a := base
		a.Series = make([]models.PricePoint, SeriesLength)
		for i := 0; i < SeriesLength; i++ {
			a.Series[i] = models.PricePoint{
				Timestamp: now.AddDate(0, 0, i-SeriesLength),
				Price:     g.perturb(base.CurrentPrice),
			}
		}
		out = append(out, a)
	}
	return out
}

func (g *Generator) perturb(base float64) float64 {
	v := g.rnd.NormFloat64() * DailySigma
	if v > MaxDeviation {
		v = MaxDeviation
	}
	if v < -MaxDeviation {
		v = -MaxDeviation
	}
	p := base * (1 + v)
	if floor := base * FloorRatio; p < floor {
		p = floor
	}
	return p
}
