package repository

import (
	"context"

	"CoinPull/internal/domain/models"
)

// MarketListing is one entry of the ranked market list, before its history
// is known.
type MarketListing struct {
	ID           string
	Name         string
	Symbol       string
	CurrentPrice float64
	MarketCap    float64
	Volume24h    float64
	Change24hPct float64
	Rank         int

	// Invalid is set when the entry failed validation and must be skipped.
	Invalid error
}

// MarketSource is the remote market-data API.
type MarketSource interface {
	Ping(ctx context.Context) error
	TopMarkets(ctx context.Context, limit int) ([]MarketListing, error)
	History(ctx context.Context, id string, days int) ([]models.PricePoint, error)
}

// DemoSource synthesizes an offline set of assets with their series.
type DemoSource interface {
	Generate() []models.Asset
}

// SnapshotPublisher exports finished snapshots to an external sink.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, s *models.Snapshot) error
	Close() error
}

type Metrics interface {
	RecordAcquisition(mode, outcome string)
	RecordItemFailure(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
