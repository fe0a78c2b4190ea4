// Package report derives summary statistics and rankings from a batch and
// its forecasts.
package report

import (
	"math"
	"sort"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/internal/services/features"

	"github.com/shopspring/decimal"
)

const (
	// TopMoversLimit caps the forecast ranking.
	TopMoversLimit = 5
	// HighVolatilityThreshold is the |24h change| above which an asset is flagged.
	HighVolatilityThreshold = 10.0
)

// Aggregator builds reports. It holds no state between calls.
type Aggregator struct{}

func NewAggregator() *Aggregator { return &Aggregator{} }

// Build computes a fresh report from batch and forecasts.
func (Aggregator) Build(batch *models.Batch, forecasts []models.Forecast) models.Report {
	return Build(batch, forecasts)
}

// Build computes a fresh report. Nil or empty input yields zeroed aggregates.
func Build(batch *models.Batch, forecasts []models.Forecast) models.Report {
	var assets []models.Asset
	if batch != nil {
		assets = batch.Assets
	}

	r := models.Report{
		AssetCount:     len(assets),
		Volatility:     make([]models.AssetVolatility, 0, len(assets)),
		TopMovers:      []models.RankedForecast{},
		HighVolatility: []models.VolatileAsset{},
	}

	capSum, volSum := decimal.Zero, decimal.Zero
	changes := make([]float64, 0, len(assets))
	for _, a := range assets {
		capSum = capSum.Add(decimal.NewFromFloat(a.MarketCap))
		volSum = volSum.Add(decimal.NewFromFloat(a.Volume24h))
		changes = append(changes, a.Change24hPct)

		prices := a.Prices()
		s := features.Stats(prices)
		r.Volatility = append(r.Volatility, models.AssetVolatility{
			AssetID:           a.ID,
			DisplayName:       a.DisplayName,
			Symbol:            a.Symbol,
			Low:               s.Low,
			High:              s.High,
			Mean:              s.Mean,
			VolatilityPct:     features.RangeVolatility(prices),
			DailyReturnStdPct: features.StdDev(features.ComputeLogReturns(prices)) * 100,
		})

		if math.Abs(a.Change24hPct) > HighVolatilityThreshold {
			r.HighVolatility = append(r.HighVolatility, models.VolatileAsset{
				AssetID:      a.ID,
				DisplayName:  a.DisplayName,
				Change24hPct: a.Change24hPct,
			})
		}
	}
	r.TotalMarketCap = capSum.InexactFloat64()
	r.TotalVolume = volSum.InexactFloat64()
	r.AvgChange24h = features.Mean(changes)

	r.ForecastCount = len(forecasts)
	confidences := make([]float64, 0, len(forecasts))
	for _, f := range forecasts {
		if f.Trend == models.TrendBullish {
			r.BullishCount++
		} else {
			r.BearishCount++
		}
		confidences = append(confidences, f.ConfidencePct)
	}
	r.AvgConfidence = features.Mean(confidences)

	for _, f := range RankByMagnitude(forecasts, TopMoversLimit) {
		name := f.AssetID
		if a, ok := batch.Find(f.AssetID); ok {
			name = a.DisplayName
		}
		r.TopMovers = append(r.TopMovers, models.RankedForecast{Forecast: f, DisplayName: name})
	}
	return r
}

// RankByMagnitude orders forecasts by |projected change| descending, keeping
// the input order for equal magnitudes, and truncates to limit entries.
func RankByMagnitude(forecasts []models.Forecast, limit int) []models.Forecast {
	ranked := make([]models.Forecast, len(forecasts))
	copy(ranked, forecasts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].ProjectedChangePct) > math.Abs(ranked[j].ProjectedChangePct)
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

var _ domsvc.ReportBuilder = Aggregator{}
