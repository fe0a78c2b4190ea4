// Package forecast projects a price series with an ordinary least-squares
// trend line.
package forecast

import (
	"math"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
)

const (
	// DefaultHorizon is the number of periods projected past the last point.
	DefaultHorizon = 6

	MinConfidence = 50.0
	MaxConfidence = 85.0
)

// Line is a fitted trend line y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 { return l.Slope*x + l.Intercept }

// Fit computes the least-squares line over (i, prices[i]).
// It reports false when the regression is degenerate (fewer than two points).
func Fit(prices []float64) (Line, bool) {
	n := len(prices)
	if n < 2 {
		return Line{}, false
	}
	xMean := float64(n-1) / 2
	yMean := 0.0
	for _, y := range prices {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range prices {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return Line{}, false
	}
	slope := num / den
	return Line{Slope: slope, Intercept: yMean - slope*xMean}, true
}

// Confidence maps a projected change to the heuristic confidence score:
// 100 - 2*|change|, clamped to [50, 85].
func Confidence(changePct float64) float64 {
	c := 100 - 2*math.Abs(changePct)
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// Project forecasts prices horizon periods past the last observation.
// ok is false for series shorter than two points, a degenerate regression,
// or a non-positive current price.
func Project(prices []float64, currentPrice float64, horizon int) (f models.Forecast, ok bool) {
	if horizon < 1 {
		horizon = DefaultHorizon
	}
	if currentPrice <= 0 {
		return models.Forecast{}, false
	}
	line, ok := Fit(prices)
	if !ok {
		return models.Forecast{}, false
	}
	futureX := float64(len(prices) - 1 + horizon)
	projected := line.At(futureX)
	change := (projected - currentPrice) / currentPrice * 100
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return models.Forecast{}, false
	}
	return models.Forecast{
		CurrentPrice:       currentPrice,
		ProjectedPrice:     projected,
		ProjectedChangePct: change,
		ConfidencePct:      Confidence(change),
		Trend:              models.TrendOf(change),
		Slope:              line.Slope,
		Intercept:          line.Intercept,
		Horizon:            horizon,
	}, true
}

// Engine adapts Project to the domain Forecaster interface.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Forecast projects one asset's series.
func (Engine) Forecast(asset models.Asset, horizon int) (models.Forecast, bool) {
	f, ok := Project(asset.Prices(), asset.CurrentPrice, horizon)
	if !ok {
		return models.Forecast{}, false
	}
	f.AssetID = asset.ID
	return f, true
}

// ForecastBatch produces one forecast per asset that supports one, in batch
// order.
func ForecastBatch(fc domsvc.Forecaster, batch *models.Batch, horizon int) []models.Forecast {
	if batch == nil {
		return nil
	}
	out := make([]models.Forecast, 0, len(batch.Assets))
	for _, a := range batch.Assets {
		if f, ok := fc.Forecast(a, horizon); ok {
			out = append(out, f)
		}
	}
	return out
}

var _ domsvc.Forecaster = Engine{}
