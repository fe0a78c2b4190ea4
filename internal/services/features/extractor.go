package features

import (
	"math"
	"sort"

	"CoinPull/internal/domain/models"
)

// WindowStats holds min/max/mean of an observed price window.
type WindowStats struct {
	Low  float64
	High float64
	Mean float64
}

// Stats computes min, max and mean of prices. Empty input yields zeros.
func Stats(prices []float64) WindowStats {
	if len(prices) == 0 {
		return WindowStats{}
	}
	lo, hi, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
		sum += p
	}
	return WindowStats{Low: lo, High: hi, Mean: sum / float64(len(prices))}
}

// RangeVolatility returns (max - min) / mean * 100 over the window.
// It returns 0 when the window is empty or its mean is zero.
func RangeVolatility(prices []float64) float64 {
	s := Stats(prices)
	if s.Mean == 0 {
		return 0
	}
	return (s.High - s.Low) / s.Mean * 100
}

// Mean returns the arithmetic mean, or 0 for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SortSeries orders points chronologically. Points sharing a timestamp keep
// their original order.
func SortSeries(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ComputeLogReturns computes log returns r_t = ln(p_t / p_{t-1}).
// It returns a slice of length len(prices)-1, or nil if insufficient data.
func ComputeLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// StdDev returns the population standard deviation, or 0 for fewer than two
// values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
