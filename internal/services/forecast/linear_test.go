package forecast

import (
	"math"
	"testing"

	"CoinPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectShortSeries(t *testing.T) {
	for _, series := range [][]float64{nil, {}, {42}} {
		_, ok := Project(series, 42, DefaultHorizon)
		assert.False(t, ok, "series %v", series)
	}
}

func TestFitRecoversLinearSeries(t *testing.T) {
	cases := []struct {
		a, b float64
		n    int
	}{
		{a: 10, b: 2, n: 5},
		{a: 45000, b: -137.5, n: 30},
		{a: 0.45, b: 0.001, n: 2},
	}
	for _, c := range cases {
		prices := make([]float64, c.n)
		for i := range prices {
			prices[i] = c.a + c.b*float64(i)
		}
		line, ok := Fit(prices)
		require.True(t, ok)
		assert.InDelta(t, c.b, line.Slope, 1e-9*math.Max(1, math.Abs(c.b)))
		assert.InDelta(t, c.a, line.Intercept, 1e-9*math.Max(1, math.Abs(c.a)))

		current := prices[c.n-1]
		f, ok := Project(prices, current, DefaultHorizon)
		require.True(t, ok)
		want := c.a + c.b*float64(c.n-1+DefaultHorizon)
		assert.InDelta(t, want, f.ProjectedPrice, 1e-9*math.Max(1, math.Abs(want)))
		assert.InDelta(t, (want-current)/current*100, f.ProjectedChangePct, 1e-6)
	}
}

func TestProjectExample(t *testing.T) {
	// y = 10 + 2x over 5 points, projected to x = 4 + 6 = 10 -> 30.
	f, ok := Project([]float64{10, 12, 14, 16, 18}, 20, 6)
	require.True(t, ok)
	assert.InDelta(t, 30.0, f.ProjectedPrice, 1e-9)
	assert.InDelta(t, 50.0, f.ProjectedChangePct, 1e-9)
	assert.Equal(t, 50.0, f.ConfidencePct)
	assert.Equal(t, models.TrendBullish, f.Trend)
	assert.Equal(t, 6, f.Horizon)
}

func TestConfidenceBounds(t *testing.T) {
	assert.Equal(t, 85.0, Confidence(0))
	assert.Equal(t, 85.0, Confidence(7.5))
	assert.Equal(t, 85.0, Confidence(-7.5))
	assert.InDelta(t, 80.0, Confidence(10), 1e-12)
	assert.InDelta(t, 80.0, Confidence(-10), 1e-12)
	assert.InDelta(t, 65.0, Confidence(17.5), 1e-12)
	assert.Equal(t, 50.0, Confidence(25))
	assert.Equal(t, 50.0, Confidence(-300))

	for x := -1000.0; x <= 1000; x += 0.25 {
		c := Confidence(x)
		assert.GreaterOrEqual(t, c, MinConfidence)
		assert.LessOrEqual(t, c, MaxConfidence)
	}
}

func TestTrendZeroIsBearish(t *testing.T) {
	// flat series projects exactly the current price
	f, ok := Project([]float64{5, 5, 5, 5}, 5, 6)
	require.True(t, ok)
	assert.Equal(t, 0.0, f.ProjectedChangePct)
	assert.Equal(t, models.TrendBearish, f.Trend)
	assert.Equal(t, 85.0, f.ConfidencePct)

	f, ok = Project([]float64{5, 4, 3}, 5, 6)
	require.True(t, ok)
	assert.Less(t, f.ProjectedChangePct, 0.0)
	assert.Equal(t, models.TrendBearish, f.Trend)
}

func TestProjectRejectsBadInput(t *testing.T) {
	_, ok := Project([]float64{1, 2, 3}, 0, 6)
	assert.False(t, ok)
	_, ok = Project([]float64{1, 2, 3}, -1, 6)
	assert.False(t, ok)
}

func TestProjectDefaultsHorizon(t *testing.T) {
	f, ok := Project([]float64{1, 2}, 2, 0)
	require.True(t, ok)
	assert.Equal(t, DefaultHorizon, f.Horizon)
	// x = 1 + 6 = 7 -> 8
	assert.InDelta(t, 8.0, f.ProjectedPrice, 1e-12)
}

func TestForecastBatchSkipsShortSeries(t *testing.T) {
	batch := &models.Batch{Assets: []models.Asset{
		{ID: "a", CurrentPrice: 2, Series: []models.PricePoint{{Price: 1}, {Price: 2}}},
		{ID: "b", CurrentPrice: 2, Series: []models.PricePoint{{Price: 1}}},
		{ID: "c", CurrentPrice: 2},
	}}
	out := ForecastBatch(NewEngine(), batch, DefaultHorizon)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].AssetID)
	assert.Nil(t, ForecastBatch(NewEngine(), nil, DefaultHorizon))
}
