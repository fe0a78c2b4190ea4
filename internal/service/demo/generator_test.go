package demo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewGenerator(WithSeed(7), WithClock(func() time.Time { return now }))

	assets := g.Generate()
	require.Len(t, assets, 10)

	seen := map[string]bool{}
	for i, a := range assets {
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
		assert.Equal(t, i+1, a.Rank)
		assert.Greater(t, a.CurrentPrice, 0.0)

		require.Len(t, a.Series, SeriesLength)
		for j, p := range a.Series {
			assert.Greater(t, p.Price, 0.0)
			assert.GreaterOrEqual(t, p.Price, a.CurrentPrice*FloorRatio)
			assert.LessOrEqual(t, p.Price, a.CurrentPrice*(1+MaxDeviation)+1e-9)
			if j > 0 {
				assert.False(t, p.Timestamp.Before(a.Series[j-1].Timestamp))
			}
		}
		assert.True(t, a.Series[SeriesLength-1].Timestamp.Before(now))
	}
	assert.Equal(t, "bitcoin", assets[0].ID)
	assert.Equal(t, "chainlink", assets[9].ID)
}

func TestGenerateDoesNotMutateUniverse(t *testing.T) {
	_ = NewGenerator(WithSeed(1)).Generate()
	for _, a := range Assets {
		assert.Nil(t, a.Series)
	}
}

func TestGenerateReproducible(t *testing.T) {
	clock := WithClock(func() time.Time { return time.Unix(0, 0) })
	a := NewGenerator(WithSeed(42), clock).Generate()
	b := NewGenerator(WithSeed(42), clock).Generate()
	assert.Equal(t, a, b)
}
