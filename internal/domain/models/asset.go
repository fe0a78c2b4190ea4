package models

import "time"

// PricePoint is one observation of the historical series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Asset is the normalized record of one tracked market item.
// Assets are immutable once appended to a Batch.
type Asset struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Symbol       string       `json:"symbol"`
	CurrentPrice float64      `json:"current_price"`
	MarketCap    float64      `json:"market_cap"`
	Volume24h    float64      `json:"volume_24h"`
	Change24hPct float64      `json:"change_24h_pct"`
	Rank         int          `json:"rank"`
	Series       []PricePoint `json:"series"`
}

// Prices returns the price column of the series in chronological order.
func (a Asset) Prices() []float64 {
	out := make([]float64, len(a.Series))
	for i, p := range a.Series {
		out[i] = p.Price
	}
	return out
}

// Mode tells how a batch was acquired.
type Mode string

const (
	ModeLive Mode = "live"
	ModeDemo Mode = "demo"
)

// Batch is the complete set of assets produced by one acquisition attempt.
type Batch struct {
	AttemptID  string    `json:"attempt_id"`
	Mode       Mode      `json:"mode"`
	AcquiredAt time.Time `json:"acquired_at"`
	Assets     []Asset   `json:"assets"`
}

// Len returns the number of assets in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Assets)
}

// Find returns the asset with the given id.
func (b *Batch) Find(id string) (Asset, bool) {
	if b == nil {
		return Asset{}, false
	}
	for _, a := range b.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}
