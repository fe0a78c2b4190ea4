package models

// Trend is the direction of a projected move.
type Trend string

const (
	TrendBullish Trend = "Bullish"
	TrendBearish Trend = "Bearish"
)

// TrendOf maps a projected change to a trend. Zero counts as Bearish.
func TrendOf(changePct float64) Trend {
	if changePct > 0 {
		return TrendBullish
	}
	return TrendBearish
}

// Forecast is the trend-line projection for one asset.
type Forecast struct {
	AssetID            string  `json:"asset_id"`
	CurrentPrice       float64 `json:"current_price"`
	ProjectedPrice     float64 `json:"projected_price"`
	ProjectedChangePct float64 `json:"projected_change_pct"`
	ConfidencePct      float64 `json:"confidence_pct"`
	Trend              Trend   `json:"trend"`
	Slope              float64 `json:"slope"`
	Intercept          float64 `json:"intercept"`
	Horizon            int     `json:"horizon"`
}
