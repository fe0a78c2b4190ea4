package models

// AssetVolatility summarizes the observed window of one asset.
type AssetVolatility struct {
	AssetID           string  `json:"asset_id"`
	DisplayName       string  `json:"display_name"`
	Symbol            string  `json:"symbol"`
	Low               float64 `json:"low"`
	High              float64 `json:"high"`
	Mean              float64 `json:"mean"`
	VolatilityPct     float64 `json:"volatility_pct"`
	DailyReturnStdPct float64 `json:"daily_return_std_pct"` // stddev of daily log returns
}

// RankedForecast is a forecast entry of the top-movers ranking.
type RankedForecast struct {
	Forecast
	DisplayName string `json:"display_name"`
}

// VolatileAsset flags an asset whose 24h change exceeds the threshold.
type VolatileAsset struct {
	AssetID      string  `json:"asset_id"`
	DisplayName  string  `json:"display_name"`
	Change24hPct float64 `json:"change_24h_pct"`
}

// Report aggregates a batch and its forecasts. It holds no state of its own.
type Report struct {
	AssetCount     int               `json:"asset_count"`
	TotalMarketCap float64           `json:"total_market_cap"`
	TotalVolume    float64           `json:"total_volume"`
	AvgChange24h   float64           `json:"avg_change_24h"`
	Volatility     []AssetVolatility `json:"volatility"`
	ForecastCount  int               `json:"forecast_count"`
	BullishCount   int               `json:"bullish_count"`
	BearishCount   int               `json:"bearish_count"`
	AvgConfidence  float64           `json:"avg_confidence"`
	TopMovers      []RankedForecast  `json:"top_movers"`
	HighVolatility []VolatileAsset   `json:"high_volatility"`
}

// Snapshot is the immutable result of one successful acquisition cycle.
type Snapshot struct {
	Batch     *Batch     `json:"batch"`
	Forecasts []Forecast `json:"forecasts"`
	Report    Report     `json:"report"`
	Horizon   int        `json:"horizon"`
}
