package service

import (
	"CoinPull/internal/domain/models"
)

// Forecaster projects a price series forward.
type Forecaster interface {
	Forecast(asset models.Asset, horizon int) (models.Forecast, bool)
}

// ReportBuilder aggregates a batch and its forecasts.
type ReportBuilder interface {
	Build(batch *models.Batch, forecasts []models.Forecast) models.Report
}
