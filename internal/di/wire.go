//go:build wireinject
// +build wireinject

package di

import (
	"CoinPull/internal/usecase"
	"CoinPull/pkg/config"
	"CoinPull/pkg/server"

	"github.com/google/wire"
)

var analysisSet = wire.NewSet(
	// Infrastructure clients
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideCache,

	// Repositories and sources
	ProvideMarketSource,
	ProvideDemoSource,
	ProvideSnapshotPublisher,

	// Use cases
	ProvideOrchestrator,
	usecase.NewProgressHub,
	ProvideAnalysisService,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		analysisSet,
		ProvideRateLimiter,
		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeAnalysis wires the analysis use case alone, for one-shot runs.
func InitializeAnalysis(cfg *config.Config) (*usecase.AnalysisService, func(), error) {
	wire.Build(analysisSet)
	return nil, nil, nil
}
