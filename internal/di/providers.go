package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"CoinPull/internal/domain/repository"
	"CoinPull/internal/handler/api"
	internalrepo "CoinPull/internal/repository"
	"CoinPull/internal/service/coingecko"
	"CoinPull/internal/service/demo"
	"CoinPull/internal/service/ratelimit"
	"CoinPull/internal/services/forecast"
	"CoinPull/internal/services/report"
	"CoinPull/internal/usecase"
	"CoinPull/pkg/cache"
	"CoinPull/pkg/config"
	xhttp "CoinPull/pkg/http"
	pkgkafka "CoinPull/pkg/kafka"
	"CoinPull/pkg/logger"
	"CoinPull/pkg/metrics"
	"CoinPull/pkg/server"
)

const serviceName = "coinpull"

// ProvideKafkaProducer creates a Kafka producer, or nil when export is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger creates the application logger. When log collection is on
// and Kafka is available, warn and error logs are aggregated to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logs.Collect && producer != nil {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logs.FlushInterval,
			CountThreshold: cfg.Logs.MaxBatchSize,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
			Source:         serviceName,
		})
	}
	return log, log.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideMarketSource creates the CoinGecko client.
func ProvideMarketSource(cfg *config.Config) repository.MarketSource {
	hc := xhttp.NewClient(
		xhttp.WithTimeout(cfg.CoinGecko.Timeout),
		xhttp.WithUserAgent(serviceName+"/1.0"),
	)
	return coingecko.New(cfg.CoinGecko.BaseURL,
		coingecko.WithAPIKey(cfg.CoinGecko.APIKey),
		coingecko.WithCurrency(cfg.CoinGecko.VsCurrency),
		coingecko.WithCoolDown(cfg.CoinGecko.CoolDown),
		coingecko.WithHTTPClient(hc),
	)
}

// ProvideDemoSource creates the offline data generator.
func ProvideDemoSource(cfg *config.Config) repository.DemoSource {
	if cfg.Demo.Seed != 0 {
		return demo.NewGenerator(demo.WithSeed(cfg.Demo.Seed))
	}
	return demo.NewGenerator()
}

// ProvideOrchestrator creates the acquisition orchestrator.
func ProvideOrchestrator(
	source repository.MarketSource,
	demoSource repository.DemoSource,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(source, demoSource, m, log.With(logger.String("component", "orchestrator")),
		usecase.OrchestratorConfig{
			TopK:            cfg.CoinGecko.TopK,
			HistoryDays:     cfg.CoinGecko.HistoryDays,
			RequestDelay:    cfg.CoinGecko.RequestDelay,
			DefaultCoolDown: cfg.CoinGecko.CoolDown,
		})
}

// ProvideCache creates the report cache and acquisition lock backend.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideSnapshotPublisher creates the Kafka snapshot exporter, or nil when
// export is disabled.
func ProvideSnapshotPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideAnalysisService creates the analysis use case.
func ProvideAnalysisService(
	orch *usecase.Orchestrator,
	publisher repository.SnapshotPublisher,
	c cache.Service,
	hub *usecase.ProgressHub,
	log *logger.Logger,
	cfg *config.Config,
) (*usecase.AnalysisService, func()) {
	svc := usecase.NewAnalysisService(orch, forecast.NewEngine(), report.NewAggregator(), publisher, c, hub,
		log.With(logger.String("component", "analysis")),
		usecase.AnalysisConfig{
			Horizon:        cfg.Analysis.Horizon,
			LockTTL:        cfg.Analysis.LockTTL,
			ReportTTL:      cfg.Analysis.ReportTTL,
			PublishTimeout: cfg.Analysis.PublishTimeout,
		})
	return svc, svc.Close
}

// ProvideRateLimiter creates the refresh endpoint limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(log *logger.Logger, svc *usecase.AnalysisService, rl *ratelimit.Limiter) xhttp.Handler {
	return api.NewAnalysisHandler(log.With(logger.String("component", "api")), svc, rl)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(h xhttp.Handler, log *logger.Logger, cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(h, log,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, log *logger.Logger, svc *usecase.AnalysisService, rl *ratelimit.Limiter, srv *xhttp.Server) *server.App {
	return server.New(cfg, log, svc, rl, srv)
}
