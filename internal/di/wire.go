//go:build wireinject
// +build wireinject

package di

import (
	"FinSqueeze/pkg/config"
	"FinSqueeze/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCache,

		// Repositories and sources
		ProvideBarStore,
		ProvideQuoteTracker,
		ProvideQuoteSource,
		ProvideAnalysisPublisher,
		ProvideReportStorage,

		// Engine and use cases
		ProvideAnalysisMemo,
		ProvideAggregator,
		ProvideBarsUseCase,
		ProvideEngineUseCase,
		ProvideAggregateUseCase,
		ProvideBacktestJob,
		ProvideJobQueue,
		ProvideBarEventsHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideEngineHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
