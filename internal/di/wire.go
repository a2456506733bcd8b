//go:build wireinject
// +build wireinject

package di

import (
	"LiqSweep/pkg/config"
	"LiqSweep/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideStateCache,

		// Repositories
		ProvideStateStore,
		ProvideBarStore,
		ProvideEventStore,
		ProvideProposalPublisher,
		ProvideOutbox,

		// Services
		ProvideEventSink,
		ProvideAccountProvider,
		ProvideMarketStream,

		// Use cases
		ProvideExecutor,
		ProvideMarketData,
		ProvideOrchestrator,
		ProvideTickProcessor,
		ProvideTickPipeline,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaBarsHandler,
		ProvideReportConsumer,

		// Application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
