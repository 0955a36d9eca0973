//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CreditIntel/pkg/config"
	"CreditIntel/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCreditStore,
		ProvideSnapshotHistory,
		ProvideSettingsStore,
		ProvideSignalSource,
		ProvideHub,
		ProvideSnapshotPublisher,

		// Domain services and use cases
		ProvideScoringEngine,
		ProvideSettingsProvider,
		ProvideCreditLimitService,
		ProvideBatchRecalculator,
		ProvideRecalcJob,
		ProvideJobQueue,
		ProvideRecalcDispatcher,
		ProvideScheduler,
		ProvideActivityHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
