//go:build wireinject
// +build wireinject

package di

import (
	"Sniper/pkg/config"
	"Sniper/pkg/server"

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
		ProvideRedisCache,

		// Repositories
		ProvideBarSource,
		ProvideIntentArchive,
		ProvideStateRepository,
		ProvideIntentSink,
		ProvideProfileSource,

		// Core services
		ProvideAdaptiveGate,
		ProvideClassifier,
		ProvideSnapshotBuilder,
		ProvideCycleClock,

		// Use cases
		ProvideStateStore,
		ProvideTickBook,
		ProvideEmitter,
		ProvidePipeline,
		ProvideTickStream,
		ProvideTickCollector,
		ProvideKafkaConsumer,
		ProvideKafkaTicksHandler,

		// HTTP surface
		ProvideOpsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
