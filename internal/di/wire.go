//go:build wireinject
// +build wireinject

package di

import (
	"TwsePulse/pkg/config"
	"TwsePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Upstream pipeline
		ProvideHTTPClient,
		ProvideFetcher,
		ProvideMarketSource,

		// Caches
		ProvideQuoteStore,
		ProvideHistoryStore,
		ProvideHoldingsStore,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideSnapshotSink,
		ProvideNotifier,

		// Analytics engines
		ProvideIndicatorEngine,
		ProvideOverlapEngine,
		ProvideFormatter,

		// Use cases
		ProvideQuoteService,
		ProvideIndicatorService,
		ProvideOverlapService,

		// Delivery
		ProvideMarketHandler,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
