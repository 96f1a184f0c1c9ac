// Package di provides dependency injection configuration for the Bookscout server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/di/providers"
	"github.com/bookscoutapp/bookscout-server/internal/logger"
	"github.com/bookscoutapp/bookscout-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCrawlCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// External clients
	do.Provide(injector, providers.ProvideHardcoverClient)

	// Business services
	do.Provide(injector, providers.ProvideActivityService)
	do.Provide(injector, providers.ProvideMirrorService)
	do.Provide(injector, providers.ProvideCrawlerService)
	do.Provide(injector, providers.ProvideSuggestedService)
	do.Provide(injector, providers.ProvideAggregatorService)
	do.Provide(injector, providers.ProvideRankingService)
	do.Provide(injector, providers.ProvideWantListService)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)
	do.Provide(injector, providers.ProvideMetadataWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CrawlCacheHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.HardcoverClientHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.ActivityService](injector)
	_ = do.MustInvoke[*service.MirrorService](injector)
	_ = do.MustInvoke[*service.CrawlerService](injector)
	_ = do.MustInvoke[*service.SuggestedService](injector)
	_ = do.MustInvoke[*service.AggregatorService](injector)
	_ = do.MustInvoke[*service.RankingService](injector)
	_ = do.MustInvoke[*service.WantListService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)
	_ = do.MustInvoke[*providers.MetadataWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
