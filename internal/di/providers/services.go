package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookscoutapp/bookscout-server/internal/calibre"
	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/logger"
	"github.com/bookscoutapp/bookscout-server/internal/service"
)

// ProvideActivityService provides the activity log service.
func ProvideActivityService(i do.Injector) (*service.ActivityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewActivityService(storeHandle.Store, sseHandle.Manager, log.Logger), nil
}

// ProvideMirrorService provides the Calibre catalog mirror service.
func ProvideMirrorService(i do.Injector) (*service.MirrorService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	reader := calibre.NewReader(log.Logger)
	return service.NewMirrorService(
		reader,
		storeHandle.Store,
		indexHandle.CatalogIndex,
		activity,
		sseHandle.Manager,
		log.Logger,
		cfg.Calibre.MetadataPath,
	), nil
}

// ProvideCrawlerService provides the per-entry crawler.
func ProvideCrawlerService(i do.Injector) (*service.CrawlerService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	clientHandle := do.MustInvoke[*HardcoverClientHandle](i)
	cacheHandle := do.MustInvoke[*CrawlCacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCrawlerService(clientHandle.Client, cacheHandle.Cache, cfg.Crawl, log.Logger), nil
}

// ProvideSuggestedService provides the durable suggestion store service.
func ProvideSuggestedService(i do.Injector) (*service.SuggestedService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSuggestedService(storeHandle.Store, log.Logger), nil
}

// ProvideAggregatorService provides the crawl aggregation service.
func ProvideAggregatorService(i do.Injector) (*service.AggregatorService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	crawler := do.MustInvoke[*service.CrawlerService](i)
	suggested := do.MustInvoke[*service.SuggestedService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAggregatorService(
		crawler,
		suggested,
		storeHandle.Store,
		activity,
		sseHandle.Manager,
		cfg.Crawl,
		log.Logger,
	), nil
}

// ProvideRankingService provides the suggestion ranking service.
func ProvideRankingService(i do.Injector) (*service.RankingService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRankingService(storeHandle.Store, cfg.Ranking, log.Logger), nil
}

// ProvideWantListService provides the want-to-read list service.
func ProvideWantListService(i do.Injector) (*service.WantListService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	clientHandle := do.MustInvoke[*HardcoverClientHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewWantListService(clientHandle.Client, storeHandle.Store, activity, cfg.Hardcover, log.Logger), nil
}
