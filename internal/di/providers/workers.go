package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/logger"
	"github.com/bookscoutapp/bookscout-server/internal/scheduler"
	"github.com/bookscoutapp/bookscout-server/internal/service"
	"github.com/bookscoutapp/bookscout-server/internal/watcher"
)

// SchedulerHandle wraps the background scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.Scheduler
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	h.cancel()
	h.Stop()
	return nil
}

// ProvideScheduler provides the background task scheduler.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	mirror := do.MustInvoke[*service.MirrorService](i)
	wantList := do.MustInvoke[*service.WantListService](i)
	suggested := do.MustInvoke[*service.SuggestedService](i)
	ranking := do.MustInvoke[*service.RankingService](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	log := do.MustInvoke[*logger.Logger](i)

	tasks := scheduler.Tasks(cfg.Scheduler, mirror, wantList, suggested, ranking)
	sched := scheduler.New(tasks, activity, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	log.Info("Scheduler started", "tasks", len(tasks))

	return &SchedulerHandle{
		Scheduler: sched,
		cancel:    cancel,
	}, nil
}

// MetadataWatcherHandle wraps the Calibre metadata watcher with shutdown
// capability. Watcher is nil when source watching is disabled or no
// metadata path is configured.
type MetadataWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *MetadataWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Stop()
}

// ProvideMetadataWatcher provides the watcher that re-syncs the mirror
// whenever Calibre writes its metadata file.
func ProvideMetadataWatcher(i do.Injector) (*MetadataWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	mirror := do.MustInvoke[*service.MirrorService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Calibre.WatchSource || cfg.Calibre.MetadataPath == "" {
		log.Info("Metadata watching disabled")
		return &MetadataWatcherHandle{}, nil
	}

	w, err := watcher.New(cfg.Calibre.MetadataPath, watcher.DefaultSettleDelay, log.Logger)
	if err != nil {
		// A missing library directory should not keep the server from
		// starting; manual syncs still work.
		log.Warn("Metadata watcher unavailable", "error", err)
		return &MetadataWatcherHandle{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-w.Changes():
				if !ok {
					return
				}
				log.Info("Metadata file changed, syncing mirror")
				if _, err := mirror.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warn("Watcher-triggered sync failed", "error", err)
				}
			}
		}
	}()

	return &MetadataWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}
