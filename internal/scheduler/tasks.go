package scheduler

import (
	"context"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/errors"
	"github.com/bookscoutapp/bookscout-server/internal/service"
)

// Tasks assembles the standard background task set.
func Tasks(
	cfg config.SchedulerConfig,
	mirror *service.MirrorService,
	wantList *service.WantListService,
	suggested *service.SuggestedService,
	ranking *service.RankingService,
) []Task {
	return []Task{
		{
			Name:       "mirror-refresh",
			Interval:   cfg.MirrorInterval,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := mirror.Sync(ctx)
				// An unconfigured catalog path is a setup state, not a
				// recurring failure worth alerting on.
				if errors.Is(err, errors.ErrNotConfigured) {
					return nil
				}
				return err
			},
		},
		{
			Name:     "wantlist-refresh",
			Interval: cfg.WantListInterval,
			Run: func(ctx context.Context) error {
				_, err := wantList.Refresh(ctx)
				if errors.Is(err, errors.ErrNotConfigured) {
					return nil
				}
				return err
			},
		},
		{
			Name:     "wantlist-id-refresh",
			Interval: cfg.BookshelfInterval,
			Run: func(ctx context.Context) error {
				// Re-resolve in case the upstream renumbered the list.
				_, err := wantList.ResolveListID(ctx, true)
				if errors.Is(err, errors.ErrNotConfigured) {
					return nil
				}
				return err
			},
		},
		{
			Name:     "suggestion-dedup",
			Interval: cfg.DedupInterval,
			Run: func(ctx context.Context) error {
				return dedupOwned(ctx, suggested, ranking)
			},
		},
	}
}

// dedupOwned removes suggestions that rank as already owned, so books
// added to the catalog after discovery stop resurfacing.
func dedupOwned(ctx context.Context, suggested *service.SuggestedService, ranking *service.RankingService) error {
	all, err := suggested.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	ranked, err := ranking.Rank(ctx, all)
	if err != nil {
		return err
	}

	owned := service.OwnedIDs(ranked)
	if len(owned) == 0 {
		return nil
	}
	_, err = suggested.Delete(ctx, owned...)
	return err
}
