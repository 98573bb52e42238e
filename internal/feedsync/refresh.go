package feedsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

// RefreshReport summarizes one bulk refresh pass.
type RefreshReport struct {
	Skipped bool `json:"skipped"`
	Feeds   int  `json:"feeds"`
	Failed  int  `json:"failed"`
}

// BulkRefresh syncs the latest page of every enabled feed, one at a time.
// At most one pass runs at once.
type BulkRefresh struct {
	running atomic.Bool
	store   Store
	syncer  PageSyncer
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBulkRefresh creates the job. delay separates consecutive feeds.
func NewBulkRefresh(store Store, syncer PageSyncer, delay time.Duration) *BulkRefresh {
	return &BulkRefresh{
		store:  store,
		syncer: syncer,
		delay:  delay,
		sleep:  upstream.Sleep,
	}
}

// Running reports whether a pass is in progress.
func (r *BulkRefresh) Running() bool {
	return r.running.Load()
}

// Run makes one pass, or returns a skipped report if a pass is already running.
func (r *BulkRefresh) Run(ctx context.Context) (RefreshReport, error) {
	if !r.tryStart() {
		log.Info().Msg("Bulk refresh already running")
		return RefreshReport{Skipped: true}, nil
	}
	return r.run(ctx)
}

func (r *BulkRefresh) tryStart() bool {
	return r.running.CompareAndSwap(false, true)
}

// run expects tryStart to have succeeded.
func (r *BulkRefresh) run(ctx context.Context) (RefreshReport, error) {
	defer r.running.Store(false)

	feeds, err := r.store.ListFeeds(ctx, models.StatusEnabled)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("list enabled feeds: %w", err)
	}

	start := time.Now()
	report := RefreshReport{Feeds: len(feeds)}
	log.Info().Int("feeds", len(feeds)).Msg("Starting bulk refresh")

	for i, feed := range feeds {
		if _, err := r.syncer.SyncPage(ctx, feed.ID, 1); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			log.Error().Err(err).Str("feed_id", feed.ID).Msg("Feed refresh failed")
		}

		if i < len(feeds)-1 {
			if err := r.sleep(ctx, r.delay); err != nil {
				return report, err
			}
		}
	}

	log.Info().
		Int("feeds", report.Feeds).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Bulk refresh finished")
	return report, nil
}
