package feedsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

// Store is the storage the sync jobs read and write.
type Store interface {
	UpsertArticles(ctx context.Context, articles []models.Article) error
	CountArticles(ctx context.Context, feedID string) (int, error)
	UpdateFeedSyncMeta(ctx context.Context, feedID string, syncTime int64, hasHistory int) error
	ListFeeds(ctx context.Context, status models.Status) ([]models.Feed, error)
	GetFeed(ctx context.Context, feedID string) (*models.Feed, error)
}

// PageFetcher returns one page of a feed's articles.
type PageFetcher interface {
	FetchPage(ctx context.Context, feedID string, page int) ([]upstream.Article, error)
}

// SyncResult reports what a single page sync saw.
type SyncResult struct {
	Fetched        int  `json:"fetched"`
	HasMoreHistory bool `json:"hasMoreHistory"`
}

// Syncer stores fetched pages and keeps each feed's sync metadata current.
type Syncer struct {
	store    Store
	fetcher  PageFetcher
	pageSize int
	now      func() time.Time
}

// NewSyncer creates a syncer. A page shorter than pageSize is the last page
// of a feed's history.
func NewSyncer(store Store, fetcher PageFetcher, pageSize int) *Syncer {
	return &Syncer{
		store:    store,
		fetcher:  fetcher,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// SyncPage fetches page of feedID, upserts its articles and records the sync
// time and whether older pages exist. Page 1 is the latest.
func (s *Syncer) SyncPage(ctx context.Context, feedID string, page int) (SyncResult, error) {
	fetched, err := s.fetcher.FetchPage(ctx, feedID, page)
	if err != nil {
		return SyncResult{}, err
	}

	if len(fetched) > 0 {
		articles := make([]models.Article, len(fetched))
		for i, a := range fetched {
			articles[i] = models.Article{
				ID:          a.ID,
				FeedID:      feedID,
				Title:       a.Title,
				PicURL:      a.PicURL,
				PublishTime: a.PublishTime,
			}
		}
		if err := s.store.UpsertArticles(ctx, articles); err != nil {
			return SyncResult{}, fmt.Errorf("store articles of %s: %w", feedID, err)
		}
	}

	result := SyncResult{
		Fetched:        len(fetched),
		HasMoreHistory: len(fetched) >= s.pageSize,
	}
	hasHistory := models.NoMoreHistory
	if result.HasMoreHistory {
		hasHistory = models.MoreHistory
	}
	if err := s.store.UpdateFeedSyncMeta(ctx, feedID, s.now().Unix(), hasHistory); err != nil {
		return SyncResult{}, fmt.Errorf("update sync state of %s: %w", feedID, err)
	}

	log.Info().
		Str("feed_id", feedID).
		Int("page", page).
		Int("articles", result.Fetched).
		Bool("has_more_history", result.HasMoreHistory).
		Msg("Synced article page")
	return result, nil
}
