package feedsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

// maxBackfillIterations caps the pages, retries included, one backfill may request.
const maxBackfillIterations = 1000

// BackfillStatus is the feed the process currently reports as backfilling.
type BackfillStatus struct {
	FeedID string `json:"id"`
	Page   int    `json:"page"`
}

// Running reports whether any backfill owns the cursor.
func (s BackfillStatus) Running() bool { return s.FeedID != "" }

// BackfillCursor is the single in-progress backfill slot. Claiming it for a
// different feed takes it away from the current owner, whose loop stops at
// its next ownership check.
type BackfillCursor struct {
	mu     sync.Mutex
	feedID string
	page   int
}

// Claim takes the cursor for feedID. It returns false, and leaves the cursor
// alone, when feedID already owns it.
func (c *BackfillCursor) Claim(feedID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedID == feedID {
		return false
	}
	c.feedID = feedID
	c.page = 1
	return true
}

// Owns reports whether feedID still holds the cursor.
func (c *BackfillCursor) Owns(feedID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feedID == feedID
}

// SetPage records the page feedID is about to fetch, if feedID still owns the cursor.
func (c *BackfillCursor) SetPage(feedID string, page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedID != feedID {
		return false
	}
	c.page = page
	return true
}

// Release returns the cursor to idle unless another feed has claimed it since.
func (c *BackfillCursor) Release(feedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedID == feedID {
		c.feedID = ""
		c.page = 1
	}
}

// Snapshot returns the current cursor value.
func (c *BackfillCursor) Snapshot() BackfillStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BackfillStatus{FeedID: c.feedID, Page: c.page}
}

// BackfillOutcome tells how a backfill run ended.
type BackfillOutcome int

const (
	BackfillAlreadyRunning BackfillOutcome = iota
	BackfillNoHistory
	BackfillExhausted
	BackfillInterrupted
	BackfillBudgetSpent
	BackfillCanceled
	BackfillFailed
)

func (o BackfillOutcome) String() string {
	switch o {
	case BackfillAlreadyRunning:
		return "already_running"
	case BackfillNoHistory:
		return "no_history"
	case BackfillExhausted:
		return "exhausted"
	case BackfillInterrupted:
		return "interrupted"
	case BackfillBudgetSpent:
		return "budget_spent"
	case BackfillCanceled:
		return "canceled"
	case BackfillFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PageSyncer syncs one page of a feed.
type PageSyncer interface {
	SyncPage(ctx context.Context, feedID string, page int) (SyncResult, error)
}

// Backfill walks a feed's pages back in time until the platform runs out of
// history, the run is superseded by a backfill of another feed, or the
// iteration budget is spent.
type Backfill struct {
	cursor   *BackfillCursor
	store    Store
	syncer   PageSyncer
	pageSize int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBackfill creates a backfill job over cursor. delay paces successive
// pages; a failed page waits three times as long.
func NewBackfill(cursor *BackfillCursor, store Store, syncer PageSyncer, pageSize int, delay time.Duration) *Backfill {
	return &Backfill{
		cursor:   cursor,
		store:    store,
		syncer:   syncer,
		pageSize: pageSize,
		delay:    delay,
		sleep:    upstream.Sleep,
	}
}

// Run backfills feedID. It is a no-op when feedID is already backfilling.
// Errors before the first page, such as an unknown feed, are returned;
// per-page errors are retried on the same page.
func (b *Backfill) Run(ctx context.Context, feedID string) (BackfillOutcome, error) {
	if !b.cursor.Claim(feedID) {
		log.Info().Str("feed_id", feedID).Msg("History backfill already running")
		return BackfillAlreadyRunning, nil
	}
	return b.run(ctx, feedID)
}

// run expects the cursor to be claimed for feedID.
func (b *Backfill) run(ctx context.Context, feedID string) (BackfillOutcome, error) {
	defer b.cursor.Release(feedID)

	logger := log.With().Str("feed_id", feedID).Logger()

	feed, err := b.store.GetFeed(ctx, feedID)
	if err != nil {
		return BackfillFailed, fmt.Errorf("load feed %s: %w", feedID, err)
	}
	if feed.HasHistory == models.NoMoreHistory {
		logger.Info().Msg("Feed has no more history")
		return BackfillNoHistory, nil
	}

	total, err := b.store.CountArticles(ctx, feedID)
	if err != nil {
		return BackfillFailed, fmt.Errorf("count articles of %s: %w", feedID, err)
	}
	page := startPage(total, b.pageSize)
	b.cursor.SetPage(feedID, page)
	logger.Info().Int("page", page).Int("stored_articles", total).Msg("Starting history backfill")

	for i := 0; i < maxBackfillIterations; i++ {
		if !b.cursor.Owns(feedID) {
			logger.Info().Int("page", page).Msg("History backfill superseded")
			return BackfillInterrupted, nil
		}

		result, err := b.syncer.SyncPage(ctx, feedID, page)
		if err != nil {
			if ctx.Err() != nil {
				return BackfillCanceled, ctx.Err()
			}
			logger.Error().Err(err).Int("page", page).Msg("History page failed, retrying")
			if err := b.sleep(ctx, 3*b.delay); err != nil {
				return BackfillCanceled, err
			}
			continue
		}

		if !result.HasMoreHistory {
			logger.Info().Int("page", page).Msg("History backfill complete")
			return BackfillExhausted, nil
		}

		page++
		b.cursor.SetPage(feedID, page)
		if err := b.sleep(ctx, b.delay); err != nil {
			return BackfillCanceled, err
		}
	}

	logger.Warn().Int("page", page).Int("iterations", maxBackfillIterations).Msg("History backfill stopped at iteration limit")
	return BackfillBudgetSpent, nil
}

// startPage resumes near the oldest stored page instead of page 1.
func startPage(stored, pageSize int) int {
	if pageSize <= 0 || stored <= 0 {
		return 1
	}
	return (stored + pageSize - 1) / pageSize
}
