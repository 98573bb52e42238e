package feedsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Accounts is what the service needs from the account pool.
type Accounts interface {
	AccountSelector
	BlockedToday() []string
}

// Options tunes the sync jobs.
type Options struct {
	// PageSize is the length of a full article page.
	PageSize int
	// UpdateDelay paces consecutive upstream pages and feeds.
	UpdateDelay time.Duration
	// RetryBackoff is the unit of the transient failure backoff.
	RetryBackoff time.Duration
}

// Service is the process-wide owner of the backfill cursor and the bulk
// refresh flag. Triggered jobs run in the background until Close.
type Service struct {
	accounts Accounts
	syncer   *Syncer
	backfill *Backfill
	refresh  *BulkRefresh

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewService wires the fetcher, syncer and both jobs over store.
func NewService(store Store, accounts Accounts, lister ArticleLister, opts Options) *Service {
	fetcher := NewFetcher(accounts, lister, opts.RetryBackoff)
	syncer := NewSyncer(store, fetcher, opts.PageSize)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		accounts: accounts,
		syncer:   syncer,
		backfill: NewBackfill(&BackfillCursor{}, store, syncer, opts.PageSize, opts.UpdateDelay),
		refresh:  NewBulkRefresh(store, syncer, opts.UpdateDelay),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RefreshFeed syncs the latest page of one feed and waits for the result.
func (s *Service) RefreshFeed(ctx context.Context, feedID string) (SyncResult, error) {
	return s.syncer.SyncPage(ctx, feedID, 1)
}

// TriggerBackfill starts a background backfill of feedID. It returns false
// when feedID is already backfilling or the service is closed.
func (s *Service) TriggerBackfill(feedID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.backfill.cursor.Claim(feedID) {
		log.Info().Str("feed_id", feedID).Msg("History backfill already running")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		outcome, err := s.backfill.run(s.ctx, feedID)
		jobEvent(err).Str("feed_id", feedID).Stringer("outcome", outcome).Msg("History backfill ended")
	}()
	return true
}

// RunBackfill backfills feedID in the foreground.
func (s *Service) RunBackfill(ctx context.Context, feedID string) (BackfillOutcome, error) {
	return s.backfill.Run(ctx, feedID)
}

// TriggerBulkRefresh starts a background bulk refresh. It returns false when
// one is already running or the service is closed.
func (s *Service) TriggerBulkRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.refresh.tryStart() {
		log.Info().Msg("Bulk refresh already running")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := s.refresh.run(s.ctx)
		jobEvent(err).Int("feeds", report.Feeds).Int("failed", report.Failed).Msg("Bulk refresh ended")
	}()
	return true
}

// RunBulkRefresh makes one bulk refresh pass in the foreground.
func (s *Service) RunBulkRefresh(ctx context.Context) (RefreshReport, error) {
	return s.refresh.Run(ctx)
}

// BackfillStatus returns the feed currently backfilling, if any.
func (s *Service) BackfillStatus() BackfillStatus {
	return s.backfill.cursor.Snapshot()
}

// IsBulkRefreshRunning reports whether a bulk refresh pass is in progress.
func (s *Service) IsBulkRefreshRunning() bool {
	return s.refresh.Running()
}

// BlockedAccountIDs returns the accounts blocked for today.
func (s *Service) BlockedAccountIDs() []string {
	return s.accounts.BlockedToday()
}

// Close cancels background jobs at their next suspension point and waits for
// them. Triggers after Close are refused.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background job has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// jobEvent logs a finished job at error level unless it succeeded or was canceled.
func jobEvent(err error) *zerolog.Event {
	if err == nil || errors.Is(err, context.Canceled) {
		return log.Info().Err(err)
	}
	return log.Error().Err(err)
}
