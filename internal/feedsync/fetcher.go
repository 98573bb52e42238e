// Package feedsync keeps stored feeds in step with the platform: it fetches
// article pages with account rotation and retry, writes them to storage and
// runs the history backfill and bulk refresh jobs.
package feedsync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

// maxRetries is the number of extra attempts after a retryable failure.
const maxRetries = 3

// AccountSelector picks the account used for the next upstream call.
type AccountSelector interface {
	Select(ctx context.Context) (models.Account, error)
}

// ArticleLister fetches one page of a feed's articles with a given account.
type ArticleLister interface {
	ListArticles(ctx context.Context, account models.Account, feedID string, page int) ([]upstream.Article, error)
}

// Fetcher fetches article pages, retrying transient failures with a fresh account.
type Fetcher struct {
	accounts AccountSelector
	lister   ArticleLister
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a fetcher. Retry n waits n*backoff.
func NewFetcher(accounts AccountSelector, lister ArticleLister, backoff time.Duration) *Fetcher {
	return &Fetcher{
		accounts: accounts,
		lister:   lister,
		backoff:  backoff,
		sleep:    upstream.Sleep,
	}
}

// FetchPage returns the articles on page of feedID. Only errors upstream.IsRetryable
// accepts are retried; the last error is returned once attempts run out.
func (f *Fetcher) FetchPage(ctx context.Context, feedID string, page int) ([]upstream.Article, error) {
	for attempt := 1; ; attempt++ {
		account, err := f.accounts.Select(ctx)
		if err != nil {
			return nil, err
		}

		articles, err := f.lister.ListArticles(ctx, account, feedID, page)
		if err == nil {
			return articles, nil
		}

		logger := log.With().
			Str("feed_id", feedID).
			Int("page", page).
			Str("account_id", account.ID).
			Int("attempt", attempt).
			Str("kind", upstream.KindOf(err).String()).
			Logger()

		if !upstream.IsRetryable(err) || attempt > maxRetries {
			logger.Warn().Err(err).Msg("Giving up on article page")
			return nil, err
		}

		delay := time.Duration(attempt) * f.backoff
		logger.Warn().Err(err).Dur("retry_in", delay).Msg("Article page fetch failed, retrying")
		if serr := f.sleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
}
