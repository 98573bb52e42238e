package feedsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

var errFeedNotFound = errors.New("feed not found")

type memStore struct {
	mu       sync.Mutex
	feeds    map[string]*models.Feed
	articles map[string]models.Article
	listErr  error
}

func newMemStore(feeds ...models.Feed) *memStore {
	s := &memStore{
		feeds:    make(map[string]*models.Feed),
		articles: make(map[string]models.Article),
	}
	for _, f := range feeds {
		f := f
		s.feeds[f.ID] = &f
	}
	return s
}

func (s *memStore) UpsertArticles(ctx context.Context, articles []models.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		if old, ok := s.articles[a.ID]; ok {
			old.Title = a.Title
			old.PublishTime = a.PublishTime
			s.articles[a.ID] = old
			continue
		}
		s.articles[a.ID] = a
	}
	return nil
}

func (s *memStore) CountArticles(ctx context.Context, feedID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.articles {
		if a.FeedID == feedID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateFeedSyncMeta(ctx context.Context, feedID string, syncTime int64, hasHistory int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[feedID]
	if !ok {
		return errFeedNotFound
	}
	f.SyncTime = syncTime
	f.HasHistory = hasHistory
	return nil
}

func (s *memStore) ListFeeds(ctx context.Context, status models.Status) ([]models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Feed
	for _, f := range s.feeds {
		if f.Status == status {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetFeed(ctx context.Context, feedID string) (*models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.feeds[feedID]
	if !ok {
		return nil, errFeedNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *memStore) feed(id string) models.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.feeds[id]
}

// pagedLister serves fixed pages per feed and records every request.
type pagedLister struct {
	mu        sync.Mutex
	pages     map[string][][]upstream.Article
	requested []string
}

func (l *pagedLister) ListArticles(ctx context.Context, account models.Account, feedID string, page int) ([]upstream.Article, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requested = append(l.requested, fmt.Sprintf("%s:%d", feedID, page))
	pages := l.pages[feedID]
	if page < 1 || page > len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func makeArticles(prefix string, n int) []upstream.Article {
	out := make([]upstream.Article, n)
	for i := range out {
		out[i] = upstream.Article{
			ID:          fmt.Sprintf("%s-%d", prefix, i),
			Title:       fmt.Sprintf("%s title %d", prefix, i),
			PublishTime: int64(1700000000 - i),
		}
	}
	return out
}

type staticAccounts struct {
	blocked []string
}

func (a staticAccounts) Select(ctx context.Context) (models.Account, error) {
	return models.Account{ID: "acc", Token: "t"}, nil
}

func (a staticAccounts) BlockedToday() []string { return slices.Clone(a.blocked) }

// scriptedSyncer hands out results from a per-call script and records calls.
type scriptedSyncer struct {
	mu     sync.Mutex
	calls  []string
	script func(feedID string, page int) (SyncResult, error)
}

func (s *scriptedSyncer) SyncPage(ctx context.Context, feedID string, page int) (SyncResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf("%s:%d", feedID, page))
	script := s.script
	s.mu.Unlock()
	return script(feedID, page)
}

func (s *scriptedSyncer) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.slept)
}

func enabledFeed(id string, hasHistory int) models.Feed {
	return models.Feed{ID: id, Status: models.StatusEnabled, HasHistory: hasHistory}
}
