package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mpsync/syncer/internal/database"
	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/pagination"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	cfg := database.NewConfig(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	db, err := database.NewDB(cfg)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestUpsertArticlesKeepsPicURL(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := models.Article{ID: "a1", FeedID: "feed", Title: "First", PicURL: "https://img/1.png", PublishTime: 100}
	if err := repo.UpsertArticles(ctx, []models.Article{first}); err != nil {
		t.Fatalf("UpsertArticles() error = %v", err)
	}

	second := models.Article{ID: "a1", FeedID: "other", Title: "Second", PicURL: "https://img/2.png", PublishTime: 200}
	if err := repo.UpsertArticles(ctx, []models.Article{second}); err != nil {
		t.Fatalf("UpsertArticles() error = %v", err)
	}

	n, err := repo.CountArticles(ctx, "feed")
	if err != nil {
		t.Fatalf("CountArticles() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("CountArticles() = %d, want 1", n)
	}

	got, err := repo.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("GetArticle() error = %v", err)
	}
	if got.Title != "Second" || got.PublishTime != 200 {
		t.Errorf("title/publish = %q/%d, want Second/200", got.Title, got.PublishTime)
	}
	if got.PicURL != "https://img/1.png" || got.FeedID != "feed" {
		t.Errorf("pic/feed = %q/%q, want original values", got.PicURL, got.FeedID)
	}
}

func TestFindAccountsExcludesAndFilters(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	accounts := []models.Account{
		{ID: "1", Token: "t1", Name: "one", Status: models.StatusEnabled},
		{ID: "2", Token: "t2", Name: "two", Status: models.StatusEnabled},
		{ID: "3", Token: "t3", Name: "three", Status: models.StatusInvalid},
	}
	for i := range accounts {
		if err := repo.UpsertAccount(ctx, &accounts[i]); err != nil {
			t.Fatalf("UpsertAccount() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		exclude []string
		limit   int
		want    []string
	}{
		{"no exclusions", nil, 10, []string{"1", "2"}},
		{"excluded", []string{"1"}, 10, []string{"2"}},
		{"all excluded", []string{"1", "2"}, 10, nil},
		{"capped", nil, 1, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindAccounts(ctx, models.StatusEnabled, tt.exclude, tt.limit)
			if err != nil {
				t.Fatalf("FindAccounts() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("FindAccounts() returned %d accounts, want %d", len(got), len(tt.want))
			}
			for i, a := range got {
				if a.ID != tt.want[i] {
					t.Errorf("account %d = %s, want %s", i, a.ID, tt.want[i])
				}
			}
		})
	}
}

func TestUpdateAccountStatus(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAccount(ctx, &models.Account{ID: "1", Token: "t", Name: "n", Status: models.StatusEnabled}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := repo.UpdateAccountStatus(ctx, "1", models.StatusInvalid); err != nil {
			t.Fatalf("UpdateAccountStatus() call %d error = %v", i+1, err)
		}
	}
	a, err := repo.GetAccount(ctx, "1")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if a.Status != models.StatusInvalid {
		t.Errorf("status = %v, want invalid", a.Status)
	}

	if err := repo.UpdateAccountStatus(ctx, "missing", models.StatusInvalid); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccountStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAccountWritesOnlyPatchedFields(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.UpsertAccount(ctx, &models.Account{ID: "1", Token: "t", Name: "n", Status: models.StatusEnabled}); err != nil {
		t.Fatalf("UpsertAccount() error = %v", err)
	}
	// The engine invalidates the account between the edit being read and written.
	if err := repo.UpdateAccountStatus(ctx, "1", models.StatusInvalid); err != nil {
		t.Fatalf("UpdateAccountStatus() error = %v", err)
	}

	name := "renamed"
	got, err := repo.UpdateAccount(ctx, "1", models.AccountPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}
	if got.Name != "renamed" || got.Token != "t" || got.Status != models.StatusInvalid {
		t.Errorf("account = %q/%q/%v, want renamed/t/invalid", got.Name, got.Token, got.Status)
	}

	status := models.StatusEnabled
	if got, err = repo.UpdateAccount(ctx, "1", models.AccountPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateAccount(status) error = %v", err)
	}
	if got.Status != models.StatusEnabled || got.Name != "renamed" {
		t.Errorf("account = %q/%v, want renamed/enabled", got.Name, got.Status)
	}

	if _, err := repo.UpdateAccount(ctx, "missing", models.AccountPatch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccount(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.UpdateAccount(ctx, "missing", models.AccountPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccount(missing, empty) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateFeedKeepsSyncTime(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.UpsertFeed(ctx, models.NewFeed("feed")); err != nil {
		t.Fatalf("UpsertFeed() error = %v", err)
	}
	if err := repo.UpdateFeedSyncMeta(ctx, "feed", 777, models.MoreHistory); err != nil {
		t.Fatalf("UpdateFeedSyncMeta() error = %v", err)
	}

	intro := "about"
	got, err := repo.UpdateFeed(ctx, "feed", models.FeedPatch{Intro: &intro})
	if err != nil {
		t.Fatalf("UpdateFeed() error = %v", err)
	}
	if got.Intro != "about" || got.SyncTime != 777 {
		t.Errorf("intro/sync_time = %q/%d, want about/777", got.Intro, got.SyncTime)
	}
}

func TestFeedSyncMeta(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	feed := models.NewFeed("feed")
	feed.Name = "Feed"
	if err := repo.UpsertFeed(ctx, feed); err != nil {
		t.Fatalf("UpsertFeed() error = %v", err)
	}
	if err := repo.UpdateFeedSyncMeta(ctx, "feed", 12345, models.NoMoreHistory); err != nil {
		t.Fatalf("UpdateFeedSyncMeta() error = %v", err)
	}

	got, err := repo.GetFeed(ctx, "feed")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if got.SyncTime != 12345 || got.HasHistory != models.NoMoreHistory {
		t.Errorf("sync meta = %d/%d, want 12345/0", got.SyncTime, got.HasHistory)
	}

	// Editing descriptive fields leaves the history flag alone.
	name := "Renamed"
	if _, err := repo.UpdateFeed(ctx, "feed", models.FeedPatch{Name: &name}); err != nil {
		t.Fatalf("UpdateFeed() error = %v", err)
	}
	got, _ = repo.GetFeed(ctx, "feed")
	if got.Name != "Renamed" || got.HasHistory != models.NoMoreHistory {
		t.Errorf("after edit name/history = %q/%d", got.Name, got.HasHistory)
	}

	if _, err := repo.GetFeed(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFeed(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListFeedsOrderedByID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if err := repo.UpsertFeed(ctx, models.NewFeed(id)); err != nil {
			t.Fatalf("UpsertFeed(%s) error = %v", id, err)
		}
	}
	disabled := models.StatusInvalid
	if _, err := repo.UpdateFeed(ctx, "b", models.FeedPatch{Status: &disabled}); err != nil {
		t.Fatalf("UpdateFeed() error = %v", err)
	}

	feeds, err := repo.ListFeeds(ctx, models.StatusEnabled)
	if err != nil {
		t.Fatalf("ListFeeds() error = %v", err)
	}
	if len(feeds) != 2 || feeds[0].ID != "a" || feeds[1].ID != "c" {
		t.Errorf("ListFeeds() = %+v, want [a c]", feeds)
	}
}

func TestListArticlesPaginates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	var batch []models.Article
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		batch = append(batch, models.Article{ID: id, FeedID: "feed", Title: id, PublishTime: int64(100 + i/2)})
	}
	if err := repo.UpsertArticles(ctx, batch); err != nil {
		t.Fatalf("UpsertArticles() error = %v", err)
	}

	var seen []string
	var after *pagination.Cursor
	for page := 0; page < 5; page++ {
		items, err := repo.ListArticles(ctx, ArticleQuery{FeedID: "feed", After: after, Limit: 2})
		if err != nil {
			t.Fatalf("ListArticles() error = %v", err)
		}
		if len(items) == 0 {
			break
		}
		for _, a := range items {
			seen = append(seen, a.ID)
		}
		last := items[len(items)-1]
		after = &pagination.Cursor{PublishTime: last.PublishTime, ID: last.ID}
	}

	want := []string{"e", "d", "c", "b", "a"}
	if len(seen) != len(want) {
		t.Fatalf("paged ids = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("paged ids = %v, want %v", seen, want)
			break
		}
	}
}
