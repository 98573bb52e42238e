package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/pagination"
)

// UpsertArticles stores a fetched page in one transaction. New rows are
// inserted in full; existing rows only take the new title and publish time.
func (r *Repository) UpsertArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("articles writer: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO articles (id, feed_id, title, pic_url, publish_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			publish_time = excluded.publish_time,
			updated_at = CURRENT_TIMESTAMP`))
	if err != nil {
		return fmt.Errorf("articles writer: failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, a.FeedID, a.Title, a.PicURL, a.PublishTime); err != nil {
			return fmt.Errorf("articles writer: failed to upsert article %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("articles writer: failed to commit transaction: %w", err)
	}

	log.Debug().
		Int("count", len(articles)).
		Str("feed_id", articles[0].FeedID).
		Msg("Articles upserted")
	return nil
}

// SaveArticle inserts or fully replaces one article.
func (r *Repository) SaveArticle(ctx context.Context, a *models.Article) error {
	_, err := r.exec(ctx, `
		INSERT INTO articles (id, feed_id, title, pic_url, publish_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			feed_id = excluded.feed_id,
			title = excluded.title,
			pic_url = excluded.pic_url,
			publish_time = excluded.publish_time,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.FeedID, a.Title, a.PicURL, a.PublishTime)
	if err != nil {
		return fmt.Errorf("save article %s: %w", a.ID, err)
	}
	return nil
}

// CountArticles returns how many articles are stored for a feed.
func (r *Repository) CountArticles(ctx context.Context, feedID string) (int, error) {
	var n int
	if err := r.get(ctx, &n, `SELECT COUNT(*) FROM articles WHERE feed_id = ?`, feedID); err != nil {
		return 0, fmt.Errorf("count articles for feed %s: %w", feedID, err)
	}
	return n, nil
}

// GetArticle returns the article with the given id.
func (r *Repository) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	var a models.Article
	if err := r.get(ctx, &a, `SELECT * FROM articles WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return &a, nil
}

// DeleteArticle removes one article.
func (r *Repository) DeleteArticle(ctx context.Context, id string) error {
	if err := r.execOne(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	return nil
}

// ArticleQuery selects a page of articles, newest first.
type ArticleQuery struct {
	FeedID string             // empty means all feeds
	After  *pagination.Cursor // position of the last article of the previous page
	Limit  int
}

// ListArticles returns up to q.Limit articles ordered by publish time, then id, descending.
func (r *Repository) ListArticles(ctx context.Context, q ArticleQuery) ([]models.Article, error) {
	query := `SELECT * FROM articles WHERE 1 = 1`
	var args []any

	if q.FeedID != "" {
		query += ` AND feed_id = ?`
		args = append(args, q.FeedID)
	}
	if q.After != nil {
		query += ` AND (publish_time < ? OR (publish_time = ? AND id < ?))`
		args = append(args, q.After.PublishTime, q.After.PublishTime, q.After.ID)
	}
	query += ` ORDER BY publish_time DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	articles := []models.Article{}
	if err := r.db.SelectContext(ctx, &articles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return articles, nil
}
