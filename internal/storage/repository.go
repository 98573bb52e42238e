// Package storage implements the keyed relational store for accounts, feeds and articles.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"mpsync/syncer/internal/database"
	"mpsync/syncer/internal/models"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

// Repository implements every storage operation on top of sqlx. The same
// statements serve SQLite and PostgreSQL; placeholders are rebound per driver.
type Repository struct {
	db *database.DB
}

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) get(ctx context.Context, dest any, query string, args ...any) error {
	err := r.db.GetContext(ctx, dest, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) execOne(ctx context.Context, query string, args ...any) error {
	n, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// setClause collects the columns of a partial update.
type setClause struct {
	columns []string
	args    []any
}

// setField adds column to s when value is set.
func setField[T any](s *setClause, column string, value *T) {
	if value == nil {
		return
	}
	s.columns = append(s.columns, column+" = ?")
	s.args = append(s.args, *value)
}

// update sets the collected columns of the row with the given id in one
// statement. An empty clause still bumps updated_at so a missing id reports
// ErrNotFound.
func (r *Repository) update(ctx context.Context, table, id string, set setClause) error {
	columns := append(set.columns, "updated_at = CURRENT_TIMESTAMP")
	query := "UPDATE " + table + " SET " + strings.Join(columns, ", ") + " WHERE id = ?"
	return r.execOne(ctx, query, append(set.args, id)...)
}

// --- Accounts ---

// ListAccounts returns all accounts, oldest first.
func (r *Repository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts := []models.Account{}
	if err := r.db.SelectContext(ctx, &accounts, `SELECT * FROM accounts ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount returns the account with the given id.
func (r *Repository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	if err := r.get(ctx, &a, `SELECT * FROM accounts WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

// UpsertAccount inserts the account or replaces its token, name and status.
func (r *Repository) UpsertAccount(ctx context.Context, a *models.Account) error {
	_, err := r.exec(ctx, `
		INSERT INTO accounts (id, token, name, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			name = excluded.name,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Token, a.Name, a.Status)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.ID, err)
	}
	return nil
}

// UpdateAccount writes the set fields of patch and returns the stored account.
// Columns the patch leaves nil are not touched.
func (r *Repository) UpdateAccount(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	var set setClause
	setField(&set, "token", patch.Token)
	setField(&set, "name", patch.Name)
	setField(&set, "status", patch.Status)
	if err := r.update(ctx, "accounts", id, set); err != nil {
		return nil, fmt.Errorf("update account %s: %w", id, err)
	}
	return r.GetAccount(ctx, id)
}

// DeleteAccount removes the account.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	if err := r.execOne(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

// FindAccounts returns up to limit accounts with the given status whose id is
// not in exclude. A limit of zero or less means no cap.
func (r *Repository) FindAccounts(ctx context.Context, status models.Status, exclude []string, limit int) ([]models.Account, error) {
	query := `SELECT * FROM accounts WHERE status = ?`
	args := []any{status}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, exclude)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("build account query: %w", err)
	}

	accounts := []models.Account{}
	if err := r.db.SelectContext(ctx, &accounts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccountStatus flips the status of one account.
func (r *Repository) UpdateAccountStatus(ctx context.Context, id string, status models.Status) error {
	err := r.execOne(ctx, `UPDATE accounts SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update account %s status: %w", id, err)
	}
	return nil
}

// --- Feeds ---

// ListFeeds returns the feeds with the given status in ascending id order.
func (r *Repository) ListFeeds(ctx context.Context, status models.Status) ([]models.Feed, error) {
	feeds := []models.Feed{}
	err := r.db.SelectContext(ctx, &feeds, r.db.Rebind(`SELECT * FROM feeds WHERE status = ? ORDER BY id ASC`), status)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// ListAllFeeds returns every feed, oldest first.
func (r *Repository) ListAllFeeds(ctx context.Context) ([]models.Feed, error) {
	feeds := []models.Feed{}
	if err := r.db.SelectContext(ctx, &feeds, `SELECT * FROM feeds ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// GetFeed returns the feed with the given id.
func (r *Repository) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	var f models.Feed
	if err := r.get(ctx, &f, `SELECT * FROM feeds WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("get feed %s: %w", id, err)
	}
	return &f, nil
}

// UpsertFeed inserts the feed or replaces its descriptive fields and status.
// The sync metadata of an existing feed belongs to the syncer and is kept.
func (r *Repository) UpsertFeed(ctx context.Context, f *models.Feed) error {
	_, err := r.exec(ctx, `
		INSERT INTO feeds (id, name, cover, intro, sync_time, update_time, has_history, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			cover = excluded.cover,
			intro = excluded.intro,
			update_time = excluded.update_time,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		f.ID, f.Name, f.Cover, f.Intro, f.SyncTime, f.UpdateTime, f.HasHistory, f.Status)
	if err != nil {
		return fmt.Errorf("upsert feed %s: %w", f.ID, err)
	}
	return nil
}

// UpdateFeed writes the set fields of patch and returns the stored feed.
// Columns the patch leaves nil are not touched.
func (r *Repository) UpdateFeed(ctx context.Context, id string, patch models.FeedPatch) (*models.Feed, error) {
	var set setClause
	setField(&set, "name", patch.Name)
	setField(&set, "cover", patch.Cover)
	setField(&set, "intro", patch.Intro)
	setField(&set, "sync_time", patch.SyncTime)
	setField(&set, "update_time", patch.UpdateTime)
	setField(&set, "status", patch.Status)
	if err := r.update(ctx, "feeds", id, set); err != nil {
		return nil, fmt.Errorf("update feed %s: %w", id, err)
	}
	return r.GetFeed(ctx, id)
}

// DeleteFeed removes the feed. Its articles are kept.
func (r *Repository) DeleteFeed(ctx context.Context, id string) error {
	if err := r.execOne(ctx, `DELETE FROM feeds WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete feed %s: %w", id, err)
	}
	return nil
}

// UpdateFeedSyncMeta records the outcome of a page sync.
func (r *Repository) UpdateFeedSyncMeta(ctx context.Context, id string, syncTime int64, hasHistory int) error {
	err := r.execOne(ctx, `
		UPDATE feeds SET sync_time = ?, has_history = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		syncTime, hasHistory, id)
	if err != nil {
		return fmt.Errorf("update feed %s sync meta: %w", id, err)
	}
	return nil
}
