// Package api implements the dashboard HTTP handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/accounts"
	"mpsync/syncer/internal/feedsync"
	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/storage"
	"mpsync/syncer/internal/upstream"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	maxBodyBytes = 1 << 20
)

// Store is the persistent state the dashboard reads and edits.
type Store interface {
	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	UpsertAccount(ctx context.Context, a *models.Account) error
	UpdateAccount(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	ListAllFeeds(ctx context.Context) ([]models.Feed, error)
	GetFeed(ctx context.Context, id string) (*models.Feed, error)
	UpsertFeed(ctx context.Context, f *models.Feed) error
	UpdateFeed(ctx context.Context, id string, patch models.FeedPatch) (*models.Feed, error)
	DeleteFeed(ctx context.Context, id string) error

	ListArticles(ctx context.Context, q storage.ArticleQuery) ([]models.Article, error)
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	SaveArticle(ctx context.Context, a *models.Article) error
	DeleteArticle(ctx context.Context, id string) error
}

// Syncer runs and reports on the sync jobs.
type Syncer interface {
	RefreshFeed(ctx context.Context, feedID string) (feedsync.SyncResult, error)
	TriggerBackfill(feedID string) bool
	TriggerBulkRefresh() bool
	BackfillStatus() feedsync.BackfillStatus
	IsBulkRefreshRunning() bool
	BlockedAccountIDs() []string
}

// Accounts selects accounts for dashboard-initiated upstream calls and
// forgets penalties after manual edits.
type Accounts interface {
	Select(ctx context.Context) (models.Account, error)
	Unblock(accountID string)
}

// Platform is the subset of the upstream client the dashboard calls directly.
type Platform interface {
	ResolveFeed(ctx context.Context, account models.Account, articleURL string) ([]upstream.FeedInfo, error)
	CreateLoginSession(ctx context.Context) (upstream.LoginSession, error)
	LoginResult(ctx context.Context, sessionID string) (upstream.LoginResult, error)
}

// Handler holds dependencies for the API handlers.
type Handler struct {
	store    Store
	syncer   Syncer
	accounts Accounts
	platform Platform
}

// NewHandler creates a new handler instance.
func NewHandler(store Store, syncer Syncer, accounts Accounts, platform Platform) *Handler {
	return &Handler{
		store:    store,
		syncer:   syncer,
		accounts: accounts,
		platform: platform,
	}
}

// Routes registers the /v1 endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.ListAccounts)
		r.Get("/{id}", h.GetAccount)
		r.Put("/{id}", h.PutAccount)
		r.Patch("/{id}", h.PatchAccount)
		r.Delete("/{id}", h.DeleteAccount)
	})

	r.Route("/feeds", func(r chi.Router) {
		r.Get("/", h.ListFeeds)
		r.Post("/refresh", h.TriggerBulkRefresh)
		r.Get("/refresh/status", h.BulkRefreshStatus)
		r.Get("/history/status", h.BackfillStatus)
		r.Get("/{id}", h.GetFeed)
		r.Put("/{id}", h.PutFeed)
		r.Patch("/{id}", h.PatchFeed)
		r.Delete("/{id}", h.DeleteFeed)
		r.Post("/{id}/refresh", h.RefreshFeed)
		r.Post("/{id}/history", h.TriggerBackfill)
	})

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", h.ListArticles)
		r.Get("/{id}", h.GetArticle)
		r.Put("/{id}", h.PutArticle)
		r.Delete("/{id}", h.DeleteArticle)
	})

	r.Route("/platform", func(r chi.Router) {
		r.Post("/resolve", h.ResolveFeed)
		r.Post("/login", h.CreateLogin)
		r.Get("/login/{id}", h.LoginResult)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
		return
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}

// writeError maps err to a status code and logs it.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := hlog.FromRequest(r)

	var ue *upstream.Error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Debug().Err(err).Msg(msg)
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, accounts.ErrNoAccountAvailable):
		log.Warn().Err(err).Msg(msg)
		http.Error(w, "No account available", http.StatusServiceUnavailable)
	case errors.As(err, &ue):
		log.Warn().Err(err).Str("kind", ue.Kind.String()).Msg(msg)
		http.Error(w, "Upstream error: "+ue.Kind.String(), http.StatusBadGateway)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// decodeBody reads a JSON request body into dst, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Invalid request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type startedResponse struct {
	Started bool `json:"started"`
}
