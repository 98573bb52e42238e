package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/pagination"
	"mpsync/syncer/internal/storage"
)

// articlesResponse is one page of articles.
type articlesResponse struct {
	Items      []models.Article `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

type articleRequest struct {
	FeedID      string `json:"feedId"`
	Title       string `json:"title"`
	PicURL      string `json:"picUrl"`
	PublishTime int64  `json:"publishTime"`
}

// parseLimit reads the limit query parameter, answering 400 when it is out of range.
func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > maxLimit {
		hlog.FromRequest(r).Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
		http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

// ListArticles returns articles newest first, optionally for one feed.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	limit, ok := parseLimit(w, r, defaultLimit)
	if !ok {
		return
	}

	q := storage.ArticleQuery{
		FeedID: r.URL.Query().Get("feed_id"),
		Limit:  limit + 1, // one extra to detect the next page
	}
	if cursorStr := r.URL.Query().Get("cursor"); cursorStr != "" {
		cursor, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		q.After = cursor
	}

	items, err := h.store.ListArticles(r.Context(), q)
	if err != nil {
		writeError(w, r, err, "Error fetching articles from repository")
		return
	}

	resp := articlesResponse{Items: items}
	if len(items) > limit {
		resp.Items = items[:limit]
		last := resp.Items[len(resp.Items)-1]
		next := pagination.EncodeCursor(last.PublishTime, last.ID)
		resp.NextCursor = &next
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Error fetching article")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// PutArticle stores an article as given, overwriting every field.
func (h *Handler) PutArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FeedID == "" || req.Title == "" {
		http.Error(w, "feedId and title are required", http.StatusBadRequest)
		return
	}

	a := &models.Article{
		ID:          chi.URLParam(r, "id"),
		FeedID:      req.FeedID,
		Title:       req.Title,
		PicURL:      req.PicURL,
		PublishTime: req.PublishTime,
	}
	if err := h.store.SaveArticle(r.Context(), a); err != nil {
		writeError(w, r, err, "Error saving article")
		return
	}
	h.GetArticle(w, r)
}

func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteArticle(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err, "Error deleting article")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
