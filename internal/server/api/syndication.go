package api

import (
	"fmt"
	"html"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/storage"
)

const (
	defaultFeedItems = 30
	allFeedsID       = "all"
)

var feedContentTypes = map[string]string{
	".atom": "application/atom+xml; charset=utf-8",
	".rss":  "application/rss+xml; charset=utf-8",
	".json": "application/feed+json; charset=utf-8",
}

// Syndication serves the stored articles of a feed, or of every feed for
// "all", as Atom, RSS or JSON Feed depending on the file extension.
func (h *Handler) Syndication(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	contentType, ok := feedContentTypes[ext]
	if !ok {
		http.Error(w, "Unsupported feed format", http.StatusNotFound)
		return
	}
	feedID := strings.TrimSuffix(file, ext)

	limit, ok := parseLimit(w, r, defaultFeedItems)
	if !ok {
		return
	}

	out := &feeds.Feed{
		Title:   "All feeds",
		Link:    &feeds.Link{Href: requestURL(r)},
		Id:      feedID,
		Updated: time.Now(),
	}
	q := storage.ArticleQuery{Limit: limit}
	if feedID != allFeedsID {
		f, err := h.store.GetFeed(r.Context(), feedID)
		if err != nil {
			writeError(w, r, err, "Error fetching feed")
			return
		}
		out.Title = f.Name
		out.Description = f.Intro
		if f.Cover != "" {
			out.Image = &feeds.Image{Url: f.Cover, Title: f.Name, Link: out.Link.Href}
		}
		if f.SyncTime > 0 {
			out.Updated = time.Unix(f.SyncTime, 0)
		}
		q.FeedID = feedID
	}

	articles, err := h.store.ListArticles(r.Context(), q)
	if err != nil {
		writeError(w, r, err, "Error fetching articles")
		return
	}
	for _, a := range articles {
		out.Items = append(out.Items, feedItem(a))
	}

	var body string
	switch ext {
	case ".atom":
		body, err = out.ToAtom()
	case ".rss":
		body, err = out.ToRss()
	default:
		body, err = out.ToJSON()
	}
	if err != nil {
		log.Error().Err(err).Str("feed_id", feedID).Msg("Error rendering feed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Error().Err(err).Msg("Error writing feed body to client")
	}
}

func feedItem(a models.Article) *feeds.Item {
	published := time.Unix(a.PublishTime, 0)
	item := &feeds.Item{
		Id:      a.ID,
		Title:   a.Title,
		Link:    &feeds.Link{Href: a.URL()},
		Created: published,
		Updated: published,
	}
	if a.PicURL != "" {
		item.Description = fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(a.PicURL), html.EscapeString(a.Title))
	}
	return item
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.Path
}
