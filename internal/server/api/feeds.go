package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/feedsync"
	"mpsync/syncer/internal/models"
)

type feedRequest struct {
	Name       string         `json:"name"`
	Cover      string         `json:"cover"`
	Intro      string         `json:"intro"`
	UpdateTime int64          `json:"updateTime"`
	Status     *models.Status `json:"status"`
}

type backfillStatusResponse struct {
	feedsync.BackfillStatus
	Running bool `json:"running"`
}

type refreshStatusResponse struct {
	Running bool `json:"running"`
}

func (h *Handler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.store.ListAllFeeds(r.Context())
	if err != nil {
		writeError(w, r, err, "Error listing feeds")
		return
	}
	writeJSON(w, r, http.StatusOK, itemsResponse[models.Feed]{Items: feeds})
}

func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetFeed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Error fetching feed")
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

// PutFeed subscribes to a feed or replaces its metadata. The history flag of
// an existing feed is kept.
func (h *Handler) PutFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req feedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	f := models.NewFeed(id)
	f.Name = req.Name
	f.Cover = req.Cover
	f.Intro = req.Intro
	f.UpdateTime = req.UpdateTime
	if req.UpdateTime == 0 {
		f.UpdateTime = time.Now().Unix()
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}
		f.Status = *req.Status
	}

	if err := h.store.UpsertFeed(r.Context(), f); err != nil {
		writeError(w, r, err, "Error saving feed")
		return
	}
	hlog.FromRequest(r).Info().Str("feed_id", id).Msg("Feed saved")

	h.GetFeed(w, r)
}

func (h *Handler) PatchFeed(w http.ResponseWriter, r *http.Request) {
	var patch models.FeedPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	f, err := h.store.UpdateFeed(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err, "Error updating feed")
		return
	}
	writeJSON(w, r, http.StatusOK, f)
}

func (h *Handler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteFeed(r.Context(), id); err != nil {
		writeError(w, r, err, "Error deleting feed")
		return
	}
	hlog.FromRequest(r).Info().Str("feed_id", id).Msg("Feed deleted")
	w.WriteHeader(http.StatusNoContent)
}

// RefreshFeed syncs the latest page of one feed before responding.
func (h *Handler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetFeed(r.Context(), id); err != nil {
		writeError(w, r, err, "Error fetching feed")
		return
	}

	res, err := h.syncer.RefreshFeed(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Error refreshing feed")
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// TriggerBackfill starts a background history backfill of one feed.
func (h *Handler) TriggerBackfill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetFeed(r.Context(), id); err != nil {
		writeError(w, r, err, "Error fetching feed")
		return
	}
	writeJSON(w, r, http.StatusAccepted, startedResponse{Started: h.syncer.TriggerBackfill(id)})
}

func (h *Handler) BackfillStatus(w http.ResponseWriter, r *http.Request) {
	status := h.syncer.BackfillStatus()
	writeJSON(w, r, http.StatusOK, backfillStatusResponse{BackfillStatus: status, Running: status.Running()})
}

// TriggerBulkRefresh starts a background refresh of every enabled feed.
func (h *Handler) TriggerBulkRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusAccepted, startedResponse{Started: h.syncer.TriggerBulkRefresh()})
}

func (h *Handler) BulkRefreshStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, refreshStatusResponse{Running: h.syncer.IsBulkRefreshRunning()})
}
