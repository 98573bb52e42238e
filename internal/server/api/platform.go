package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/models"
	"mpsync/syncer/internal/upstream"
)

type resolveRequest struct {
	URL string `json:"url"`
}

type loginResultResponse struct {
	Message   string `json:"message"`
	AccountID string `json:"accountId,omitempty"`
	Username  string `json:"username,omitempty"`
}

// ResolveFeed looks up the feed an article link was published by.
func (h *Handler) ResolveFeed(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		http.Error(w, "url must be an absolute article link", http.StatusBadRequest)
		return
	}

	account, err := h.accounts.Select(r.Context())
	if err != nil {
		writeError(w, r, err, "Error selecting account")
		return
	}
	feeds, err := h.platform.ResolveFeed(r.Context(), account, req.URL)
	if err != nil {
		writeError(w, r, err, "Error resolving feed")
		return
	}
	writeJSON(w, r, http.StatusOK, itemsResponse[upstream.FeedInfo]{Items: feeds})
}

// CreateLogin starts a QR login for a new account.
func (h *Handler) CreateLogin(w http.ResponseWriter, r *http.Request) {
	session, err := h.platform.CreateLoginSession(r.Context())
	if err != nil {
		writeError(w, r, err, "Error creating login session")
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

// LoginResult waits for a login session and stores the account it yields.
func (h *Handler) LoginResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.platform.LoginResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Error fetching login result")
		return
	}

	resp := loginResultResponse{Message: res.Message}
	if id := res.AccountID(); id != "" && res.Token != "" {
		a := &models.Account{ID: id, Token: res.Token, Name: res.Username, Status: models.StatusEnabled}
		if err := h.store.UpsertAccount(r.Context(), a); err != nil {
			writeError(w, r, err, "Error saving account")
			return
		}
		h.accounts.Unblock(id)
		hlog.FromRequest(r).Info().Str("account_id", id).Msg("Account logged in")
		resp.AccountID = id
		resp.Username = res.Username
	}
	writeJSON(w, r, http.StatusOK, resp)
}
