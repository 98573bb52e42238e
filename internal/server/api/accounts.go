package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mpsync/syncer/internal/models"
)

type accountsResponse struct {
	Items  []models.Account `json:"items"`
	Blocks []string         `json:"blocks"`
}

type accountRequest struct {
	Token  string         `json:"token"`
	Name   string         `json:"name"`
	Status *models.Status `json:"status"`
}

// ListAccounts returns every account together with the ids blocked today.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err, "Error listing accounts")
		return
	}
	writeJSON(w, r, http.StatusOK, accountsResponse{
		Items:  items,
		Blocks: h.syncer.BlockedAccountIDs(),
	})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Error fetching account")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// PutAccount creates or replaces an account.
func (h *Handler) PutAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	a := &models.Account{ID: id, Token: req.Token, Name: req.Name, Status: models.StatusEnabled}
	if req.Status != nil {
		if !req.Status.Valid() {
			http.Error(w, "Invalid status", http.StatusBadRequest)
			return
		}
		a.Status = *req.Status
	}

	if err := h.store.UpsertAccount(r.Context(), a); err != nil {
		writeError(w, r, err, "Error saving account")
		return
	}
	h.accounts.Unblock(id)
	hlog.FromRequest(r).Info().Str("account_id", id).Msg("Account saved")

	h.GetAccount(w, r)
}

func (h *Handler) PatchAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch models.AccountPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	a, err := h.store.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err, "Error updating account")
		return
	}
	h.accounts.Unblock(id)
	writeJSON(w, r, http.StatusOK, a)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err, "Error deleting account")
		return
	}
	h.accounts.Unblock(id)
	hlog.FromRequest(r).Info().Str("account_id", id).Msg("Account deleted")
	w.WriteHeader(http.StatusNoContent)
}
