package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"matscout-engine/internal/secrets"
)

type SecretsHandler struct{}

type setSecretReq struct {
	Value string `json:"value"`
}

// Set stores one API key in the OS keyring. Values never land in the
// config file or the database.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	account, ok := secrets.ByName[chi.URLParam(r, "account")]
	if !ok {
		WriteError(w, r, http.StatusNotFound, "unknown_account", "account must be search, llm, or email")
		return
	}

	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := secrets.Set(account, req.Value); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_error", "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
