package httpapi

import (
	"database/sql"
	"net/http"

	"matscout-engine/internal/events"
	"matscout-engine/internal/quota"
)

type HealthHandler struct {
	DB     *sql.DB
	Hub    *events.Hub
	Ledger *quota.Ledger
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true}

	if err := h.DB.PingContext(r.Context()); err != nil {
		resp["ok"] = false
		resp["db"] = err.Error()
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if h.Hub != nil {
		resp["sseSubscribers"] = h.Hub.Subscribers()
	}
	if h.Ledger != nil {
		if used, err := h.Ledger.Used(r.Context()); err == nil {
			resp["quotaUsed"] = used
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
