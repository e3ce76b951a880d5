package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"matscout-engine/internal/store"
)

type VideosHandler struct {
	DB *sql.DB
}

// Thumbnail serves a video's thumbnail from the local cache, fetching and
// storing it on the first request so the library UI works offline after.
func (h VideosHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	t, ok, err := store.GetThumb(r.Context(), h.DB, sourceID)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if !ok {
		u, found, err := store.VideoThumbnailURL(r.Context(), h.DB, sourceID)
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		if !found {
			WriteError(w, r, http.StatusNotFound, "video_not_found", "no video with source id "+sourceID)
			return
		}
		if u == "" {
			WriteError(w, r, http.StatusNotFound, "no_thumbnail", "video has no thumbnail url")
			return
		}
		t, err = store.CacheThumbFromURL(r.Context(), h.DB, sourceID, u)
		if err != nil {
			WriteError(w, r, http.StatusBadGateway, "thumb_fetch_failed", err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", t.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(t.Bytes)
}
