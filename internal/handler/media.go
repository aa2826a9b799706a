package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/johndosdos/cove/internal/objectstore"
)

type mediaStore interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// ServeMedia serves stored objects at their public URL. The key is the rest
// of the path after the media prefix.
func ServeMedia(log *slog.Logger, objects mediaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" {
			http.NotFound(w, r)
			return
		}

		data, contentType, err := objects.Get(r.Context(), key)
		if errors.Is(err, objectstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.ErrorContext(r.Context(), "failed to load object", "key", key, "error", err)
			http.Error(w, "Server error.", http.StatusInternalServerError)
			return
		}

		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		// Picture URLs carry a content version, so a stored response never
		// goes stale.
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
