package handler

import (
	"log/slog"
	"net/http"

	"github.com/johndosdos/cove/internal/auth"
)

func ServeRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Known users go straight to their conversation list.
		if _, err := auth.GetUserFromContext(r.Context()); err != nil {
			slog.DebugContext(r.Context(), "handler/root: anonymous request", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		http.Redirect(w, r, "/conversations", http.StatusSeeOther)
	}
}

func ServeHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
