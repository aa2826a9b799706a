package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/feed"
)

// StreamConversations pushes the conversation list as server-sent events,
// one "conversations" event per view.
func StreamConversations(log *slog.Logger, profiles feed.ProfileBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		self := auth.UserOrNil(ctx)

		f, closeFeed, err := openConversations(ctx, log, profiles, self, r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		defer closeFeed()

		w.Header().Set("X-Accel-Buffering", "no")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		if err := rc.Flush(); err != nil {
			log.ErrorContext(ctx, "failed to flush stream", "error", err)
			return
		}
		log.DebugContext(ctx, "conversation stream opened", "user_id", self.String())

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		updates := f.Updates()
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}

				data, err := json.Marshal(view)
				if err != nil {
					log.ErrorContext(ctx, "failed to encode view", "error", err)
					return
				}

				fmt.Fprint(w, "event: conversations\n")  //nolint:errcheck
				fmt.Fprintf(w, "data: %s\n\n", data) //nolint:errcheck

				if err := rc.Flush(); err != nil {
					log.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ticker.C:
				fmt.Fprint(w, ": \n\n") //nolint:errcheck
				if err := rc.Flush(); err != nil {
					log.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ctx.Done():
				log.DebugContext(ctx, "conversation stream closed", "reason", ctx.Err())
				return
			}
		}
	}
}
