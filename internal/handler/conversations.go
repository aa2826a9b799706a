package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/search"
)

// openConversations starts a conversation list feed narrowed to query. The
// returned func closes the feed and its search index.
func openConversations(ctx context.Context, log *slog.Logger, profiles feed.ProfileBackend,
	self uuid.UUID, query string) (*feed.ConversationListFeed, func(), error) {
	var searcher feed.Searcher
	index, err := search.NewProfileIndex()
	if err != nil {
		log.WarnContext(ctx, "search unavailable, falling back to prefix matching", "error", err)
	} else {
		searcher = index
	}

	f := feed.NewConversationListFeed(log, profiles, self, searcher)
	closeAll := func() {
		f.Close()
		if index != nil {
			if err := index.Close(); err != nil {
				log.WarnContext(ctx, "failed to close search index", "error", err)
			}
		}
	}

	if query != "" {
		f.Search(query)
	}
	if err := f.Start(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}
	return f, closeAll, nil
}

// ServeConversations answers the conversation list as of its first
// snapshot.
func ServeConversations(log *slog.Logger, profiles feed.ProfileBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		self := auth.UserOrNil(ctx)

		f, closeFeed, err := openConversations(ctx, log, profiles, self, r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		defer closeFeed()

		if !waitSynced(ctx, f.Synced()) {
			writeErrorString(w, http.StatusGatewayTimeout, "conversation list not available")
			return
		}
		writeJSON(w, http.StatusOK, f.View())
	}
}
