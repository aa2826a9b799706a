package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/feed"
	ws "github.com/johndosdos/cove/internal/websocket"
)

type WsOpts struct {
	Thread         feed.ThreadOptions
	MessageLimit   int
	MessageWindow  time.Duration
	OriginPatterns []string
}

// ServeWs upgrades the connection and attaches it to a live thread with the
// counterpart.
func ServeWs(log *slog.Logger, h *ws.Hub, messages feed.MessageBackend, opts WsOpts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		self, err := auth.GetUserFromContext(ctx)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		counterpart, err := counterpartParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		f := feed.NewThreadFeed(log, messages, self, counterpart, opts.Thread)
		defer f.Close()
		if err := f.Start(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.WarnContext(ctx, "failed to upgrade connection", "error", err)
			return
		}
		log.DebugContext(ctx, "upgraded connection",
			"user_id", self.String(),
			"counterpart_id", counterpart.String())

		c := ws.NewClient(conn, self, f)
		if opts.MessageLimit > 0 {
			c.SetMessageLimiter(opts.MessageLimit, opts.MessageWindow)
		}
		if !h.Add(ctx, c) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// We block on c.ReadMessage() because the request context will be
		// canceled as soon as we return from the handler. Closing the feed
		// afterwards ends c.WriteMessage().
		go c.WriteMessage(ctx)
		c.ReadMessage(ctx)
	}
}
