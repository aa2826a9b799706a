package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/johndosdos/cove/internal"
	"github.com/johndosdos/cove/internal/avatar"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/objectstore"
	ratelimiter "github.com/johndosdos/cove/internal/rate_limiter"
	ws "github.com/johndosdos/cove/internal/websocket"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Log         *slog.Logger
	Messages    feed.MessageBackend
	Profiles    feed.ProfileBackend
	Pictures    avatar.ProfileStore
	Objects     avatar.ObjectStore
	Hub         *ws.Hub
	Limiter     *ratelimiter.SenderLimiter
	TokenSecret string
	Ws          WsOpts
	Avatar      avatar.Options
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	limit := func(next http.Handler) http.Handler { return next }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(internal.Middleware(d.TokenSecret))

	r.Get("/healthz", ServeHealth())
	r.Get("/", ServeRoot())

	r.Get("/conversations", ServeConversations(d.Log, d.Profiles))
	r.Get("/conversations/stream", StreamConversations(d.Log, d.Profiles))

	r.Route("/threads/{counterpartID}", func(r chi.Router) {
		r.Get("/", ServeThread(d.Log, d.Messages, d.Ws.Thread))
		r.Get("/ws", ServeWs(d.Log, d.Hub, d.Messages, d.Ws))
		r.With(limit).Post("/messages", SendMessage(d.Log, d.Messages, d.Ws.Thread))
	})

	r.With(limit).Post("/profile/picture", UploadProfilePicture(d.Log, d.Objects, d.Pictures, d.Avatar))
	r.Get(objectstore.MediaPrefix+"*", ServeMedia(d.Log, d.Objects))

	return r
}
