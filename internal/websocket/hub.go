package websocket

import (
	"context"
	"log/slog"

	"github.com/coder/websocket"
)

type Registration struct {
	Client *Client
	Done   chan struct{}
}

// Hub tracks the open thread sockets so they can be closed together on
// shutdown.
type Hub struct {
	log        *slog.Logger
	clients    map[*Client]struct{}
	Register   chan Registration
	Unregister chan *Client
	done       chan struct{}
}

// NewHub returns a new instance of Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*Client]struct{}),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run manages client registration until ctx is cancelled, then closes every
// remaining socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case reg := <-h.Register:
			client := reg.Client
			h.clients[client] = struct{}{}
			client.Hub = h
			close(reg.Done)
			h.log.DebugContext(ctx, "client registered",
				"user_id", client.UserID.String(),
				"clients", len(h.clients))

		case client := <-h.Unregister:
			delete(h.clients, client)
			h.log.DebugContext(ctx, "client unregistered",
				"user_id", client.UserID.String(),
				"clients", len(h.clients))

		case <-ctx.Done():
			for client := range h.clients {
				client.conn.Close(websocket.StatusGoingAway, "server shutting down")
			}
			h.log.InfoContext(ctx, "websocket hub stopped", "clients", len(h.clients))
			return
		}
	}
}

// Add registers client and waits until the hub took it. It reports false
// when the hub is no longer running or ctx ends first.
func (h *Hub) Add(ctx context.Context, client *Client) bool {
	reg := Registration{Client: client, Done: make(chan struct{})}
	select {
	case h.Register <- reg:
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
	<-reg.Done
	return true
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}
