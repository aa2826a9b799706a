package websocket

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/johndosdos/cove/internal/feed"
)

// Server frame types.
const (
	FrameView        = "view"
	FrameRateLimited = "rate_limited"
	FrameError       = "error"
)

// Client frame types.
const (
	FrameDraft = "draft"
	FrameSend  = "send"
	FrameRetry = "retry"
)

// ClientFrame is what the browser sends over the socket.
type ClientFrame struct {
	Type      string    `json:"type" validate:"required,oneof=draft send retry"`
	Content   string    `json:"content" validate:"max=4000"`
	ClientRef uuid.UUID `json:"client_ref" validate:"required_if=Type retry"`
}

// ServerFrame is what the server pushes to the browser.
type ServerFrame struct {
	Type    string           `json:"type"`
	View    *feed.ThreadView `json:"view,omitempty"`
	RetryIn int              `json:"retry_in,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Thread is the live conversation a client is attached to.
type Thread interface {
	Updates() <-chan feed.ThreadView
	SetDraft(text string)
	Send(ctx context.Context) (*feed.Outgoing, error)
	Retry(ctx context.Context, clientRef uuid.UUID) (*feed.Outgoing, error)
}

type Client struct {
	UserID     uuid.UUID
	conn       *websocket.Conn
	Hub        *Hub
	thread     Thread
	notices    chan ServerFrame
	messageLim *rate.Limiter
	validate   *validator.Validate
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, thread Thread) *Client {
	return &Client{
		UserID:   userID,
		conn:     conn,
		thread:   thread,
		notices:  make(chan ServerFrame, 8),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	l := rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
	c.messageLim = l
}

// WriteMessage pushes every thread view, and any notice raised while
// reading, to the outgoing websocket stream.
func (c *Client) WriteMessage(ctx context.Context) {
	updates := c.thread.Updates()
	for {
		select {
		case view, ok := <-updates:
			// The feed closes its updates when the thread is torn down.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "thread closed")
				return
			}
			c.write(ctx, ServerFrame{Type: FrameView, View: &view})

		case notice := <-c.notices:
			c.write(ctx, notice)

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}

func (c *Client) write(ctx context.Context, frame ServerFrame) {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := wsjson.Write(writeCtx, c.conn, frame); err != nil {
		slog.WarnContext(ctx, "failed to write frame",
			"error", err,
			"frame_type", frame.Type,
			"user_id", c.UserID.String())
	}
}

func (c *Client) notify(frame ServerFrame) {
	select {
	case c.notices <- frame:
	default:
		slog.Warn("skipping notice - channel full or client slow",
			"frame_type", frame.Type,
			"user_id", c.UserID.String())
	}
}

// allowMessage reports whether another send fits in the client's rate, and
// otherwise how many seconds until it does.
func (c *Client) allowMessage() (bool, int) {
	if c.messageLim == nil {
		return true, 0
	}
	r := c.messageLim.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return true, 0
	}
	r.Cancel()
	return false, int(math.Ceil(delay.Seconds()))
}
