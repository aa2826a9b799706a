package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/johndosdos/cove/internal/feed"
)

// ReadMessage reads the incoming frames from the websocket stream and applies
// them to the thread until the connection closes.
func (c *Client) ReadMessage(ctx context.Context) {
	defer func() {
		if c.Hub != nil {
			c.Hub.unregister(c)
		}
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				slog.WarnContext(ctx, "websocket read failed", "error", err)
			}
			return
		}

		// The app only supports text format for now...
		if msgType != websocket.MessageText {
			continue
		}

		var frame ClientFrame
		if err := json.Unmarshal(p, &frame); err != nil {
			slog.WarnContext(ctx, "failed to process payload from client", "error", err)
			c.notify(ServerFrame{Type: FrameError, Error: "malformed frame"})
			continue
		}
		if err := c.validate.Struct(frame); err != nil {
			slog.WarnContext(ctx, "invalid frame from client", "error", err)
			c.notify(ServerFrame{Type: FrameError, Error: "invalid frame"})
			continue
		}

		if err := c.handle(ctx, frame); errors.Is(err, feed.ErrClosed) {
			return
		}
	}
}

func (c *Client) handle(ctx context.Context, frame ClientFrame) error {
	switch frame.Type {
	case FrameDraft:
		c.thread.SetDraft(frame.Content)
		return nil

	case FrameSend:
		if frame.Content != "" {
			c.thread.SetDraft(frame.Content)
		}
		if ok, retryIn := c.allowMessage(); !ok {
			c.notify(ServerFrame{Type: FrameRateLimited, RetryIn: retryIn})
			return nil
		}
		// Blank drafts and unknown users are logged by the feed and
		// otherwise ignored.
		_, err := c.thread.Send(ctx)
		return err

	case FrameRetry:
		if ok, retryIn := c.allowMessage(); !ok {
			c.notify(ServerFrame{Type: FrameRateLimited, RetryIn: retryIn})
			return nil
		}
		_, err := c.thread.Retry(ctx, frame.ClientRef)
		if errors.Is(err, feed.ErrUnknownMessage) {
			c.notify(ServerFrame{Type: FrameError, Error: err.Error()})
		}
		return err
	}
	return nil
}
