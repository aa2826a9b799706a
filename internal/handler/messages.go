package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/model"
)

type sendMessageRequest struct {
	Content string `json:"content" validate:"max=4000"`
}

type sendMessageResponse struct {
	ClientRef string          `json:"client_ref"`
	Status    feed.SendStatus `json:"status"`
	Message   *model.Message  `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ServeThread answers the thread with the counterpart as of its first
// snapshot.
func ServeThread(log *slog.Logger, messages feed.MessageBackend, opts feed.ThreadOptions) http.HandlerFunc {
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

		f := feed.NewThreadFeed(log, messages, self, counterpart, opts)
		defer f.Close()
		if err := f.Start(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}

		if !waitSynced(ctx, f.Synced()) {
			writeErrorString(w, http.StatusGatewayTimeout, "thread not available")
			return
		}
		writeJSON(w, http.StatusOK, f.View())
	}
}

// SendMessage appends one message to the thread with the counterpart and
// answers once it was stored or failed. Blank messages and unknown users
// are ignored with 204.
func SendMessage(log *slog.Logger, messages feed.MessageBackend, opts feed.ThreadOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counterpart, err := counterpartParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		var req sendMessageRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		f := feed.NewThreadFeed(log, messages, auth.UserOrNil(ctx), counterpart, opts)
		defer f.Close()

		f.SetDraft(req.Content)
		out, err := f.Send(ctx)
		switch {
		case errors.Is(err, feed.ErrEmptyMessage),
			errors.Is(err, feed.ErrNotAuthenticated),
			errors.Is(err, feed.ErrNoCounterpart):
			w.WriteHeader(http.StatusNoContent)
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		stored, err := out.Wait(ctx)
		resp := sendMessageResponse{
			ClientRef: out.ClientRef.String(),
			Status:    out.Status(),
		}
		switch {
		case errors.Is(err, feed.ErrEmptyMessage):
			resp.Error = err.Error()
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		case err != nil:
			resp.Error = err.Error()
			writeJSON(w, http.StatusBadGateway, resp)
			return
		}
		resp.Message = &stored
		writeJSON(w, http.StatusCreated, resp)
	}
}
