// Package feed keeps the live, render-ready state of the conversation list
// and of a single two-party thread. Both feeds receive full snapshots from a
// live query and replace their local list on every snapshot.
package feed

import (
	"context"
	"errors"

	"github.com/johndosdos/cove/internal/model"
)

var (
	ErrNotAuthenticated = errors.New("current user is unknown")
	ErrNoCounterpart    = errors.New("counterpart is unknown")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrUnknownMessage   = errors.New("no failed message with that client ref")
	ErrClosed           = errors.New("feed is closed")
)

// Unsubscribe tears a live query down. It is safe to call more than once.
type Unsubscribe func()

// MessageQuery selects the messages of one conversation, ordered by creation
// time ascending.
type MessageQuery struct {
	Pair model.Pair
}

type MessageBackend interface {
	// SubscribeMessages delivers a full snapshot of the query result once
	// immediately and again after every change. Callbacks for one
	// subscription never run concurrently.
	SubscribeMessages(ctx context.Context, q MessageQuery,
		onSnapshot func([]model.Message), onError func(error)) (Unsubscribe, error)
	AppendMessage(ctx context.Context, msg model.NewMessage) (model.Message, error)
}

type ProfileBackend interface {
	SubscribeProfiles(ctx context.Context,
		onSnapshot func([]model.UserProfile), onError func(error)) (Unsubscribe, error)
}

// markSynced closes synced unless it already is. Callers hold the feed's
// lock.
func markSynced(synced chan struct{}) {
	select {
	case <-synced:
	default:
		close(synced)
	}
}
