package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/backend"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/model"
	"github.com/johndosdos/cove/internal/objectstore"
	ws "github.com/johndosdos/cove/internal/websocket"
)

const testSecret = "handlersecret"

// memBackend serves every subscription one snapshot of what it holds.
type memBackend struct {
	mu        sync.Mutex
	messages  []model.Message
	profiles  []model.UserProfile
	appendErr error
}

func (b *memBackend) SubscribeMessages(ctx context.Context, q feed.MessageQuery,
	onSnapshot func([]model.Message), onError func(error)) (feed.Unsubscribe, error) {
	b.mu.Lock()
	var records []model.Message
	for _, m := range b.messages {
		if m.Pair() == q.Pair {
			records = append(records, m)
		}
	}
	b.mu.Unlock()

	go onSnapshot(records)
	return func() {}, nil
}

func (b *memBackend) AppendMessage(ctx context.Context, msg model.NewMessage) (model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.appendErr != nil {
		return model.Message{}, b.appendErr
	}
	stored := model.Message{
		ID:         uuid.New(),
		ClientRef:  msg.ClientRef,
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		CreatedAt:  time.Now().UTC(),
	}
	b.messages = append(b.messages, stored)
	return stored, nil
}

func (b *memBackend) SubscribeProfiles(ctx context.Context,
	onSnapshot func([]model.UserProfile), onError func(error)) (feed.Unsubscribe, error) {
	b.mu.Lock()
	records := append([]model.UserProfile(nil), b.profiles...)
	b.mu.Unlock()

	go onSnapshot(records)
	return func() {}, nil
}

func (b *memBackend) GetProfile(ctx context.Context, id uuid.UUID) (model.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return model.UserProfile{}, backend.ErrProfileNotFound
}

func (b *memBackend) UpdateProfilePicture(ctx context.Context, id uuid.UUID, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.profiles {
		if p.ID == id {
			b.profiles[i].ProfilePicture = url
			return nil
		}
	}
	return backend.ErrProfileNotFound
}

func (b *memBackend) picture(id uuid.UUID) string {
	p, _ := b.GetProfile(context.Background(), id)
	return p.ProfilePicture
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter returns the full HTTP surface over mem and a badger object
// store.
func newTestRouter(t *testing.T, mem *memBackend) (http.Handler, *objectstore.BadgerStore) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	objects := objectstore.NewBadgerStore(db, "http://cove.test")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(discardLogger())
	go hub.Run(ctx)

	router := NewRouter(Deps{
		Log:         discardLogger(),
		Messages:    mem,
		Profiles:    mem,
		Pictures:    mem,
		Objects:     objects,
		Hub:         hub,
		TokenSecret: testSecret,
		Ws:          WsOpts{MessageLimit: 10, MessageWindow: time.Minute},
	})
	return router, objects
}

func authorize(t *testing.T, req *http.Request, userID uuid.UUID) {
	t.Helper()
	token, err := auth.MakeJWT(userID, testSecret, "cove", time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

var errStoreDown = errors.New("store down")
