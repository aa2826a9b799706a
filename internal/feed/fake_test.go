package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/model"
)

type fakeMessageBackend struct {
	mu           sync.Mutex
	query        MessageQuery
	onSnapshot   func([]model.Message)
	onError      func(error)
	unsubscribed bool
	appended     []model.NewMessage
	appendFn     func(ctx context.Context, msg model.NewMessage) (model.Message, error)
	subscribeErr error
	subscribes   int
}

func (b *fakeMessageBackend) SubscribeMessages(ctx context.Context, q MessageQuery,
	onSnapshot func([]model.Message), onError func(error)) (Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribes++
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.query = q
	b.onSnapshot = onSnapshot
	b.onError = onError
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.unsubscribed = true
	}, nil
}

func (b *fakeMessageBackend) AppendMessage(ctx context.Context, msg model.NewMessage) (model.Message, error) {
	b.mu.Lock()
	b.appended = append(b.appended, msg)
	fn := b.appendFn
	b.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return stored(msg, time.Now().UTC()), nil
}

func (b *fakeMessageBackend) push(records []model.Message) {
	b.mu.Lock()
	fn := b.onSnapshot
	b.mu.Unlock()
	fn(records)
}

func (b *fakeMessageBackend) fail(err error) {
	b.mu.Lock()
	fn := b.onError
	b.mu.Unlock()
	fn(err)
}

func (b *fakeMessageBackend) appendedMessages() []model.NewMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.NewMessage(nil), b.appended...)
}

func stored(msg model.NewMessage, at time.Time) model.Message {
	return model.Message{
		ID:         uuid.New(),
		ClientRef:  msg.ClientRef,
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		CreatedAt:  at,
	}
}

type fakeProfileBackend struct {
	mu           sync.Mutex
	onSnapshot   func([]model.UserProfile)
	onError      func(error)
	unsubscribed bool
	subscribeErr error
	subscribes   int
}

func (b *fakeProfileBackend) SubscribeProfiles(ctx context.Context,
	onSnapshot func([]model.UserProfile), onError func(error)) (Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribes++
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.onSnapshot = onSnapshot
	b.onError = onError
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.unsubscribed = true
	}, nil
}

func (b *fakeProfileBackend) push(records []model.UserProfile) {
	b.mu.Lock()
	fn := b.onSnapshot
	b.mu.Unlock()
	fn(records)
}

func (b *fakeProfileBackend) fail(err error) {
	b.mu.Lock()
	fn := b.onError
	b.mu.Unlock()
	fn(err)
}
