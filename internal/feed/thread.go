package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/model"
)

type ThreadOptions struct {
	// SendTimeout bounds a single append. Zero means no timeout.
	SendTimeout time.Duration
}

type ThreadEntry struct {
	Message model.Message `json:"message"`
	Status  SendStatus    `json:"status"`
	Mine    bool          `json:"mine"`
	Error   string        `json:"error,omitempty"`
}

// ThreadView is one render of a thread: stored messages in time order
// followed by the messages this client is still sending or failed to send.
type ThreadView struct {
	Counterpart    uuid.UUID     `json:"counterpart_id"`
	Entries        []ThreadEntry `json:"entries"`
	ScrollToNewest bool          `json:"scroll_to_newest"`
}

// ThreadFeed is the live two-party conversation between the current user and
// one counterpart.
type ThreadFeed struct {
	log         *slog.Logger
	backend     MessageBackend
	self        uuid.UUID
	counterpart uuid.UUID
	opts        ThreadOptions

	mu          sync.Mutex
	confirmed   []model.Message
	outgoing    []*Outgoing
	draft       string
	view        ThreadView
	updates     chan ThreadView
	synced      chan struct{}
	unsubscribe Unsubscribe
	started     bool
	closed      bool

	inflight sync.WaitGroup
}

// NewThreadFeed returns a feed for the conversation between self and
// counterpart. uuid.Nil stands for an unknown user.
func NewThreadFeed(log *slog.Logger, backend MessageBackend, self, counterpart uuid.UUID, opts ThreadOptions) *ThreadFeed {
	if log == nil {
		log = slog.Default()
	}
	return &ThreadFeed{
		log:         log.With("self", self, "counterpart", counterpart),
		backend:     backend,
		self:        self,
		counterpart: counterpart,
		opts:        opts,
		view:        ThreadView{Counterpart: counterpart, Entries: []ThreadEntry{}},
		updates:     make(chan ThreadView, 1),
		synced:      make(chan struct{}),
	}
}

// Start subscribes to the conversation. The first view is published right
// away, before the first snapshot arrives.
func (f *ThreadFeed) Start(ctx context.Context) error {
	if err := f.checkIdentity(); err != nil {
		f.log.ErrorContext(ctx, "cannot open thread", "error", err)
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.publishLocked()
	f.mu.Unlock()

	q := MessageQuery{Pair: model.NewPair(f.self, f.counterpart)}
	unsub, err := f.backend.SubscribeMessages(ctx, q, f.onSnapshot, f.onError)
	if err != nil {
		f.log.ErrorContext(ctx, "failed to subscribe to thread", "error", err)
		f.mu.Lock()
		f.started = false
		f.mu.Unlock()
		return fmt.Errorf("subscribe to thread: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		unsub()
		return ErrClosed
	}
	f.unsubscribe = unsub
	return nil
}

// Close tears the subscription down and closes Updates. Appends already in
// flight are left to finish.
func (f *ThreadFeed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	unsub := f.unsubscribe
	close(f.updates)
	f.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Updates delivers views as they change. Only the latest view is kept if
// the reader falls behind.
func (f *ThreadFeed) Updates() <-chan ThreadView {
	return f.updates
}

// Synced is closed once the first snapshot has been rendered.
func (f *ThreadFeed) Synced() <-chan struct{} {
	return f.synced
}

func (f *ThreadFeed) View() ThreadView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *ThreadFeed) SetDraft(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = text
}

func (f *ThreadFeed) Draft() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Send appends the trimmed draft as a new message. The draft is cleared
// before the backend answers; the returned Outgoing reports whether the
// message was actually stored. Nothing is sent, and the draft is kept, when
// the sender or counterpart is unknown or the draft is blank.
func (f *ThreadFeed) Send(ctx context.Context) (*Outgoing, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}

	text := strings.TrimSpace(f.draft)
	err := f.checkIdentity()
	if err == nil && text == "" {
		err = ErrEmptyMessage
	}
	if err != nil {
		f.mu.Unlock()
		f.log.ErrorContext(ctx, "message not sent", "error", err)
		return nil, err
	}

	out := newOutgoing(text)
	f.outgoing = append(f.outgoing, out)
	f.draft = ""
	f.publishLocked()
	f.mu.Unlock()

	f.deliver(ctx, out)
	return out, nil
}

// Retry sends a failed message again under the same client ref.
func (f *ThreadFeed) Retry(ctx context.Context, clientRef uuid.UUID) (*Outgoing, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}

	out, ok := lo.Find(f.outgoing, func(o *Outgoing) bool { return o.ClientRef == clientRef })
	if !ok || !out.reopen() {
		f.mu.Unlock()
		return nil, ErrUnknownMessage
	}
	f.publishLocked()
	f.mu.Unlock()

	f.deliver(ctx, out)
	return out, nil
}

// WaitPending blocks until every append started by Send or Retry returned.
func (f *ThreadFeed) WaitPending() {
	f.inflight.Wait()
}

func (f *ThreadFeed) checkIdentity() error {
	switch {
	case f.self == uuid.Nil:
		return ErrNotAuthenticated
	case f.counterpart == uuid.Nil:
		return ErrNoCounterpart
	}
	return nil
}

func (f *ThreadFeed) deliver(ctx context.Context, out *Outgoing) {
	// The append outlives the request or screen that triggered it.
	ctx = context.WithoutCancel(ctx)
	msg := model.NewMessage{
		ClientRef:  out.ClientRef,
		Text:       out.Text,
		SenderID:   f.self,
		ReceiverID: f.counterpart,
	}

	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()

		appendCtx, cancel := ctx, context.CancelFunc(func() {})
		if f.opts.SendTimeout > 0 {
			appendCtx, cancel = context.WithTimeout(ctx, f.opts.SendTimeout)
		}
		stored, err := f.backend.AppendMessage(appendCtx, msg)
		cancel()
		if err != nil {
			f.log.ErrorContext(ctx, "failed to append message",
				"client_ref", out.ClientRef,
				"error", err)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		out.settle(stored, err)
		if err == nil && f.storedLocked(out.ClientRef) {
			f.dropOutgoingLocked(out.ClientRef)
		}
		f.publishLocked()
	}()
}

func (f *ThreadFeed) onSnapshot(records []model.Message) {
	messages := FilterConversation(records, f.self, f.counterpart)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.confirmed = messages
	f.outgoing = lo.Reject(f.outgoing, func(o *Outgoing, _ int) bool {
		return f.storedLocked(o.ClientRef)
	})
	f.publishLocked()
	markSynced(f.synced)
}

func (f *ThreadFeed) onError(err error) {
	f.log.Error("thread subscription error", "error", err)
}

func (f *ThreadFeed) storedLocked(clientRef uuid.UUID) bool {
	return lo.ContainsBy(f.confirmed, func(m model.Message) bool { return m.ClientRef == clientRef })
}

func (f *ThreadFeed) dropOutgoingLocked(clientRef uuid.UUID) {
	f.outgoing = lo.Reject(f.outgoing, func(o *Outgoing, _ int) bool { return o.ClientRef == clientRef })
}

func (f *ThreadFeed) publishLocked() {
	entries := make([]ThreadEntry, 0, len(f.confirmed)+len(f.outgoing))
	for _, m := range f.confirmed {
		entries = append(entries, ThreadEntry{
			Message: m,
			Status:  StatusConfirmed,
			Mine:    m.SenderID == f.self,
		})
	}
	for _, o := range f.outgoing {
		status, msg := o.snapshot()
		if status != StatusConfirmed {
			msg = model.Message{
				ClientRef:  o.ClientRef,
				Text:       o.Text,
				SenderID:   f.self,
				ReceiverID: f.counterpart,
			}
		}
		entry := ThreadEntry{Message: msg, Status: status, Mine: true}
		if err := o.Err(); err != nil {
			entry.Error = err.Error()
		}
		entries = append(entries, entry)
	}

	f.view = ThreadView{
		Counterpart:    f.counterpart,
		Entries:        entries,
		ScrollToNewest: true,
	}
	if f.closed {
		return
	}

	select {
	case <-f.updates:
	default:
	}
	f.updates <- f.view
}

// FilterConversation keeps the records exchanged between self and
// counterpart, in either direction, sorted by creation time ascending.
func FilterConversation(records []model.Message, self, counterpart uuid.UUID) []model.Message {
	pair := model.NewPair(self, counterpart)
	out := lo.Filter(records, func(m model.Message, _ int) bool {
		return pair.Between(m.SenderID, m.ReceiverID)
	})
	slices.SortStableFunc(out, func(a, b model.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}
