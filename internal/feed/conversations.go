package feed

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/model"
)

// Searcher narrows a profile list down to the profiles matching a query.
type Searcher interface {
	Replace(profiles []model.UserProfile) error
	Search(ctx context.Context, query string) ([]uuid.UUID, error)
}

type ConversationEntry struct {
	Profile    model.UserProfile `json:"profile"`
	ThreadPath string            `json:"thread_path"`
	IsSelf     bool              `json:"is_self"`
}

type ConversationListView struct {
	Query   string              `json:"query,omitempty"`
	Entries []ConversationEntry `json:"entries"`
}

// ConversationListFeed lists every known profile. Selecting an entry opens
// the thread at its ThreadPath.
type ConversationListFeed struct {
	log      *slog.Logger
	backend  ProfileBackend
	self     uuid.UUID
	searcher Searcher

	mu          sync.Mutex
	profiles    []model.UserProfile
	query       string
	view        ConversationListView
	updates     chan ConversationListView
	synced      chan struct{}
	unsubscribe Unsubscribe
	started     bool
	loaded      bool
	closed      bool
}

// NewConversationListFeed returns a feed for the conversation list. The
// searcher is optional; without it Search falls back to prefix matching.
func NewConversationListFeed(log *slog.Logger, backend ProfileBackend, self uuid.UUID, searcher Searcher) *ConversationListFeed {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationListFeed{
		log:      log.With("self", self),
		backend:  backend,
		self:     self,
		searcher: searcher,
		view:     ConversationListView{Entries: []ConversationEntry{}},
		updates:  make(chan ConversationListView, 1),
		synced:   make(chan struct{}),
	}
}

func (f *ConversationListFeed) Start(ctx context.Context) error {
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
	f.mu.Unlock()

	unsub, err := f.backend.SubscribeProfiles(ctx, f.onSnapshot, f.onError)
	if err != nil {
		f.log.ErrorContext(ctx, "failed to subscribe to profiles", "error", err)
		f.mu.Lock()
		f.started = false
		f.mu.Unlock()
		return fmt.Errorf("subscribe to profiles: %w", err)
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

func (f *ConversationListFeed) Close() {
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

func (f *ConversationListFeed) Updates() <-chan ConversationListView {
	return f.updates
}

// Synced is closed once the first snapshot has been rendered.
func (f *ConversationListFeed) Synced() <-chan struct{} {
	return f.synced
}

func (f *ConversationListFeed) View() ConversationListView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Search re-renders the last snapshot narrowed to query. An empty query
// shows every profile again. Before the first snapshot the query is only
// remembered and applied to it.
func (f *ConversationListFeed) Search(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = strings.TrimSpace(query)
	if f.loaded {
		f.publishLocked()
	}
}

func (f *ConversationListFeed) onSnapshot(records []model.UserProfile) {
	profiles := SortProfiles(records)
	if f.searcher != nil {
		if err := f.searcher.Replace(profiles); err != nil {
			f.log.Warn("failed to index profiles", "error", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.profiles = profiles
	f.loaded = true
	f.publishLocked()
	markSynced(f.synced)
}

func (f *ConversationListFeed) onError(err error) {
	f.log.Error("profile subscription error", "error", err)
}

func (f *ConversationListFeed) publishLocked() {
	visible := f.profiles
	if f.query != "" {
		visible = f.matchLocked(f.query)
	}

	f.view = ConversationListView{
		Query: f.query,
		Entries: lo.Map(visible, func(p model.UserProfile, _ int) ConversationEntry {
			return ConversationEntry{
				Profile:    p,
				ThreadPath: ThreadPath(p.ID),
				IsSelf:     p.ID == f.self,
			}
		}),
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

func (f *ConversationListFeed) matchLocked(query string) []model.UserProfile {
	if f.searcher == nil {
		return lo.Filter(f.profiles, func(p model.UserProfile, _ int) bool {
			return matchesPrefix(p, query)
		})
	}

	ids, err := f.searcher.Search(context.Background(), query)
	if err != nil {
		f.log.Warn("profile search failed", "query", query, "error", err)
		return f.profiles
	}
	found := lo.Keyify(ids)
	return lo.Filter(f.profiles, func(p model.UserProfile, _ int) bool {
		_, ok := found[p.ID]
		return ok
	})
}

func matchesPrefix(p model.UserProfile, query string) bool {
	fields := append(strings.Fields(strings.ToLower(p.Username)),
		strings.Fields(strings.ToLower(p.DisplayName))...)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !lo.ContainsBy(fields, func(f string) bool { return strings.HasPrefix(f, term) }) {
			return false
		}
	}
	return true
}

// ThreadPath is where a conversation list entry navigates to.
func ThreadPath(counterpart uuid.UUID) string {
	return "/threads/" + counterpart.String()
}

// SortProfiles orders profiles by username, display name and ID. It returns
// a new slice, so identical snapshots always render identically.
func SortProfiles(profiles []model.UserProfile) []model.UserProfile {
	out := slices.Clone(profiles)
	if out == nil {
		out = []model.UserProfile{}
	}
	slices.SortStableFunc(out, func(a, b model.UserProfile) int {
		if c := strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username)); c != 0 {
			return c
		}
		if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}
