// Package backend serves the feeds' live queries from PostgreSQL, using
// JetStream change events to know when to query again.
package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"

	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/database"
)

const (
	CollectionMessages = "messages"
	CollectionProfiles = "profiles"
)

var ErrProfileNotFound = errors.New("profile not found")

type MessageStore interface {
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	ListMessagesByPair(ctx context.Context, pairKey string) ([]database.Message, error)
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, arg database.CreateProfileParams) (database.Profile, error)
	GetProfile(ctx context.Context, userID pgtype.UUID) (database.Profile, error)
	ListProfiles(ctx context.Context) ([]database.Profile, error)
	UpdateProfilePicture(ctx context.Context, arg database.UpdateProfilePictureParams) (database.Profile, error)
}

// Notifier announces record changes and lets live queries watch for them.
type Notifier interface {
	Notify(ctx context.Context, subject string, evt broker.ChangeEvent) error
	Watch(ctx context.Context, subject string, fn func(broker.ChangeEvent)) (stop func(), err error)
}

type sanitizer interface {
	Sanitize(s string) string
}

// Backend implements feed.MessageBackend, feed.ProfileBackend and
// avatar.ProfileStore.
type Backend struct {
	log       *slog.Logger
	messages  MessageStore
	profiles  ProfileStore
	notifier  Notifier
	sanitizer sanitizer
}

func New(log *slog.Logger, messages MessageStore, profiles ProfileStore, notifier Notifier) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		log:       log,
		messages:  messages,
		profiles:  profiles,
		notifier:  notifier,
		sanitizer: bluemonday.StrictPolicy(),
	}
}
