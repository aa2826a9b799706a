package backend

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/database"
	"github.com/johndosdos/cove/internal/feed"
	"github.com/johndosdos/cove/internal/model"
)

func (b *Backend) SubscribeMessages(ctx context.Context, q feed.MessageQuery,
	onSnapshot func([]model.Message), onError func(error)) (feed.Unsubscribe, error) {
	pairKey := q.Pair.Key()
	fetch := func(ctx context.Context) ([]model.Message, error) {
		rows, err := b.messages.ListMessagesByPair(ctx, pairKey)
		if err != nil {
			return nil, fmt.Errorf("internal/backend: failed to list messages: %w", err)
		}
		return lo.Map(rows, toMessage), nil
	}
	return watch(ctx, b.notifier, broker.MessageSubject(pairKey), fetch, onSnapshot, onError)
}

// AppendMessage stores the message text as sent, then tells the
// conversation's subscribers to refresh. A body with nothing visible outside
// its markup is rejected with feed.ErrEmptyMessage.
func (b *Backend) AppendMessage(ctx context.Context, msg model.NewMessage) (model.Message, error) {
	if b.markupOnly(msg.Text) {
		return model.Message{}, fmt.Errorf("internal/backend: %w", feed.ErrEmptyMessage)
	}
	pairKey := model.NewPair(msg.SenderID, msg.ReceiverID).Key()

	row, err := b.messages.CreateMessage(ctx, database.CreateMessageParams{
		ClientRef:  pgtype.UUID{Bytes: msg.ClientRef, Valid: true},
		PairKey:    pairKey,
		SenderID:   pgtype.UUID{Bytes: msg.SenderID, Valid: true},
		ReceiverID: pgtype.UUID{Bytes: msg.ReceiverID, Valid: true},
		Body:       msg.Text,
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("internal/backend: failed to store message: %w", err)
	}
	stored := toMessage(row, 0)

	evt := broker.ChangeEvent{
		Collection: CollectionMessages,
		RecordID:   stored.ID,
		At:         stored.CreatedAt,
	}
	if err := b.notifier.Notify(ctx, broker.MessageSubject(pairKey), evt); err != nil {
		// Stored anyway; subscribers see it with the next change.
		b.log.WarnContext(ctx, "failed to publish message change",
			"message_id", stored.ID,
			"error", err)
	}

	return stored, nil
}

// markupOnly reports whether text is blank once its tags are stripped.
// Readers render the stored text themselves, so the stripped copy is only
// inspected, never stored.
func (b *Backend) markupOnly(text string) bool {
	return strings.TrimSpace(html.UnescapeString(b.sanitizer.Sanitize(text))) == ""
}

func toMessage(row database.Message, _ int) model.Message {
	return model.Message{
		ID:         row.ID.Bytes,
		ClientRef:  row.ClientRef.Bytes,
		Text:       row.Body,
		SenderID:   row.SenderID.Bytes,
		ReceiverID: row.ReceiverID.Bytes,
		CreatedAt:  row.CreatedAt.Time.UTC(),
	}
}
