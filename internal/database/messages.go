package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createMessage = `-- name: CreateMessage :one
INSERT INTO messages (client_ref, pair_key, sender_id, receiver_id, body)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (client_ref) DO UPDATE SET client_ref = EXCLUDED.client_ref
RETURNING id, client_ref, pair_key, sender_id, receiver_id, body, created_at
`

type CreateMessageParams struct {
	ClientRef  pgtype.UUID
	PairKey    string
	SenderID   pgtype.UUID
	ReceiverID pgtype.UUID
	Body       string
}

// CreateMessage inserts a message and lets the database assign the ID and
// timestamp. Re-sending the same client_ref returns the stored row instead
// of inserting a duplicate.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage,
		arg.ClientRef,
		arg.PairKey,
		arg.SenderID,
		arg.ReceiverID,
		arg.Body,
	)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.ClientRef,
		&i.PairKey,
		&i.SenderID,
		&i.ReceiverID,
		&i.Body,
		&i.CreatedAt,
	)
	return i, err
}

const listMessagesByPair = `-- name: ListMessagesByPair :many
SELECT id, client_ref, pair_key, sender_id, receiver_id, body, created_at
FROM messages
WHERE pair_key = $1
ORDER BY created_at ASC, id ASC
`

func (q *Queries) ListMessagesByPair(ctx context.Context, pairKey string) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesByPair, pairKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var i Message
		if err := rows.Scan(
			&i.ID,
			&i.ClientRef,
			&i.PairKey,
			&i.SenderID,
			&i.ReceiverID,
			&i.Body,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
