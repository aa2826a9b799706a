package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Message struct {
	ID         pgtype.UUID
	ClientRef  pgtype.UUID
	PairKey    string
	SenderID   pgtype.UUID
	ReceiverID pgtype.UUID
	Body       string
	CreatedAt  pgtype.Timestamptz
}

type Profile struct {
	UserID         pgtype.UUID
	Username       string
	DisplayName    string
	ProfilePicture string
	CreatedAt      pgtype.Timestamptz
}
