// Package model defines data structure.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Message is a stored chat message between two users. The ID and CreatedAt
// are assigned by the backend.
type Message struct {
	ID         uuid.UUID `json:"id"`
	ClientRef  uuid.UUID `json:"client_ref"`
	Text       string    `json:"text"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pair returns the conversation the message belongs to.
func (m Message) Pair() Pair {
	return NewPair(m.SenderID, m.ReceiverID)
}

// NewMessage is what a client hands to the backend for appending.
type NewMessage struct {
	ClientRef  uuid.UUID
	Text       string
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
}
