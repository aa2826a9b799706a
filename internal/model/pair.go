package model

import (
	"strings"

	"github.com/google/uuid"
)

// Pair is the unordered pair of users taking part in a conversation.
// NewPair always stores the lower ID first, so Pair values compare equal
// regardless of argument order.
type Pair struct {
	Low  uuid.UUID
	High uuid.UUID
}

func NewPair(a, b uuid.UUID) Pair {
	if strings.Compare(a.String(), b.String()) > 0 {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Key is the canonical string form of the pair. It is safe to use as a
// NATS subject token and is stored as messages.pair_key.
func (p Pair) Key() string {
	return p.Low.String() + "_" + p.High.String()
}

// Contains reports whether id is one of the two participants.
func (p Pair) Contains(id uuid.UUID) bool {
	return id == p.Low || id == p.High
}

// Between reports whether a message from sender to receiver belongs to the pair.
func (p Pair) Between(sender, receiver uuid.UUID) bool {
	return (sender == p.Low && receiver == p.High) ||
		(sender == p.High && receiver == p.Low)
}
