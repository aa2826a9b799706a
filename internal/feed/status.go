package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/model"
)

type SendStatus int

const (
	StatusPending SendStatus = iota
	StatusConfirmed
	StatusFailed
)

func (s SendStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s SendStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outgoing tracks one message from the moment it leaves the input buffer
// until the backend acknowledges or rejects it.
type Outgoing struct {
	ClientRef uuid.UUID
	Text      string

	mu      sync.Mutex
	status  SendStatus
	message model.Message
	err     error
	done    chan struct{}
}

func newOutgoing(text string) *Outgoing {
	return &Outgoing{
		ClientRef: uuid.New(),
		Text:      text,
		status:    StatusPending,
		done:      make(chan struct{}),
	}
}

func (o *Outgoing) Status() SendStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Err is the last append error of a failed message.
func (o *Outgoing) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Wait blocks until the send settles or ctx is done, and returns the stored
// message on success.
func (o *Outgoing) Wait(ctx context.Context) (model.Message, error) {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message, o.err
}

func (o *Outgoing) settle(msg model.Message, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.status = StatusFailed
		o.err = err
	} else {
		o.status = StatusConfirmed
		o.message = msg
		o.err = nil
	}
	close(o.done)
}

// reopen puts a failed message back to pending for a retry.
func (o *Outgoing) reopen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusFailed {
		return false
	}
	o.status = StatusPending
	o.err = nil
	o.done = make(chan struct{})
	return true
}

func (o *Outgoing) snapshot() (SendStatus, model.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status, o.message
}
