// Package broker publishes and consumes record change events on NATS
// JetStream.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// ChangeEvent announces that a record of a collection was written.
type ChangeEvent struct {
	Collection string    `json:"collection"`
	RecordID   uuid.UUID `json:"record_id"`
	At         time.Time `json:"at"`
}

// EnsureStream creates or updates the stream holding every change subject.
func EnsureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Record change notifications",
		Subjects:    []string{SubjectAll},
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("internal/broker: failed to create/update stream [%s]: %w", StreamName, err)
	}
	return stream, nil
}

func Publisher(ctx context.Context, js jetstream.JetStream, subject string, evt ChangeEvent) (uint64, error) {
	if js == nil {
		return 0, fmt.Errorf("jetstream interface is nil")
	}
	if ctx == nil {
		return 0, fmt.Errorf("context is nil")
	}

	p, err := json.Marshal(evt)
	if err != nil {
		return 0, fmt.Errorf("could not encode payload to JSON: %w", err)
	}

	pubAck, err := js.Publish(ctx,
		subject,
		p,
		jetstream.WithMsgID(uuid.NewString()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to stream [%s]: %w", subject, err)
	}

	return pubAck.Sequence, nil
}

// Subscriber starts an ordered consumer that only sees events published from
// now on. The returned ConsumeContext must be stopped by the caller; it is
// also drained when ctx is done.
func Subscriber(ctx context.Context, js jetstream.JetStream, subject string, handler func(ChangeEvent)) (jetstream.ConsumeContext, error) {
	consumer, err := js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ordered consumer for [%s]: %w", subject, err)
	}

	consumeHandler := func(msg jetstream.Msg) {
		var evt ChangeEvent
		if err := json.Unmarshal(msg.Data(), &evt); err != nil {
			slog.Warn("could not decode change event",
				"subject", msg.Subject(),
				"error", err)
			return
		}
		handler(evt)
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
		slog.Warn("consumer error", "subject", subject, "error", err)
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming [%s]: %w", subject, err)
	}

	go func(ctx context.Context, consumeCtx jetstream.ConsumeContext) {
		select {
		case <-ctx.Done():
			consumeCtx.Drain()
		case <-consumeCtx.Closed():
		}
	}(ctx, consumeCtx)

	return consumeCtx, nil
}

// Broker adapts a JetStream handle to the notify/watch pair the backend needs.
type Broker struct {
	js jetstream.JetStream
}

func New(js jetstream.JetStream) *Broker {
	return &Broker{js: js}
}

func (b *Broker) Notify(ctx context.Context, subject string, evt ChangeEvent) error {
	_, err := Publisher(ctx, b.js, subject, evt)
	return err
}

func (b *Broker) Watch(ctx context.Context, subject string, fn func(ChangeEvent)) (func(), error) {
	cc, err := Subscriber(ctx, b.js, subject, fn)
	if err != nil {
		return nil, err
	}
	return cc.Stop, nil
}
