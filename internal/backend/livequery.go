package backend

import (
	"context"
	"sync"

	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/feed"
)

// watch delivers fetch's result once, then again after every change event
// on subject. Events arriving while a fetch runs collapse into one refetch,
// and callbacks always run on the same goroutine in order.
func watch[T any](ctx context.Context, n Notifier, subject string,
	fetch func(context.Context) ([]T, error),
	onSnapshot func([]T), onError func(error)) (feed.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	dirty := make(chan struct{}, 1)
	mark := func(broker.ChangeEvent) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}

	// Watch before the first fetch so that no change slips in between.
	stop, err := n.Watch(ctx, subject, mark)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		refresh := func() {
			records, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				onError(err)
				return
			}
			onSnapshot(records)
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
				refresh()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			stop()
		})
	}, nil
}
