package memory

import (
	"context"
	"sync"

	"camrelay/pkg/feed"
)

// watch registers a live query on topic. The query runs once immediately and
// again after every notification; the subscription is released on Cancel or
// when ctx is done.
func watch[T any](ctx context.Context, s *Store, topic string, query func() T) *feed.Subscription[T] {
	var (
		mu    sync.Mutex
		unsub func()
	)
	sub := feed.New[T](func() {
		mu.Lock()
		defer mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})

	emit := func() {
		mu.Lock()
		defer mu.Unlock()
		sub.Publish(query())
	}

	mu.Lock()
	unsub = s.hub.subscribe(topic, emit)
	mu.Unlock()
	emit()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()

	return sub
}
