package redis

import (
	"context"
	"fmt"
	"time"

	"camrelay/pkg/batch"
	"camrelay/pkg/feed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// maxTxRetries bounds optimistic WATCH/MULTI retries on a contended key.
const maxTxRetries = 5

// Store bundles what every Redis repository needs.
type Store struct {
	client       *redis.Client
	keys         keyspace
	maxBatchSize int
	logger       *zap.SugaredLogger
}

func NewStore(client *redis.Client, prefix string, maxBatchSize int, logger *zap.SugaredLogger) *Store {
	if maxBatchSize <= 0 {
		maxBatchSize = batch.DefaultMaxSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		client:       client,
		keys:         newKeyspace(prefix),
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// now returns the Redis server clock so every writer stamps documents with
// the same time source.
func (s *Store) now(ctx context.Context) (time.Time, error) {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read server time: %w", err)
	}
	return t.UTC(), nil
}

// publish queues change notifications on a pipeline so they are emitted in
// the same EXEC as the write they describe.
func (s *Store) publish(ctx context.Context, pipe redis.Pipeliner, topics ...string) {
	seen := make(map[string]bool, len(topics))
	for _, topic := range topics {
		if seen[topic] {
			continue
		}
		seen[topic] = true
		pipe.Publish(ctx, s.keys.changes(topic), "1")
	}
}

// watchKeys runs fn inside an optimistic transaction on keys, retrying when
// a concurrent writer touches them first.
func (s *Store) watchKeys(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return err
}

// watch opens a live query: it subscribes to the topic's change channel,
// emits an initial snapshot, then re-runs query after every notification.
func watch[T any](ctx context.Context, s *Store, topic string, query func(ctx context.Context) (T, error)) (*feed.Subscription[T], error) {
	watchCtx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(watchCtx, s.keys.changes(topic))

	// Wait for the subscription to be confirmed so no change committed after
	// the initial snapshot can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := feed.New[T](func() {
		cancel()
		pubsub.Close()
	})

	emit := func() {
		v, err := query(watchCtx)
		if err != nil {
			if watchCtx.Err() == nil {
				s.logger.Warnw("live query failed", "topic", topic, "error", err)
			}
			return
		}
		sub.Publish(v)
	}

	emit()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Cancel()
				return
			case <-sub.Done():
				return
			case _, ok := <-ch:
				if !ok {
					sub.Cancel()
					return
				}
				emit()
			}
		}
	}()

	return sub, nil
}
