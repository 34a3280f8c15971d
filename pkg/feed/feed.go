// Package feed implements the live-query subscription handle shared by every
// store backend: each delivery is the full current result set, and a slow
// consumer only ever sees the most recent snapshot.
package feed

import (
	"sync"
)

// Subscription delivers snapshots of a live query until Cancel is called.
type Subscription[T any] struct {
	ch     chan T
	done   chan struct{}
	mu     sync.Mutex
	once   sync.Once
	onStop func()
}

// New returns an open subscription. onStop, if non-nil, runs exactly once
// when the subscription is cancelled and must release the backend watch.
func New[T any](onStop func()) *Subscription[T] {
	return &Subscription[T]{
		ch:     make(chan T, 1),
		done:   make(chan struct{}),
		onStop: onStop,
	}
}

// C returns the snapshot channel. It is closed after Cancel.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Publish replaces any undelivered snapshot with v. It never blocks and is
// a no-op after Cancel.
func (s *Subscription[T]) Publish(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	return true
}

// Cancel stops the subscription. Safe to call more than once and from any goroutine.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		close(s.ch)
		s.mu.Unlock()

		if s.onStop != nil {
			s.onStop()
		}
	})
}

// Next waits for the next snapshot. ok is false once the subscription is cancelled.
func (s *Subscription[T]) Next() (v T, ok bool) {
	v, ok = <-s.ch
	return v, ok
}

// Map derives a subscription whose snapshots are fn applied to src's.
// Cancelling either side cancels both.
func Map[S, T any](src *Subscription[S], fn func(S) T) *Subscription[T] {
	dst := New[T](src.Cancel)
	go func() {
		for v := range src.C() {
			dst.Publish(fn(v))
		}
		dst.Cancel()
	}()
	return dst
}
