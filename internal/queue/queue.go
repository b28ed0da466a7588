// Package queue implements the bounded, blocking queues the frame bus
// (C9) uses for its inbound and per-channel outbound paths.
package queue

import "context"

// Queue is a bounded FIFO channel wrapper. A full queue blocks Push
// until space frees up or ctx is cancelled — this is the mechanism
// spec.md §4.9/§5 calls "backpressure": a full inbound queue suspends
// the socket reader, which throttles the peer via TCP.
type Queue[T any] struct {
	ch chan T
}

// New creates a queue with the given bound. spec.md §4.9 recommends
// 1024 slots; callers size it per deployment.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push enqueues v, blocking while the queue is full. Returns
// ctx.Err() if ctx is cancelled first.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues v without blocking, reporting false if the queue is
// full.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Pop dequeues the next value, blocking until one is available, the
// queue is closed, or ctx is cancelled.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-q.ch:
		return v, ok
	case <-ctx.Done():
		return zero, false
	}
}

// Close closes the underlying channel; further Pushes panic, matching
// the standard library's own channel-send-after-close semantics, which
// callers of a queue already need to respect.
func (q *Queue[T]) Close() { close(q.ch) }

// Len reports the number of currently buffered items, used by
// FrameBus.QueueDepths to report frame-bus queue depth.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap reports the queue's bound.
func (q *Queue[T]) Cap() int { return cap(q.ch) }
