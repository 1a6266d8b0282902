package media

import (
	"context"
	"sync"
)

// queue is a bounded FIFO of messages for a single viewer. When full, a push
// evicts the oldest unread message; push never blocks.
type queue struct {
	mu     sync.Mutex
	buf    []*Message
	head   int // index of oldest message
	size   int
	closed bool

	// Holds a token whenever the queue may be non-empty, so that a blocked
	// reader wakes up. Capacity 1; sends never block.
	ready chan struct{}

	// Closed on close(), to wake readers for good.
	done chan struct{}

	delivered uint64
	evicted   uint64
}

func newQueue(capacity int) *queue {
	return &queue{
		buf:   make([]*Message, capacity),
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends m, evicting the oldest message if the queue is at capacity.
// Reports whether an eviction happened. Pushing to a closed queue is a no-op.
func (q *queue) push(m *Message) (evicted bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.size == len(q.buf) {
		q.buf[q.head] = nil
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.evicted++
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = m
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted
}

// tryPop removes and returns the oldest message, if any.
func (q *queue) tryPop() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil, false
	}
	m := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	q.delivered++
	if q.size > 0 {
		// Leave a token behind for the next read.
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return m, true
}

// pop blocks until a message is available, the queue is closed, or ctx is
// done.
func (q *queue) pop(ctx context.Context) (*Message, error) {
	for {
		if m, ok := q.tryPop(); ok {
			return m, nil
		}
		select {
		case <-q.ready:
		case <-q.done:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.size = 0
	close(q.done)
}

func (q *queue) counters() (delivered, evicted uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delivered, q.evicted
}
