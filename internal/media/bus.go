package media

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueCapacity is the per-viewer backlog used when none is given.
const DefaultQueueCapacity = 10

// Bus fans messages out to any number of subscribers, each with its own
// bounded queue. Publish never waits for a subscriber: a full queue drops its
// oldest message to make room for the newest.
//
// Subscribing acquires one unit of demand and closing the subscription
// releases it, so the demand counter always equals the number of live
// subscriptions.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*Subscription]struct{}
	closed   bool
	capacity int

	demand *Demand

	// Signalled (coalesced) whenever a subscriber joins.
	joins chan struct{}

	published atomic.Uint64
}

// NewBus creates a bus whose subscribers buffer up to capacity messages and
// whose registrations are counted in demand.
func NewBus(demand *Demand, capacity int) *Bus {
	if capacity < 1 {
		panic(errBadCapacity)
	}
	if demand == nil {
		demand = new(Demand)
	}
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
		demand:   demand,
		joins:    make(chan struct{}, 1),
	}
}

// Demand returns the counter that tracks this bus's subscribers.
func (b *Bus) Demand() *Demand {
	return b.demand
}

// Joins is signalled after one or more subscribers register. Several joins
// between reads collapse into one signal.
func (b *Bus) Joins() <-chan struct{} {
	return b.joins
}

// Subscribe registers a new subscriber with an empty queue. The caller must
// Close the subscription when done.
func (b *Bus) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	s := &Subscription{
		ID:  uuid.New(),
		bus: b,
		q:   newQueue(b.capacity),
	}
	b.subs[s] = struct{}{}
	n := b.demand.Acquire()
	log.Debug("subscriber %s registered, demand %d", s.ID, n)

	select {
	case b.joins <- struct{}{}:
	default:
	}
	return s, nil
}

// Publish appends m to every subscriber's queue and returns the number of
// subscribers it was delivered to.
func (b *Bus) Publish(m *Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	b.published.Add(1)

	for s := range b.subs {
		if s.q.push(m) {
			log.Trace(5, "subscriber %s backlogged, evicted oldest message", s.ID)
		}
	}
	return len(b.subs)
}

// Published returns the number of Publish calls since creation.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns a snapshot of per-subscriber counters.
func (b *Bus) Stats() []SubscriberStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make([]SubscriberStats, 0, len(b.subs))
	for s := range b.subs {
		stats = append(stats, s.Stats())
	}
	return stats
}

// Close deregisters every subscriber and wakes their readers with ErrClosed.
// Later publishes are dropped and later subscribes fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		b.removeLocked(s)
	}
	return nil
}

// remove deregisters s if it is still registered. Demand is released at most
// once per subscription no matter how many times this is called.
func (b *Bus) remove(s *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(s)
}

func (b *Bus) removeLocked(s *Subscription) bool {
	if _, ok := b.subs[s]; !ok {
		return false
	}
	delete(b.subs, s)
	s.q.close()
	n, err := b.demand.Release()
	if err != nil {
		log.Error("subscriber %s: %v", s.ID, err)
	} else {
		log.Debug("subscriber %s deregistered, demand %d", s.ID, n)
	}
	return true
}

// Subscription is one subscriber's handle on the bus.
type Subscription struct {
	ID uuid.UUID

	bus *Bus
	q   *queue
}

// Recv blocks until a message is available and returns it. It returns
// ErrClosed once the subscription or bus is closed, or ctx.Err() if ctx is
// done first.
func (s *Subscription) Recv(ctx context.Context) (*Message, error) {
	return s.q.pop(ctx)
}

// TryRecv returns the oldest queued message without blocking.
func (s *Subscription) TryRecv() (*Message, bool) {
	return s.q.tryPop()
}

// Len returns the number of queued messages.
func (s *Subscription) Len() int {
	return s.q.len()
}

// Close deregisters the subscription and releases its demand. Safe to call
// more than once and from any goroutine; only the first call has an effect.
func (s *Subscription) Close() error {
	s.bus.remove(s)
	return nil
}

// SubscriberStats reports delivery counters for one subscriber.
type SubscriberStats struct {
	ID        uuid.UUID `json:"id"`
	Queued    int       `json:"queued"`
	Delivered uint64    `json:"delivered"`
	Evicted   uint64    `json:"evicted"`
}

func (s *Subscription) Stats() SubscriberStats {
	delivered, evicted := s.q.counters()
	return SubscriberStats{
		ID:        s.ID,
		Queued:    s.q.len(),
		Delivered: delivered,
		Evicted:   evicted,
	}
}
