package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/wire"
)

// Source subscribes to a NATS subject while the local bus has viewers and
// publishes each received message to it. It is the relay counterpart of the
// camera lifecycle manager: no viewers, no subscription.
type Source struct {
	conn    Conn
	subject string
	format  wire.Format
	bus     *media.Bus
	poll    time.Duration

	subscribed atomic.Bool
	received   atomic.Uint64
}

func NewSource(conn Conn, subject string, format wire.Format, bus *media.Bus, poll time.Duration) *Source {
	if subject == "" {
		subject = DefaultSubject
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &Source{
		conn:    conn,
		subject: subject,
		format:  format,
		bus:     bus,
		poll:    poll,
	}
}

// Subscribed reports whether the source currently holds a subscription.
func (s *Source) Subscribed() bool {
	return s.subscribed.Load()
}

// Received returns the number of messages relayed so far.
func (s *Source) Received() uint64 {
	return s.received.Load()
}

// Run follows demand until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var unsubscribe func() error
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
			s.subscribed.Store(false)
		}
	}()

	for {
		active := s.bus.Demand().Active()
		switch {
		case active && unsubscribe == nil:
			var err error
			unsubscribe, err = s.conn.Subscribe(s.subject, s.handle)
			if err != nil {
				log.Warn("subscribe %s: %v", s.subject, err)
				unsubscribe = nil
				break
			}
			s.subscribed.Store(true)
			log.Info("subscribed to %s", s.subject)

		case !active && unsubscribe != nil:
			if err := unsubscribe(); err != nil {
				log.Warn("unsubscribe %s: %v", s.subject, err)
			}
			unsubscribe = nil
			s.subscribed.Store(false)
			log.Info("unsubscribed from %s", s.subject)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Source) handle(msg *nats.Msg) {
	s.received.Add(1)
	s.bus.Publish(&media.Message{
		Payload: msg.Data,
		Binary:  s.format != wire.JSON,
	})
}
