// Package session forwards one viewer's packets from its bus subscription to
// its transport sink.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
)

var log = logging.DefaultLogger.WithTag("session")

// Sink is the write side of a viewer connection.
type Sink interface {
	Send(m *media.Message) error
	Close() error
}

// State is a viewer's lifecycle state. The only transitions are
// Registered → Streaming → Deregistered and Registered → Deregistered.
type State int32

const (
	Registered State = iota
	Streaming
	Deregistered
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Streaming:
		return "streaming"
	default:
		return "deregistered"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "registered":
		*s = Registered
	case "streaming":
		*s = Streaming
	case "deregistered":
		*s = Deregistered
	default:
		return errors.Errorf("unknown viewer state %q", text)
	}
	return nil
}

// Session is one viewer. Create it with Start, then call Run.
type Session struct {
	ID     uuid.UUID
	Remote string

	sub     *media.Subscription
	sink    Sink
	started time.Time

	state atomic.Int32
	sent  atomic.Uint64

	closeOnce sync.Once
}

// Start registers a viewer on bus. The session must be Run (or Closed) to
// release the registration.
func Start(bus *media.Bus, sink Sink, remote string) (*Session, error) {
	sub, err := bus.Subscribe()
	if err != nil {
		return nil, errors.Wrap(err, "register viewer")
	}
	s := &Session{
		ID:      sub.ID,
		Remote:  remote,
		sub:     sub,
		sink:    sink,
		started: time.Now(),
	}
	log.Info("viewer %s registered from %s", s.ID, remote)
	return s, nil
}

// Run forwards packets until ctx is cancelled, the sink fails, or the bus
// closes. It always deregisters the viewer before returning.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		m, err := s.sub.Recv(ctx)
		if err != nil {
			if err == media.ErrClosed || ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.state.CompareAndSwap(int32(Registered), int32(Streaming))

		if err := s.sink.Send(m); err != nil {
			log.Info("viewer %s: send failed: %v", s.ID, err)
			return errors.Wrap(err, "send")
		}
		s.sent.Add(1)
	}
}

// Close deregisters the viewer and closes its sink. Safe to call more than
// once and concurrently with Run.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(Deregistered))
		s.sub.Close()
		err = s.sink.Close()
		st := s.sub.Stats()
		log.Info("viewer %s deregistered after %v: sent %d, evicted %d",
			s.ID, time.Since(s.started).Round(time.Millisecond), s.sent.Load(), st.Evicted)
	})
	return err
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Info is a snapshot of a session for status reporting.
type Info struct {
	ID      uuid.UUID `json:"id"`
	Remote  string    `json:"remote"`
	State   State     `json:"state"`
	Since   time.Time `json:"since"`
	Sent    uint64    `json:"sent"`
	Queued  int       `json:"queued"`
	Evicted uint64    `json:"evicted"`
}

func (s *Session) Info() Info {
	st := s.sub.Stats()
	return Info{
		ID:      s.ID,
		Remote:  s.Remote,
		State:   s.State(),
		Since:   s.started,
		Sent:    s.sent.Load(),
		Queued:  st.Queued,
		Evicted: st.Evicted,
	}
}
