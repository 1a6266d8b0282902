package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacam/internal/media"
)

// DefaultPollInterval is how often a closed camera checks for viewers.
const DefaultPollInterval = 200 * time.Millisecond

// Manager opens and closes a camera according to viewer demand and forwards
// captured frames on a channel.
//
// While closed, demand is polled every PollInterval. While open, demand is
// checked before each read; when it reaches zero the camera is closed. Open
// and read failures are logged and retried on the next poll.
type Manager struct {
	open   OpenFunc
	demand *media.Demand
	poll   time.Duration
	now    func() time.Time

	frames chan *media.RawFrame

	state atomic.Int32

	opens    atomic.Uint64
	closes   atomic.Uint64
	captured atomic.Uint64
	dropped  atomic.Uint64

	mu      sync.Mutex
	lastErr error
}

// Option configures a Manager.
type Option func(*Manager)

// WithPollInterval sets the demand poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithClock replaces time.Now for frame timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithBuffer sets how many frames may wait for the consumer. When the buffer
// is full the oldest waiting frame is dropped.
func WithBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.frames = make(chan *media.RawFrame, n)
		}
	}
}

func NewManager(open OpenFunc, demand *media.Demand, opts ...Option) *Manager {
	m := &Manager{
		open:   open,
		demand: demand,
		poll:   DefaultPollInterval,
		now:    time.Now,
		frames: make(chan *media.RawFrame, 2),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Frames returns the channel captured frames are delivered on. It has a
// single producer (the manager) and is never closed.
func (m *Manager) Frames() <-chan *media.RawFrame {
	return m.frames
}

// State reports whether the camera is currently open.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Run drives the camera lifecycle until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		if m.demand.Active() {
			m.session(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// session runs one open-capture-close cycle.
func (m *Manager) session(ctx context.Context) {
	cam, err := m.open()
	if err != nil {
		log.Warn("cannot open camera, retrying in %v: %v", m.poll, err)
		m.setErr(err)
		return
	}

	m.opens.Add(1)
	m.state.Store(int32(Open))
	log.Info("camera opened (demand %d)", m.demand.Count())

	defer func() {
		if err := cam.Close(); err != nil {
			log.Warn("camera close: %v", err)
		}
		m.state.Store(int32(Closed))
		m.closes.Add(1)
		log.Info("camera closed")
	}()

	var seq uint64
	for ctx.Err() == nil && m.demand.Active() {
		f, err := cam.ReadFrame()
		if err != nil {
			log.Error("camera read failed: %v", err)
			m.setErr(err)
			return
		}

		seq++
		f.Seq = seq
		if f.CapturedAt.IsZero() {
			f.CapturedAt = m.now()
		}
		m.captured.Add(1)
		m.send(f)
	}
}

// send hands f downstream without blocking, evicting the oldest waiting
// frame if the buffer is full.
func (m *Manager) send(f *media.RawFrame) {
	for {
		select {
		case m.frames <- f:
			return
		default:
		}

		select {
		case <-m.frames:
			m.dropped.Add(1)
			log.Trace(1, "frame buffer full, dropped oldest")
		default:
		}
	}
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// Stats is a snapshot of the manager's counters.
type Stats struct {
	State     State  `json:"state"`
	Opens     uint64 `json:"opens"`
	Closes    uint64 `json:"closes"`
	Captured  uint64 `json:"captured"`
	Dropped   uint64 `json:"dropped"`
	LastError string `json:"lastError,omitempty"`
}

func (m *Manager) Stats() Stats {
	s := Stats{
		State:    m.State(),
		Opens:    m.opens.Load(),
		Closes:   m.closes.Load(),
		Captured: m.captured.Load(),
		Dropped:  m.dropped.Load(),
	}
	m.mu.Lock()
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()
	return s
}
