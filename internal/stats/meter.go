// Package stats measures event rates in fixed windows.
package stats

import (
	"sync"
	"time"
)

// Meter counts events in consecutive fixed-length windows and reports the
// count of the most recent complete window. Windows roll over lazily, on the
// next Tick or Rate call.
type Meter struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	start time.Time
	count int
	last  int
	total uint64

	// Called with each completed window's count, outside the lock.
	OnWindow func(n int)
}

// NewMeter returns a meter with the given window length (1s if zero).
func NewMeter(window time.Duration) *Meter {
	if window <= 0 {
		window = time.Second
	}
	return &Meter{
		window: window,
		now:    time.Now,
	}
}

// Tick records one event.
func (m *Meter) Tick() {
	m.mu.Lock()
	done, n := m.roll(m.now())
	m.count++
	m.total++
	m.mu.Unlock()

	if done && m.OnWindow != nil {
		m.OnWindow(n)
	}
}

// Rate returns the number of events in the last complete window. It drops to
// zero once a full window passes with no events.
func (m *Meter) Rate() int {
	m.mu.Lock()
	done, n := m.roll(m.now())
	last := m.last
	m.mu.Unlock()

	if done && m.OnWindow != nil {
		m.OnWindow(n)
	}
	return last
}

// Total returns the number of events since the meter was created.
func (m *Meter) Total() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// roll closes the current window if it has ended. Reports whether a window
// with events was completed, and its count.
func (m *Meter) roll(now time.Time) (bool, int) {
	if m.start.IsZero() {
		m.start = now
		return false, 0
	}

	elapsed := now.Sub(m.start)
	if elapsed < m.window {
		return false, 0
	}

	n := m.count
	if elapsed < 2*m.window {
		m.last = n
	} else {
		m.last = 0
	}
	m.start = m.start.Add(elapsed / m.window * m.window)
	m.count = 0
	return n > 0, n
}
