package media

import (
	"sync/atomic"
)

// Demand counts registered viewers. It is the only signal the camera
// lifecycle manager uses to decide whether the capture device stays open.
// The zero value is ready to use.
type Demand struct {
	n atomic.Int64
}

// Acquire records one more viewer and returns the new count.
func (d *Demand) Acquire() int64 {
	return d.n.Add(1)
}

// Release records one fewer viewer and returns the new count. The counter
// never goes below zero; an unmatched Release returns ErrNegativeDemand and
// leaves it unchanged.
func (d *Demand) Release() (int64, error) {
	for {
		n := d.n.Load()
		if n <= 0 {
			return n, ErrNegativeDemand
		}
		if d.n.CompareAndSwap(n, n-1) {
			return n - 1, nil
		}
	}
}

// Count returns the current number of viewers.
func (d *Demand) Count() int64 {
	return d.n.Load()
}

// Active reports whether at least one viewer is registered.
func (d *Demand) Active() bool {
	return d.Count() > 0
}
