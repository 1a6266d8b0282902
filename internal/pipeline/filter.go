// Package pipeline connects the frame source to the broadcast bus: it
// discards stale frames, encodes the rest, and publishes framed packets.
package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
)

var log = logging.DefaultLogger.WithTag("pipeline")

// DefaultThreshold is the default maximum frame age.
const DefaultThreshold = 100 * time.Millisecond

// Filter admits frames no older than Threshold. Age is the difference of the
// current and capture times in whole epoch milliseconds; a frame exactly
// Threshold old is admitted.
type Filter struct {
	Threshold time.Duration

	// Clock, time.Now if nil.
	Now func() time.Time

	admitted atomic.Uint64
	dropped  atomic.Uint64
}

func NewFilter(threshold time.Duration) *Filter {
	return &Filter{Threshold: threshold}
}

// Admit reports whether f is fresh enough to encode.
func (flt *Filter) Admit(f *media.RawFrame) bool {
	now := time.Now
	if flt.Now != nil {
		now = flt.Now
	}

	age := now().UnixMilli() - f.EpochMillis()
	if age > flt.Threshold.Milliseconds() {
		flt.dropped.Add(1)
		log.Debug("dropping stale frame %d (%d ms old)", f.Seq, age)
		return false
	}
	flt.admitted.Add(1)
	return true
}

func (flt *Filter) Admitted() uint64 {
	return flt.admitted.Load()
}

func (flt *Filter) Dropped() uint64 {
	return flt.dropped.Load()
}
