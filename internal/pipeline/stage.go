package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacam/internal/codec"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/stats"
	"github.com/lanikai/alohacam/internal/wire"
)

// DefaultRestartDelay is how long the stage waits before rebuilding an
// encoder that failed to initialize.
const DefaultRestartDelay = time.Second

// Stage is the encoding loop. It owns the encoder exclusively: frames are
// received, filtered, encoded, framed and published from one goroutine.
//
// The encoder is built on the first admitted frame. A fault discards it;
// frames that were waiting at that moment are dropped, and the next admitted
// frame builds a fresh one.
type Stage struct {
	frames     <-chan *media.RawFrame
	filter     *Filter
	newEncoder func() (codec.Encoder, error)
	framer     wire.Framer
	bus        *media.Bus
	meter      *stats.Meter

	// RestartDelay throttles rebuilding after a failed construction.
	RestartDelay time.Duration

	enc     codec.Encoder
	retryAt time.Time

	encoded   atomic.Uint64
	needMore  atomic.Uint64
	queueFull atomic.Uint64
	faults    atomic.Uint64
	skipped   atomic.Uint64
}

// NewStage wires a stage. meter may be nil.
func NewStage(
	frames <-chan *media.RawFrame,
	filter *Filter,
	newEncoder func() (codec.Encoder, error),
	framer wire.Framer,
	bus *media.Bus,
	meter *stats.Meter,
) *Stage {
	return &Stage{
		frames:       frames,
		filter:       filter,
		newEncoder:   newEncoder,
		framer:       framer,
		bus:          bus,
		meter:        meter,
		RestartDelay: DefaultRestartDelay,
	}
}

// Run processes frames until ctx is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	defer s.closeEncoder()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.bus.Joins():
			if s.enc != nil {
				log.Debug("viewer joined, requesting key frame")
				s.enc.RequestKeyFrame()
			}

		case f := <-s.frames:
			s.process(f)
		}
	}
}

func (s *Stage) process(f *media.RawFrame) {
	if !s.filter.Admit(f) {
		return
	}

	enc := s.encoder()
	if enc == nil {
		s.skipped.Add(1)
		return
	}

	res, err := enc.Encode(f)
	if err != nil {
		s.fault(err)
		return
	}

	switch res.Status {
	case codec.Encoded:
		s.encoded.Add(1)
		s.publish(res.Packet)
	case codec.NeedMoreData:
		s.needMore.Add(1)
	case codec.QueueFull:
		s.queueFull.Add(1)
	}
}

// encoder returns the current encoder, building one if needed. Returns nil
// while a failed construction is being throttled.
func (s *Stage) encoder() codec.Encoder {
	if s.enc != nil {
		return s.enc
	}
	if time.Now().Before(s.retryAt) {
		return nil
	}

	enc, err := s.newEncoder()
	if err != nil {
		log.Error("cannot create encoder, retrying in %v: %v", s.RestartDelay, err)
		s.faults.Add(1)
		s.retryAt = time.Now().Add(s.RestartDelay)
		return nil
	}
	log.Info("%v encoder ready", enc.Encoding())
	s.enc = enc
	return enc
}

func (s *Stage) fault(err error) {
	log.Error("encoder fault, rebuilding: %v", err)
	s.closeEncoder()

	// Drop whatever queued up behind the failed frame.
	for drained := false; !drained; {
		select {
		case <-s.frames:
			s.skipped.Add(1)
		default:
			drained = true
		}
	}
	s.faults.Add(1)
}

func (s *Stage) closeEncoder() {
	if s.enc == nil {
		return
	}
	if err := s.enc.Close(); err != nil {
		log.Warn("encoder close: %v", err)
	}
	s.enc = nil
}

func (s *Stage) publish(p *media.Packet) {
	m, err := s.framer.Frame(p)
	if err != nil {
		log.Error("cannot frame packet: %v", err)
		return
	}
	n := s.bus.Publish(m)
	log.Trace(2, "published %d byte %v packet to %d viewers", len(p.Data), p.Kind, n)

	if s.meter != nil {
		s.meter.Tick()
	}
}

// StageStats is a snapshot of the stage's counters.
type StageStats struct {
	Admitted     uint64 `json:"admitted"`
	Stale        uint64 `json:"stale"`
	Encoded      uint64 `json:"encoded"`
	NeedMoreData uint64 `json:"needMoreData"`
	QueueFull    uint64 `json:"queueFull"`
	Faults       uint64 `json:"faults"`
	Skipped      uint64 `json:"skipped"`
}

func (s *Stage) Stats() StageStats {
	return StageStats{
		Admitted:     s.filter.Admitted(),
		Stale:        s.filter.Dropped(),
		Encoded:      s.encoded.Load(),
		NeedMoreData: s.needMore.Load(),
		QueueFull:    s.queueFull.Load(),
		Faults:       s.faults.Load(),
		Skipped:      s.skipped.Load(),
	}
}
