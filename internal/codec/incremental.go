package codec

import (
	"image"
	"sync/atomic"
	"time"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacam/internal/color"
	"github.com/lanikai/alohacam/internal/media"
)

// Incremental drives a stateful Backend. Each frame is converted to planar
// Y'CbCr, submitted, and at most one finished packet is collected.
//
// Key frames are forced on the first frame, whenever RequestKeyFrame was
// called, and whenever MaxKeyInterval frames have been submitted since the
// last key frame.
type Incremental struct {
	params  Params
	backend Backend
	pic     *image.YCbCr

	// Presentation timestamp of the next submitted frame.
	pts int64

	// Frames submitted since the last key frame was forced or observed.
	sinceKey int

	forceKey atomic.Bool

	// Capture times of frames still inside the backend, by pts.
	pending map[int64]time.Time
}

func NewIncremental(p Params, newBackend BackendFactory) (*Incremental, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Errorf("codec: %w", err)
	}

	b, err := newBackend(p)
	if err != nil {
		return nil, errors.Errorf("codec: create backend: %w", err)
	}

	ratio := image.YCbCrSubsampleRatio444
	if p.Chroma == Chroma420 {
		ratio = image.YCbCrSubsampleRatio420
	}

	e := &Incremental{
		params:  p,
		backend: b,
		pic:     image.NewYCbCr(image.Rect(0, 0, p.Width, p.Height), ratio),
		pending: make(map[int64]time.Time),
	}
	e.forceKey.Store(true)
	return e, nil
}

func (e *Incremental) Encoding() media.Encoding {
	return media.AV1
}

func (e *Incremental) RequestKeyFrame() {
	e.forceKey.Store(true)
}

func (e *Incremental) Encode(f *media.RawFrame) (Result, error) {
	if e.backend == nil {
		return Result{}, errClosed
	}
	if f.Width != e.params.Width || f.Height != e.params.Height {
		return Result{}, errors.Errorf("codec: frame is %dx%d, encoder configured for %dx%d",
			f.Width, f.Height, e.params.Width, e.params.Height)
	}

	color.FrameToYCbCr(e.pic, f)

	force := e.forceKey.Swap(false) || e.sinceKey >= e.params.MaxKeyInterval
	queueFull := false

	switch err := e.backend.SendFrame(e.pic, e.pts, force); {
	case err == nil:
		e.pending[e.pts] = f.CapturedAt
		e.pts++
		if force {
			e.sinceKey = 1
		} else {
			e.sinceKey++
		}

	case errors.Is(err, ErrQueueFull):
		// Frame dropped. Keep the key request for the next one.
		queueFull = true
		if force {
			e.forceKey.Store(true)
		}
		log.Debug("encoder queue full, dropped frame %d", f.Seq)

	default:
		return Result{}, errors.Errorf("codec: send frame: %w", err)
	}

	pkt, err := e.backend.ReceivePacket()
	switch {
	case err == nil:
	case errors.Is(err, ErrNeedMoreData):
		if queueFull {
			return Result{Status: QueueFull}, nil
		}
		log.Trace(1, "encoder needs more data")
		return Result{Status: NeedMoreData}, nil
	default:
		return Result{}, errors.Errorf("codec: receive packet: %w", err)
	}

	capturedAt, ok := e.pending[pkt.PTS]
	if !ok {
		capturedAt = f.CapturedAt
	}
	for pts := range e.pending {
		if pts <= pkt.PTS {
			delete(e.pending, pts)
		}
	}

	kind := media.Delta
	if pkt.Key {
		kind = media.Key
		if !force {
			e.sinceKey = int(e.pts - pkt.PTS)
		}
	}

	return Result{
		Status: Encoded,
		Packet: &media.Packet{
			Data:       pkt.Data,
			Kind:       kind,
			Encoding:   media.AV1,
			CapturedAt: capturedAt,
		},
	}, nil
}

func (e *Incremental) Close() error {
	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	e.pending = nil
	return err
}
