// Package codec turns raw frames into encoded packets. Two strategies share
// the Encoder contract: MJPEG compresses each frame independently, and
// Incremental drives a stateful video encoder backend.
package codec

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
)

var log = logging.DefaultLogger.WithTag("codec")

var (
	// ErrNeedMoreData is returned by Backend.ReceivePacket when no packet is
	// ready yet.
	ErrNeedMoreData = errors.New("codec: need more data")

	// ErrQueueFull is returned by Backend.SendFrame when the backend will not
	// accept input until packets are drained.
	ErrQueueFull = errors.New("codec: encoder queue full")

	errClosed = errors.New("codec: encoder closed")
)

// Status classifies a successful Encode call.
type Status int

const (
	// A packet was produced.
	Encoded Status = iota

	// The encoder accepted the frame but has nothing to emit yet.
	NeedMoreData

	// The encoder is backed up and dropped the frame. Try again with the
	// next one.
	QueueFull
)

func (s Status) String() string {
	switch s {
	case Encoded:
		return "encoded"
	case NeedMoreData:
		return "need more data"
	case QueueFull:
		return "queue full"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Encode call. Packet is non-nil only when
// Status is Encoded.
type Result struct {
	Status Status
	Packet *media.Packet
}

// Encoder converts frames to packets, one frame at a time. Implementations
// are not safe for concurrent Encode calls; RequestKeyFrame may be called
// from any goroutine.
//
// A non-nil error from Encode means the encoder is broken: the caller must
// Close it and build a new one.
type Encoder interface {
	Encoding() media.Encoding
	Encode(f *media.RawFrame) (Result, error)

	// RequestKeyFrame asks for the next packet to be independently
	// decodable. A no-op for encoders whose packets always are.
	RequestKeyFrame()

	Close() error
}
