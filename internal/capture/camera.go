// Package capture owns the capture device: it opens the camera when viewers
// appear, pulls and timestamps frames while any remain, and closes it when
// the last one leaves.
package capture

import (
	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
)

var log = logging.DefaultLogger.WithTag("capture")

// Camera is an open capture device delivering decoded RGB frames.
type Camera interface {
	// ReadFrame blocks until the next frame is available. The returned frame
	// belongs to the caller. Any error ends the capture session.
	ReadFrame() (*media.RawFrame, error)

	Close() error
}

// OpenFunc opens the configured camera. It is called once per capture
// session, each time demand rises above zero.
type OpenFunc func() (Camera, error)

// State is the camera lifecycle state.
type State int32

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open":
		*s = Open
	case "closed":
		*s = Closed
	default:
		return errors.Errorf("unknown camera state %q", text)
	}
	return nil
}
