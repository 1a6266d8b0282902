package codec

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacam/internal/media"
)

// Config selects and configures an encoding strategy.
type Config struct {
	Mode        media.Encoding
	JPEGQuality int
	AV1         Params

	// Backend names a registered incremental backend. Empty picks the only
	// one registered.
	Backend string
}

// Factory returns a constructor for fresh encoders of the configured mode.
// The backend lookup happens once, so a missing backend is reported here
// rather than on every restart.
func (c Config) Factory() (func() (Encoder, error), error) {
	switch c.Mode {
	case media.MJPEG:
		if _, err := NewMJPEG(c.JPEGQuality); err != nil {
			return nil, err
		}
		return func() (Encoder, error) {
			return NewMJPEG(c.JPEGQuality)
		}, nil

	case media.AV1:
		if err := c.AV1.Validate(); err != nil {
			return nil, errors.Errorf("codec: av1: %w", err)
		}
		newBackend, err := LookupBackend(c.Backend)
		if err != nil {
			return nil, err
		}
		return func() (Encoder, error) {
			return NewIncremental(c.AV1, newBackend)
		}, nil
	}
	return nil, errors.Errorf("codec: unknown encoding %v", c.Mode)
}
