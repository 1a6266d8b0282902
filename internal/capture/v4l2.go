package capture

import (
	"time"

	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/v4l2"
)

// V4L2Config selects and configures a V4L2 capture device.
type V4L2Config struct {
	Path      string
	Format    v4l2.FourCC
	Width     int
	Height    int
	FrameRate int

	// Longest wait for one frame before the session is considered failed.
	ReadTimeout time.Duration
}

type v4l2Camera struct {
	dev     *v4l2.Device
	dec     *decoder
	timeout time.Duration
}

// OpenV4L2 returns an OpenFunc for the configured device. Frames are scaled
// to Width x Height if the driver picks a different size.
func OpenV4L2(cfg V4L2Config) OpenFunc {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	return func() (Camera, error) {
		dev, err := v4l2.Open(cfg.Path, v4l2.Config{
			Format:    cfg.Format,
			Width:     cfg.Width,
			Height:    cfg.Height,
			FrameRate: cfg.FrameRate,
		})
		if err != nil {
			return nil, err
		}

		if err := dev.Start(); err != nil {
			dev.Close()
			return nil, err
		}

		w, h, format := dev.Format()
		log.Info("%s: capturing %dx%d %s", cfg.Path, w, h, format)
		return &v4l2Camera{
			dev:     dev,
			dec:     newDecoder(format, w, h, cfg.Width, cfg.Height),
			timeout: cfg.ReadTimeout,
		}, nil
	}
}

func (c *v4l2Camera) ReadFrame() (*media.RawFrame, error) {
	buf, err := c.dev.ReadFrame(c.timeout)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	f, err := c.dec.decode(buf)
	if err != nil {
		return nil, err
	}
	f.CapturedAt = now
	return f, nil
}

func (c *v4l2Camera) Close() error {
	return c.dev.Close()
}
