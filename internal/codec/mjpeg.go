package codec

import (
	"bytes"
	"image"
	"image/jpeg"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/alohacam/internal/color"
	"github.com/lanikai/alohacam/internal/media"
)

// DefaultJPEGQuality matches what browsers decode comfortably at 10 fps.
const DefaultJPEGQuality = 80

// MJPEG compresses every frame as a standalone JPEG image.
type MJPEG struct {
	quality int
	rgba    *image.RGBA
	buf     bytes.Buffer
}

func NewMJPEG(quality int) (*MJPEG, error) {
	if quality < 1 || quality > 100 {
		return nil, errors.Errorf("codec: jpeg quality %d out of range [1,100]", quality)
	}
	return &MJPEG{quality: quality}, nil
}

func (e *MJPEG) Encoding() media.Encoding {
	return media.MJPEG
}

func (e *MJPEG) Encode(f *media.RawFrame) (Result, error) {
	if e.rgba == nil || e.rgba.Rect.Dx() != f.Width || e.rgba.Rect.Dy() != f.Height {
		e.rgba = image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	}
	color.FrameToRGBA(e.rgba, f)

	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, e.rgba, &jpeg.Options{Quality: e.quality}); err != nil {
		return Result{}, errors.Errorf("codec: jpeg: %w", err)
	}

	return Result{
		Status: Encoded,
		Packet: &media.Packet{
			Data:       append([]byte(nil), e.buf.Bytes()...),
			Kind:       media.NoKind,
			Encoding:   media.MJPEG,
			CapturedAt: f.CapturedAt,
		},
	}, nil
}

func (e *MJPEG) RequestKeyFrame() {}

func (e *MJPEG) Close() error {
	e.rgba = nil
	return nil
}
