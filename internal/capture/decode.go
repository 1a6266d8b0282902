package capture

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/lanikai/alohacam/internal/color"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/v4l2"
)

// decoder turns raw device buffers into RGB frames of a fixed output size.
type decoder struct {
	format v4l2.FourCC

	// Size delivered by the device.
	srcW, srcH int

	// Size handed downstream.
	dstW, dstH int

	// Scratch frame at device size, reused when scaling.
	scratch *media.RawFrame
}

func newDecoder(format v4l2.FourCC, srcW, srcH, dstW, dstH int) *decoder {
	d := &decoder{
		format: format,
		srcW:   srcW,
		srcH:   srcH,
		dstW:   dstW,
		dstH:   dstH,
	}
	if d.scaling() && format == v4l2.PixelFormatYUYV {
		d.scratch = media.NewRawFrame(srcW, srcH)
	}
	return d
}

func (d *decoder) scaling() bool {
	return d.srcW != d.dstW || d.srcH != d.dstH
}

func (d *decoder) decode(buf []byte) (*media.RawFrame, error) {
	var img image.Image

	switch d.format {
	case v4l2.PixelFormatMJPEG:
		var err error
		img, err = jpeg.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, errors.Wrap(err, "decode mjpeg")
		}

	case v4l2.PixelFormatYUYV:
		if len(buf) < 2*d.srcW*d.srcH {
			return nil, errors.Errorf("short yuyv frame: %d bytes for %dx%d", len(buf), d.srcW, d.srcH)
		}
		if !d.scaling() {
			f := media.NewRawFrame(d.dstW, d.dstH)
			color.YUYVToFrame(f, buf)
			return f, nil
		}
		color.YUYVToFrame(d.scratch, buf)
		img = d.scratch

	default:
		return nil, errors.Errorf("unsupported pixel format %s", d.format)
	}

	f := media.NewRawFrame(d.dstW, d.dstH)
	b := img.Bounds()
	if b.Dx() == d.dstW && b.Dy() == d.dstH {
		color.ImageToFrame(f, img)
		return f, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, d.dstW, d.dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	color.ImageToFrame(f, dst)
	return f, nil
}
