package media

import (
	"image"
	"image/color"
	"time"
)

// RawFrame is a single captured image as interleaved 8-bit RGB
// (Width*Height*3 bytes, no row padding), stamped when it left the device.
//
// A RawFrame is owned by exactly one stage at a time: the frame source
// creates it, and hands it off by channel send. Receivers must not retain it
// after passing it on.
type RawFrame struct {
	Width  int
	Height int
	Pix    []byte

	// Capture time. Carries both the monotonic reading used for age checks
	// and the wall clock value sent to viewers.
	CapturedAt time.Time

	// Sequence number assigned by the frame source, starting at 1 for each
	// capture session.
	Seq uint64
}

// NewRawFrame allocates a black frame of the given size.
func NewRawFrame(width, height int) *RawFrame {
	return &RawFrame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, 3*width*height),
	}
}

// Age returns how long ago the frame was captured, relative to now.
func (f *RawFrame) Age(now time.Time) time.Duration {
	return now.Sub(f.CapturedAt)
}

// EpochMillis returns the capture time in milliseconds since the Unix epoch.
func (f *RawFrame) EpochMillis() int64 {
	return f.CapturedAt.UnixMilli()
}

// Stride is the number of bytes per row.
func (f *RawFrame) Stride() int {
	return 3 * f.Width
}

// RGB returns the color at (x, y).
func (f *RawFrame) RGB(x, y int) (r, g, b uint8) {
	i := y*f.Stride() + 3*x
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetRGB sets the color at (x, y).
func (f *RawFrame) SetRGB(x, y int, r, g, b uint8) {
	i := y*f.Stride() + 3*x
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// The image.Image methods below make a RawFrame usable with the image
// packages, at the cost of an interface call per pixel.

func (f *RawFrame) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *RawFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *RawFrame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}
	r, g, b := f.RGB(x, y)
	return color.RGBA{r, g, b, 0xff}
}
