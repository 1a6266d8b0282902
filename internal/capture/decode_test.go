package capture

import (
	"bytes"
	"image"
	stdcolor "image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/v4l2"
)

func encodeJPEG(t *testing.T, w, h int, c stdcolor.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestDecodeMJPEG(t *testing.T) {
	buf := encodeJPEG(t, 16, 8, stdcolor.RGBA{200, 40, 40, 255})

	d := newDecoder(v4l2.PixelFormatMJPEG, 16, 8, 16, 8)
	f, err := d.decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Width)
	assert.Equal(t, 8, f.Height)

	r, g, b := f.RGB(8, 4)
	assert.InDelta(t, 200, int(r), 8)
	assert.InDelta(t, 40, int(g), 8)
	assert.InDelta(t, 40, int(b), 8)
}

func TestDecodeMJPEGScales(t *testing.T) {
	buf := encodeJPEG(t, 32, 16, stdcolor.RGBA{10, 220, 10, 255})

	d := newDecoder(v4l2.PixelFormatMJPEG, 32, 16, 8, 4)
	f, err := d.decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width)
	assert.Equal(t, 4, f.Height)
	assert.Len(t, f.Pix, 8*4*3)

	_, g, _ := f.RGB(4, 2)
	assert.InDelta(t, 220, int(g), 10)
}

func TestDecodeYUYV(t *testing.T) {
	// 4x2 frame of studio white.
	buf := bytes.Repeat([]byte{235, 128, 235, 128}, 4)

	d := newDecoder(v4l2.PixelFormatYUYV, 4, 2, 4, 2)
	f, err := d.decode(buf)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{255}, 4*2*3), f.Pix)

	d = newDecoder(v4l2.PixelFormatYUYV, 4, 2, 2, 1)
	f, err = d.decode(buf)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{255}, 2*1*3), f.Pix)
}

func TestDecodeErrors(t *testing.T) {
	d := newDecoder(v4l2.PixelFormatMJPEG, 4, 4, 4, 4)
	_, err := d.decode([]byte("not a jpeg"))
	assert.Error(t, err)

	d = newDecoder(v4l2.PixelFormatYUYV, 4, 4, 4, 4)
	_, err = d.decode(make([]byte, 10))
	assert.Error(t, err)

	d = newDecoder(v4l2.FourCC(0x34363248), 4, 4, 4, 4)
	_, err = d.decode(make([]byte, 64))
	assert.Error(t, err)
}

func TestTestPattern(t *testing.T) {
	open := OpenTestPattern(TestPatternConfig{Width: 64, Height: 48, FrameRate: 100, Label: "test"})
	cam, err := open()
	require.NoError(t, err)
	defer cam.Close()

	before := time.Now()
	f, err := cam.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 64, f.Width)
	assert.Equal(t, 48, f.Height)
	assert.False(t, f.CapturedAt.Before(before))

	// First bar is light gray.
	r, g, b := f.RGB(2, 2)
	assert.Equal(t, [3]uint8{192, 192, 192}, [3]uint8{r, g, b})

	_, err = cam.ReadFrame()
	assert.NoError(t, err)
}

func TestTestPatternInvalidSize(t *testing.T) {
	_, err := OpenTestPattern(TestPatternConfig{})()
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"testpattern", "v4l2"}, Sources())

	_, err := Lookup("rtsp", Spec{})
	assert.Error(t, err)

	open, err := Lookup("testpattern", Spec{Width: 32, Height: 16, FrameRate: 100, Device: "lab"})
	require.NoError(t, err)
	cam, err := open()
	require.NoError(t, err)
	defer cam.Close()

	f, err := cam.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, 32, f.Width)
	assert.Equal(t, 16, f.Height)
}
