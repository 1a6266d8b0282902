package v4l2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFourCC(t *testing.T) {
	assert.Equal(t, FourCC(0x47504a4d), PixelFormatMJPEG)
	assert.Equal(t, FourCC(0x56595559), PixelFormatYUYV)
	assert.Equal(t, "MJPG", PixelFormatMJPEG.String())
	assert.Equal(t, "YUYV", PixelFormatYUYV.String())
}

func TestParseFourCC(t *testing.T) {
	for s, want := range map[string]FourCC{
		"mjpeg": PixelFormatMJPEG,
		"MJPG":  PixelFormatMJPEG,
		"yuyv":  PixelFormatYUYV,
		"YUY2":  PixelFormatYUYV,
	} {
		got, err := ParseFourCC(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}

	rgb, err := ParseFourCC("RGB3")
	require.NoError(t, err)
	assert.Equal(t, "RGB3", rgb.String())

	_, err = ParseFourCC("h264x")
	assert.Error(t, err)
}

func TestFourCCText(t *testing.T) {
	var f FourCC
	require.NoError(t, f.UnmarshalText([]byte("yuyv")))
	assert.Equal(t, PixelFormatYUYV, f)

	b, err := f.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "YUYV", string(b))
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaults()
	assert.Equal(t, 1280, c.Width)
	assert.Equal(t, 720, c.Height)
	assert.Equal(t, PixelFormatMJPEG, c.Format)
	assert.Equal(t, 2, c.NumBuffers)
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/video0", DevicePath(0))
	assert.Equal(t, "/dev/video12", DevicePath(12))
}
