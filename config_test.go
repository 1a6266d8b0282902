package alohacam

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/codec"
	"github.com/lanikai/alohacam/internal/codec/av1"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/relay"
	"github.com/lanikai/alohacam/internal/v4l2"
	"github.com/lanikai/alohacam/internal/wire"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultsValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, media.MJPEG, cfg.Encoding)
	assert.Equal(t, 100*time.Millisecond, cfg.Freshness)
	assert.Equal(t, 10, cfg.QueueCapacity)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/dev/video0", cfg.DevicePath())
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(env(map[string]string{
		"VIDEO_WIDTH":        "320",
		"VIDEO_HEIGHT":       "240",
		"VIDEO_DEVICE_INDEX": "2",
		"FRAMERATE":          "30",
		"PORT":               "9000",
		"ENCODER":            "av1",
		"FRESHNESS_MS":       "1000",
		"NATS_URL":           "nats://nats:4222",
	}))
	require.NoError(t, err)

	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
	assert.Equal(t, "/dev/video2", cfg.DevicePath())
	assert.Equal(t, 30, cfg.FrameRate)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, media.AV1, cfg.Encoding)
	assert.Equal(t, time.Second, cfg.Freshness)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

func TestApplyEnvErrors(t *testing.T) {
	for _, vars := range []map[string]string{
		{"VIDEO_WIDTH": "wide"},
		{"ENCODER": "h264"},
		{"FRESHNESS_MS": "soon"},
	} {
		cfg := Defaults()
		assert.Error(t, cfg.ApplyEnv(env(vars)), "%v", vars)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alohacam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: testpattern
width: 320
height: 180
pixelFormat: yuyv
encoding: AV1
freshness: 250ms
wire: msgpack
av1:
  quantizer: 120
  chroma: "420"
nats:
  subject: video.2
  publish: true
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "testpattern", cfg.Source)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 180, cfg.Height)
	assert.Equal(t, v4l2.PixelFormatYUYV, cfg.PixelFormat)
	assert.Equal(t, media.AV1, cfg.Encoding)
	assert.Equal(t, 250*time.Millisecond, cfg.Freshness)
	assert.Equal(t, wire.MsgPack, cfg.Wire)
	assert.Equal(t, 120, cfg.AV1.Quantizer)
	assert.Equal(t, codec.Chroma420, cfg.AV1.Chroma)
	assert.Equal(t, "video.2", cfg.NATS.Subject)
	assert.True(t, cfg.NATS.Publish)

	// Unset keys keep their defaults.
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 50, cfg.AV1.MaxKeyInterval)
	assert.Equal(t, relay.DefaultURL, cfg.NATS.URL)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encoding: vp9\n"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	cfg := Defaults()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"-x", "800", "-y", "600",
		"--encoder", "AV1",
		"--wire", "binary",
		"--freshness", "1s",
		"--pixel-format", "yuyv",
		"--nats-publish",
	}))
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, media.AV1, cfg.Encoding)
	assert.Equal(t, wire.Binary, cfg.Wire)
	assert.Equal(t, time.Second, cfg.Freshness)
	assert.Equal(t, v4l2.PixelFormatYUYV, cfg.PixelFormat)
	assert.True(t, cfg.NATS.Publish)

	assert.Error(t, fs.Parse([]string{"--encoder", "h264"}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"odd width", func(c *Config) { c.Width = 641 }},
		{"zero height", func(c *Config) { c.Height = 0 }},
		{"zero frame rate", func(c *Config) { c.FrameRate = 0 }},
		{"unknown source", func(c *Config) { c.Source = "rtsp" }},
		{"empty queue", func(c *Config) { c.QueueCapacity = 0 }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
		{"jpeg quality", func(c *Config) { c.JPEGQuality = 0 }},
		{"key interval", func(c *Config) {
			c.Encoding = media.AV1
			c.AV1.MinKeyInterval = 60
		}},
		{"nats subject", func(c *Config) {
			c.NATS.Publish = true
			c.NATS.Subject = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestValidateAV1Backend(t *testing.T) {
	cfg := Defaults()
	cfg.Encoding = media.AV1
	err := cfg.Validate()
	if av1.Available() {
		assert.NoError(t, err)
	} else {
		assert.True(t, IsConfigError(err))
	}
}

func TestApplyFlagsOverridesLowerLayers(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	declared := Defaults()
	declared.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "9090", "--freshness", "250ms", "-e", "av1"}))

	cfg := Defaults()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{"PORT": "7000", "VIDEO_WIDTH": "320"})))
	require.NoError(t, cfg.ApplyFlags(fs))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Freshness)
	assert.Equal(t, media.AV1, cfg.Encoding)
	// Not given on the command line, so the environment wins.
	assert.Equal(t, 320, cfg.Width)
}
