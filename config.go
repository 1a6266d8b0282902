//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for the camera pipeline
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohacam

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/lanikai/alohacam/internal/capture"
	"github.com/lanikai/alohacam/internal/codec"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/pipeline"
	"github.com/lanikai/alohacam/internal/relay"
	"github.com/lanikai/alohacam/internal/v4l2"
	"github.com/lanikai/alohacam/internal/wire"
)

// Config holds every pipeline setting. Values are layered: Defaults, then an
// optional YAML file, then environment variables, then command-line flags.
type Config struct {
	// Camera source type: "v4l2" or "testpattern".
	Source string `yaml:"source"`

	// Device path. When empty, DeviceIndex selects /dev/videoN.
	Device      string      `yaml:"device"`
	DeviceIndex int         `yaml:"deviceIndex"`
	PixelFormat v4l2.FourCC `yaml:"pixelFormat"`

	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frameRate"`

	// How often the camera manager checks viewer demand.
	PollInterval time.Duration `yaml:"pollInterval"`

	Encoding    media.Encoding `yaml:"encoding"`
	Freshness   time.Duration  `yaml:"freshness"`
	JPEGQuality int            `yaml:"jpegQuality"`
	AV1         codec.Params   `yaml:"av1"`

	// Per-viewer backlog; the oldest packet is evicted when it is full.
	QueueCapacity int         `yaml:"queueCapacity"`
	Wire          wire.Format `yaml:"wire"`

	Port           int           `yaml:"port"`
	MaxConnections int           `yaml:"maxConnections"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`

	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the optional NATS relay.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`

	// Publish every framed packet to Subject.
	Publish bool `yaml:"publish"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Source:        "v4l2",
		PixelFormat:   v4l2.PixelFormatMJPEG,
		Width:         640,
		Height:        480,
		FrameRate:     10,
		PollInterval:  capture.DefaultPollInterval,
		Encoding:      media.MJPEG,
		Freshness:     pipeline.DefaultThreshold,
		JPEGQuality:   codec.DefaultJPEGQuality,
		AV1:           codec.DefaultParams(),
		QueueCapacity: media.DefaultQueueCapacity,
		Wire:          wire.JSON,
		Port:          8080,
		WriteTimeout:  5 * time.Second,
		NATS: NATSConfig{
			URL:     relay.DefaultURL,
			Subject: relay.DefaultSubject,
		},
	}
}

// LoadConfig returns Defaults overlaid with the YAML file at path, if path is
// not empty.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// ApplyEnv overlays the environment variables the camera service has always
// honored. getenv is normally os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"VIDEO_WIDTH", &c.Width},
		{"VIDEO_HEIGHT", &c.Height},
		{"VIDEO_DEVICE_INDEX", &c.DeviceIndex},
		{"FRAMERATE", &c.FrameRate},
		{"PORT", &c.Port},
	}
	for _, v := range ints {
		s := getenv(v.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrapf(err, "%s", v.name)
		}
		*v.dst = n
	}

	if s := getenv("ENCODER"); s != "" {
		if err := c.Encoding.UnmarshalText([]byte(s)); err != nil {
			return errors.Wrap(err, "ENCODER")
		}
	}
	if s := getenv("FRESHNESS_MS"); s != "" {
		ms, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrap(err, "FRESHNESS_MS")
		}
		c.Freshness = time.Duration(ms) * time.Millisecond
	}
	if s := getenv("NATS_URL"); s != "" {
		c.NATS.URL = s
	}
	return nil
}

// BindFlags registers command-line overrides for c on fs. Flags left unset
// keep whatever the file and environment produced.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Source, "source", c.Source, "Camera source type (v4l2, testpattern)")
	fs.StringVarP(&c.Device, "input", "i", c.Device, "Video device path (default: /dev/video<index>)")
	fs.IntVar(&c.DeviceIndex, "device-index", c.DeviceIndex, "Video device index")
	fs.VarP(textFlag{&c.PixelFormat}, "pixel-format", "f", "Capture pixel format (mjpeg, yuyv)")
	fs.IntVarP(&c.Width, "width", "x", c.Width, "Video width")
	fs.IntVarP(&c.Height, "height", "y", c.Height, "Video height")
	fs.IntVarP(&c.FrameRate, "framerate", "r", c.FrameRate, "Capture frame rate")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Viewer demand poll interval")

	fs.VarP(textFlag{&c.Encoding}, "encoder", "e", "Encoding mode (MJPEG, AV1)")
	fs.DurationVar(&c.Freshness, "freshness", c.Freshness, "Drop frames older than this")
	fs.IntVar(&c.JPEGQuality, "jpeg-quality", c.JPEGQuality, "JPEG quality, 1-100")
	fs.IntVar(&c.AV1.Quantizer, "quantizer", c.AV1.Quantizer, "AV1 quantizer, 0-255")
	fs.IntVar(&c.AV1.MinQuantizer, "min-quantizer", c.AV1.MinQuantizer, "AV1 minimum quantizer, 0-255")
	fs.IntVar(&c.AV1.MinKeyInterval, "min-key-interval", c.AV1.MinKeyInterval, "AV1 minimum key frame interval")
	fs.IntVar(&c.AV1.MaxKeyInterval, "max-key-interval", c.AV1.MaxKeyInterval, "AV1 maximum key frame interval")
	fs.IntVarP(&c.AV1.Bitrate, "bitrate", "b", c.AV1.Bitrate, "AV1 target bitrate in kbit/s (0 for constant quantizer)")
	fs.IntVar(&c.AV1.SpeedPreset, "speed", c.AV1.SpeedPreset, "AV1 speed preset, 0-10")
	fs.Var(textFlag{&c.AV1.Chroma}, "chroma", "AV1 chroma sampling (444, 420)")

	fs.IntVar(&c.QueueCapacity, "queue", c.QueueCapacity, "Per-viewer packet backlog")
	fs.VarP(textFlag{&c.Wire}, "wire", "w", "Wire format (json, msgpack, binary)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "HTTP listen port")
	fs.IntVar(&c.MaxConnections, "max-connections", c.MaxConnections, "Maximum concurrent connections (0 for no limit)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "Viewer write deadline")

	fs.StringVar(&c.NATS.URL, "nats-url", c.NATS.URL, "NATS server URL")
	fs.StringVar(&c.NATS.Subject, "nats-subject", c.NATS.Subject, "NATS subject for framed packets")
	fs.BoolVar(&c.NATS.Publish, "nats-publish", c.NATS.Publish, "Publish framed packets to NATS")
}

// ApplyFlags copies the flags explicitly set on fs, which must have been
// populated by BindFlags, onto c. This lets flags be declared before the
// file and environment layers are known.
func (c *Config) ApplyFlags(fs *flag.FlagSet) error {
	own := flag.NewFlagSet("config", flag.ContinueOnError)
	c.BindFlags(own)

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || own.Lookup(f.Name) == nil {
			return
		}
		if e := own.Set(f.Name, f.Value.String()); e != nil {
			err = errors.Wrapf(e, "--%s", f.Name)
		}
	})
	return err
}

// Validate reports the first configuration fault. Nothing should be started
// with a config that fails validation.
func (c *Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 || c.Height%2 != 0:
		return errors.Wrapf(errBadConfig, "frame size %dx%d must be positive and even", c.Width, c.Height)
	case c.FrameRate <= 0:
		return errors.Wrapf(errBadConfig, "frame rate %d", c.FrameRate)
	case c.DeviceIndex < 0:
		return errors.Wrapf(errBadConfig, "device index %d", c.DeviceIndex)
	case c.PollInterval <= 0:
		return errors.Wrapf(errBadConfig, "poll interval %v", c.PollInterval)
	case c.Freshness < 0:
		return errors.Wrapf(errBadConfig, "freshness threshold %v", c.Freshness)
	case c.QueueCapacity < 1:
		return errors.Wrapf(errBadConfig, "queue capacity %d", c.QueueCapacity)
	case c.Port < 0 || c.Port > 65535:
		return errors.Wrapf(errBadConfig, "port %d", c.Port)
	case c.MaxConnections < 0:
		return errors.Wrapf(errBadConfig, "max connections %d", c.MaxConnections)
	}

	known := false
	for _, name := range capture.Sources() {
		known = known || name == c.Source
	}
	if !known {
		return errors.Wrapf(errBadConfig, "unknown source %q (have %v)", c.Source, capture.Sources())
	}

	if _, err := c.codecConfig().Factory(); err != nil {
		return errors.Wrapf(errBadConfig, "%v", err)
	}
	if c.NATS.Publish && c.NATS.Subject == "" {
		return errors.Wrap(errBadConfig, "nats publishing needs a subject")
	}
	return nil
}

// DevicePath resolves the capture device.
func (c *Config) DevicePath() string {
	if c.Device != "" {
		return c.Device
	}
	return v4l2.DevicePath(c.DeviceIndex)
}

func (c *Config) codecConfig() codec.Config {
	p := c.AV1
	p.Width = c.Width
	p.Height = c.Height
	p.FrameRate = c.FrameRate
	return codec.Config{
		Mode:        c.Encoding,
		JPEGQuality: c.JPEGQuality,
		AV1:         p,
	}
}

func (c *Config) captureSpec() capture.Spec {
	device := c.DevicePath()
	if c.Source != "v4l2" {
		device = c.Device
	}
	return capture.Spec{
		Device:    device,
		Format:    c.PixelFormat,
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: c.FrameRate,
	}
}

// textFlag adapts a text-marshalling value to pflag.Value.
type textFlag struct {
	v interface {
		MarshalText() ([]byte, error)
		UnmarshalText([]byte) error
	}
}

func (f textFlag) String() string {
	b, _ := f.v.MarshalText()
	return string(b)
}

func (f textFlag) Set(s string) error {
	return f.v.UnmarshalText([]byte(s))
}

func (f textFlag) Type() string {
	return "string"
}
