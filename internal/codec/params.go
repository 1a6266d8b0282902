package codec

import (
	"strings"

	errors "golang.org/x/xerrors"
)

// ChromaSampling selects the chroma plane resolution fed to the encoder.
type ChromaSampling int

const (
	Chroma444 ChromaSampling = iota
	Chroma420
)

func (c ChromaSampling) String() string {
	if c == Chroma420 {
		return "420"
	}
	return "444"
}

func (c ChromaSampling) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ChromaSampling) UnmarshalText(text []byte) error {
	switch strings.TrimPrefix(strings.ToLower(string(text)), "cs") {
	case "444":
		*c = Chroma444
	case "420":
		*c = Chroma420
	default:
		return errors.Errorf("unknown chroma sampling %q", text)
	}
	return nil
}

// Params configures an incremental encoder context. Quantizers use the
// 0..255 scale; backends with a coarser scale map them proportionally.
type Params struct {
	Width     int `yaml:"-"`
	Height    int `yaml:"-"`
	FrameRate int `yaml:"-"`

	BitDepth       int            `yaml:"bitDepth"`
	MinQuantizer   int            `yaml:"minQuantizer"`
	Quantizer      int            `yaml:"quantizer"`
	MinKeyInterval int            `yaml:"minKeyInterval"`
	MaxKeyInterval int            `yaml:"maxKeyInterval"`
	Tiles          int            `yaml:"tiles"`
	Chroma         ChromaSampling `yaml:"chroma"`
	LowLatency     bool           `yaml:"lowLatency"`
	ErrorResilient bool           `yaml:"errorResilient"`

	// 0 (slowest, best) to 10 (fastest).
	SpeedPreset int `yaml:"speedPreset"`

	// Target bitrate in kbit/s. 0 selects constant-quantizer mode.
	Bitrate int `yaml:"bitrate"`

	Threads int `yaml:"threads"`
}

// DefaultParams returns the low-latency settings used for live viewing.
func DefaultParams() Params {
	return Params{
		FrameRate:      10,
		BitDepth:       8,
		MinQuantizer:   50,
		Quantizer:      100,
		MinKeyInterval: 20,
		MaxKeyInterval: 50,
		Tiles:          4,
		Chroma:         Chroma444,
		LowLatency:     true,
		ErrorResilient: true,
		SpeedPreset:    10,
		Threads:        4,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return errors.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	case p.Chroma == Chroma420 && (p.Width%2 != 0 || p.Height%2 != 0):
		return errors.Errorf("4:2:0 needs even dimensions, got %dx%d", p.Width, p.Height)
	case p.BitDepth != 8:
		return errors.Errorf("unsupported bit depth %d", p.BitDepth)
	case p.MinQuantizer < 0 || p.Quantizer > 255 || p.MinQuantizer > p.Quantizer:
		return errors.Errorf("quantizer range [%d,%d] invalid", p.MinQuantizer, p.Quantizer)
	case p.MinKeyInterval < 1 || p.MinKeyInterval > p.MaxKeyInterval:
		return errors.Errorf("key interval [%d,%d] invalid", p.MinKeyInterval, p.MaxKeyInterval)
	case p.SpeedPreset < 0 || p.SpeedPreset > 10:
		return errors.Errorf("speed preset %d out of range [0,10]", p.SpeedPreset)
	case p.Tiles < 0 || p.Threads < 0 || p.Bitrate < 0:
		return errors.New("tiles, threads and bitrate must not be negative")
	}
	return nil
}
