package v4l2

import (
	"strings"

	"github.com/pkg/errors"
)

// FourCC is a V4L2 pixel format code.
type FourCC uint32

const (
	PixelFormatMJPEG FourCC = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	PixelFormatYUYV  FourCC = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
)

func (f FourCC) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	return strings.TrimRight(string(b), " \x00")
}

// ParseFourCC accepts a four character code such as "MJPG", or the aliases
// "mjpeg" and "yuyv".
func ParseFourCC(s string) (FourCC, error) {
	switch strings.ToLower(s) {
	case "mjpeg", "mjpg":
		return PixelFormatMJPEG, nil
	case "yuyv", "yuy2":
		return PixelFormatYUYV, nil
	}
	if len(s) != 4 {
		return 0, errors.Errorf("invalid pixel format %q", s)
	}
	return FourCC(s[0]) | FourCC(s[1])<<8 | FourCC(s[2])<<16 | FourCC(s[3])<<24, nil
}

func (f FourCC) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FourCC) UnmarshalText(text []byte) error {
	v, err := ParseFourCC(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
