//go:build !linux
// +build !linux

package v4l2

import (
	"time"
)

// Device is unavailable outside Linux; every operation fails.
type Device struct{}

func OpenDevice(path string) (*Device, error) {
	return nil, ErrUnsupported
}

func Open(path string, cfg Config) (*Device, error) {
	return nil, ErrUnsupported
}

func (dev *Device) Path() string                                    { return "" }
func (dev *Device) Format() (int, int, FourCC)                      { return 0, 0, 0 }
func (dev *Device) Close() error                                    { return nil }
func (dev *Device) Start() error                                    { return ErrUnsupported }
func (dev *Device) Stop() error                                     { return nil }
func (dev *Device) ReadFrame(timeout time.Duration) ([]byte, error) { return nil, ErrUnsupported }

func ListDevices() ([]Info, error) {
	return nil, ErrUnsupported
}
