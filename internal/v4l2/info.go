package v4l2

import (
	"strconv"
)

// Info describes a video device, as reported by ListDevices.
type Info struct {
	Path    string   `json:"path" yaml:"path"`
	Driver  string   `json:"driver" yaml:"driver"`
	Card    string   `json:"card" yaml:"card"`
	BusInfo string   `json:"bus" yaml:"bus"`
	Capture bool     `json:"capture" yaml:"capture"`
	Formats []Format `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// Format is one pixel format a device can deliver.
type Format struct {
	FourCC      FourCC `json:"fourcc" yaml:"fourcc"`
	Description string `json:"description" yaml:"description"`
	Compressed  bool   `json:"compressed" yaml:"compressed"`
}

// DevicePath returns the conventional node for a device index.
func DevicePath(index int) string {
	return "/dev/video" + strconv.Itoa(index)
}
