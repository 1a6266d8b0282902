package v4l2

import (
	"errors"
)

var (
	ErrUnsupported = errors.New("v4l2: not supported on this platform")
	ErrTimeout     = errors.New("v4l2: timed out waiting for frame")
	ErrNotStarted  = errors.New("v4l2: capture not started")
)
