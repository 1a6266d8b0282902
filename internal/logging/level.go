package logging

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Logging level. Higher values indicate more verbosity.
type Level int

const (
	Error Level = iota - 2
	Warn
	Info
	Debug

	// Allow numeric logging levels up to 9.
	MaxLevel Level = 9
)

// Default level can be changed by environment variable or Configure().
var defaultLevel = Info

// ParseLevel accepts a level name ("warn"), its first letter ("w"), "trace",
// or a number between -2 and 9.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "E", "ERROR":
		return Error, nil
	case "W", "WARN", "WARNING":
		return Warn, nil
	case "I", "INFO":
		return Info, nil
	case "D", "DEBUG":
		return Debug, nil
	case "T", "TRACE":
		return MaxLevel, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Errorf("invalid logging level %q", s)
	}
	level := Level(n)
	if level < Error || level > MaxLevel {
		return 0, errors.Errorf("numeric level out of range: %d", n)
	}
	return level, nil
}

// UnmarshalText lets a Level be read straight from YAML or flag values.
func (l *Level) UnmarshalText(text []byte) error {
	level, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

func (l Level) String() string {
	switch l {
	case Error:
		return "Error"
	case Warn:
		return "Warn"
	case Info:
		return "Info"
	case Debug:
		return "Debug"
	default:
		return strconv.Itoa(int(l))
	}
}

func (l Level) letter() byte {
	if l <= Debug {
		return "EWID"[l-Error]
	}
	return byte('0' + l)
}
