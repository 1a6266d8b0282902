package alohacam

import "errors"

var (
	errBadConfig = errors.New("invalid configuration")
)

// IsConfigError reports whether err came from Config.Validate.
func IsConfigError(err error) bool {
	return errors.Is(err, errBadConfig)
}
