// Package media holds the types that flow through the live frame pipeline
// (raw frames, encoded packets, framed wire messages) and the lossy
// broadcast bus that fans packets out to viewers.
package media

import (
	"github.com/lanikai/alohacam/internal/logging"
)

var log = logging.DefaultLogger.WithTag("media")
