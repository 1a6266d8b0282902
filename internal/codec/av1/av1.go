// Package av1 provides the AV1 encoder backend for incremental encoding.
//
// The libaom implementation is compiled only with cgo and the "aom" build
// tag (go build -tags aom); it needs the libaom development package, found
// through pkg-config. Importing this package registers the backend under
// the name "libaom".
package av1

import (
	"github.com/lanikai/alohacam/internal/logging"
)

// Name is the backend's registry key.
const Name = "libaom"

var log = logging.DefaultLogger.WithTag("av1")

// Available reports whether the libaom backend was compiled in.
func Available() bool {
	return available
}

// maxQueued bounds packets waiting in the backend before SendFrame reports
// a full queue.
const maxQueued = 8

// quantizer maps the 0..255 scale to libaom's 0..63.
func quantizer(q int) uint {
	if q <= 0 {
		return 0
	}
	if q >= 255 {
		return 63
	}
	return uint((q*63 + 127) / 255)
}

// tileColumnsLog2 converts a tile count to libaom's log2 tile columns.
func tileColumnsLog2(tiles int) int {
	n := 0
	for tiles > 1 {
		tiles >>= 1
		n++
	}
	if n > 6 {
		n = 6
	}
	return n
}
