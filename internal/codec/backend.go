package codec

import (
	"image"
	"sort"
	"sync"

	errors "golang.org/x/xerrors"
)

// Backend is a stateful video encoder context. It is owned by one
// Incremental encoder and never shared.
type Backend interface {
	// SendFrame submits one picture in the planar layout selected by
	// Params.Chroma. Returns ErrQueueFull if input is not accepted until
	// packets are drained. The backend copies pic before returning.
	SendFrame(pic *image.YCbCr, pts int64, forceKey bool) error

	// ReceivePacket returns the next completed packet, or ErrNeedMoreData.
	ReceivePacket() (BackendPacket, error)

	Close() error
}

// BackendPacket is one compressed unit from a Backend.
type BackendPacket struct {
	Data []byte
	PTS  int64
	Key  bool
}

// BackendFactory creates a fresh encoder context.
type BackendFactory func(p Params) (Backend, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{}
)

// RegisterBackend makes an incremental encoder implementation available by
// name. Backends register themselves from init.
func RegisterBackend(name string, f BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = f
}

// LookupBackend returns the named backend, or the only registered one if
// name is empty.
func LookupBackend(name string) (BackendFactory, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()

	if name == "" && len(backends) == 1 {
		for _, f := range backends {
			return f, nil
		}
	}
	if f, found := backends[name]; found {
		return f, nil
	}
	return nil, errors.Errorf("codec: backend %q not available (have %v)", name, backendNames())
}

func backendNames() []string {
	var names []string
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
