package capture

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/v4l2"
)

// Spec describes the camera a source type should open. Device is
// interpreted by the source type; v4l2 takes a device path.
type Spec struct {
	Device    string
	Format    v4l2.FourCC
	Width     int
	Height    int
	FrameRate int
}

// A SourceType turns a Spec into an OpenFunc for that kind of camera.
type SourceType func(spec Spec) OpenFunc

var registry = map[string]SourceType{}

// Register makes a camera type available under name. Registering the same
// name twice replaces the earlier entry.
func Register(name string, open SourceType) {
	registry[name] = open
}

// Sources lists registered source names in sorted order.
func Sources() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns an OpenFunc for the named source type.
func Lookup(name string, spec Spec) (OpenFunc, error) {
	log.Debug("registered source types: %v", Sources())
	open, found := registry[name]
	if !found {
		return nil, errors.Errorf("source type %q not registered", name)
	}
	return open(spec), nil
}

func init() {
	Register("v4l2", func(spec Spec) OpenFunc {
		return OpenV4L2(V4L2Config{
			Path:      spec.Device,
			Format:    spec.Format,
			Width:     spec.Width,
			Height:    spec.Height,
			FrameRate: spec.FrameRate,
		})
	})
	Register("testpattern", func(spec Spec) OpenFunc {
		return OpenTestPattern(TestPatternConfig{
			Width:     spec.Width,
			Height:    spec.Height,
			FrameRate: spec.FrameRate,
			Label:     spec.Device,
		})
	})
}
