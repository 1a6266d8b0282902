package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const envVar = "LOGLEVEL"

type directive struct {
	tag   string
	level Level
}

var (
	directivesMu sync.RWMutex
	directives   []directive
)

// A derived logger and where its fallback level comes from: the parent's
// current level, or a fixed level when parent is nil.
type derivation struct {
	log      *Logger
	parent   *Logger
	fallback Level
}

var (
	derivedMu sync.Mutex
	derived   []derivation
)

func track(log, parent *Logger, fallback Level) *Logger {
	derivedMu.Lock()
	derived = append(derived, derivation{log, parent, fallback})
	derivedMu.Unlock()
	return log
}

func init() {
	if err := Configure(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s: %v\n", envVar, err)
	}
}

// Configure parses comma-separated "tag=level" directives. A directive
// without "tag=" sets the default level. Existing loggers are re-leveled in
// place, so Configure should run before other goroutines start logging.
func Configure(spec string) error {
	var parsed []directive
	level := defaultLevel
	for _, d := range strings.Split(spec, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		l, err := ParseLevel(v[len(v)-1])
		if err != nil {
			return errors.Wrapf(err, "directive %q", d)
		}
		if len(v) == 1 {
			level = l
		} else {
			parsed = append(parsed, directive{v[0], l})
		}
	}

	directivesMu.Lock()
	directives = append(directives, parsed...)
	defaultLevel = level
	directivesMu.Unlock()

	DefaultLogger.Level = level

	// Parents are always tracked before their children.
	derivedMu.Lock()
	defer derivedMu.Unlock()
	for _, d := range derived {
		fallback := d.fallback
		if d.parent != nil {
			fallback = d.parent.Level
		}
		d.log.Level = determineLevel(d.log.Tag, fallback)
	}
	return nil
}

func determineLevel(tag string, fallback Level) Level {
	directivesMu.RLock()
	defer directivesMu.RUnlock()

	// Later directives win.
	for i := len(directives) - 1; i >= 0; i-- {
		if directives[i].tag == tag {
			return directives[i].level
		}
	}
	return fallback
}
