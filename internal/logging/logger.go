package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Any log messages intended for a higher
	// (more verbose) log level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	out *output
}

// Destination shared by a logger and everything derived from it. The mutex
// keeps lines from different goroutines from interleaving.
type output struct {
	sync.Mutex
	w     io.Writer
	color bool
}

// Write to stderr by default.
var DefaultLogger = &Logger{defaultLevel, "", &output{w: os.Stderr, color: isTerminal(os.Stderr)}}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var levelColors = map[Level]*color.Color{
	Error: color.New(color.FgRed, color.Bold),
	Warn:  color.New(color.FgRed),
	Info:  color.New(color.Reset),
	Debug: color.New(color.FgGreen),
}

var (
	traceColor  = color.New(color.FgYellow)
	headerColor = color.New(color.FgWhite)
)

func (l Level) color() *color.Color {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return traceColor
}

// SetDestination overrides the destination for this logger and every logger
// sharing its output. Color is disabled unless w is a terminal.
func (log *Logger) SetDestination(w io.Writer) {
	log.out.Lock()
	defer log.out.Unlock()

	log.out.w = w
	f, ok := w.(*os.File)
	log.out.color = ok && isTerminal(f)
}

// WithTag derives a new logger with the given tag. The level is looked up
// from LOGLEVEL directives, falling back to this logger's level.
func (log *Logger) WithTag(tag string) *Logger {
	return track(&Logger{determineLevel(tag, log.Level), tag, log.out}, log, 0)
}

// WithDefaultLevel derives a new logger with the given default level. This
// can still be overridden at runtime.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return track(&Logger{determineLevel(log.Tag, level), log.Tag, log.out}, nil, level)
}

// Enabled reports whether messages at the given level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.Level
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

// A global buffer pool, shared across all loggers.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make(buffer, 0, 256)
		return &b
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		return
	}

	bp := bufPool.Get().(*buffer)
	defer func() {
		*bp = (*bp)[:0]
		bufPool.Put(bp)
	}()

	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	log.out.Lock()
	defer log.out.Unlock()

	header := fmt.Sprintf("%s %c/%s[%s:%d]",
		time.Now().Format(timestampFormat), level.letter(), log.Tag, filepath.Base(file), line)
	if log.out.color {
		headerColor.Fprint(bp, header[:len(timestampFormat)])
		level.color().Fprint(bp, header[len(timestampFormat):])
	} else {
		bp.Write([]byte(header))
	}
	*bp = append(*bp, ' ')
	fmt.Fprintf(bp, format, a...)
	if n := len(*bp); n == 0 || (*bp)[n-1] != '\n' {
		*bp = append(*bp, '\n')
	}

	if _, err := log.out.w.Write(*bp); err != nil {
		panic(fmt.Sprintf("Failed to log to %v: %v", log.out.w, err))
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}

// Fatalf logs at Error level and exits the process.
func (log *Logger) Fatalf(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
	os.Exit(1)
}
