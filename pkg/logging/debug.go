package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DebugSink receives request trace lines. Any logger with a Debug(string)
// method can be plugged in.
type DebugSink interface {
	Debug(msg string)
}

// DebugSinkFunc adapts a function to DebugSink.
type DebugSinkFunc func(msg string)

// Debug implements DebugSink.
func (f DebugSinkFunc) Debug(msg string) { f(msg) }

// NewDebugLogger returns the request trace logger.
//
// When enabled is false the logger is a no-op. When sink is nil, trace
// lines are written to stdout through a console writer. Trace events are
// emitted without a level, so the global level set by Setup never hides
// them.
func NewDebugLogger(enabled bool, sink DebugSink) zerolog.Logger {
	if !enabled {
		return zerolog.Nop()
	}
	if sink == nil {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(&sinkWriter{sink: sink}).With().Timestamp().Logger()
}

// sinkWriter forwards each encoded zerolog event to a DebugSink. It never
// reports a write error and swallows panics raised by the sink.
type sinkWriter struct {
	mu   sync.Mutex
	sink DebugSink
}

func (w *sinkWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func() { _ = recover() }()

	w.sink.Debug(strings.TrimRight(string(p), "\n"))
	return n, nil
}
