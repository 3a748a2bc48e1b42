package logging

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSink struct {
	lines []string
}

func (r *recordingSink) Debug(msg string) {
	r.lines = append(r.lines, msg)
}

func TestNewDebugLogger_Disabled(t *testing.T) {
	sink := &recordingSink{}
	logger := NewDebugLogger(false, sink)

	logger.Log().Str("url", "https://example.test").Msg("request")

	if len(sink.lines) != 0 {
		t.Errorf("disabled logger wrote %d lines", len(sink.lines))
	}
}

func TestNewDebugLogger_Sink(t *testing.T) {
	sink := &recordingSink{}
	logger := NewDebugLogger(true, sink)

	logger.Log().Str("url", "https://example.test/slm/webservice/v2.0/defect").Msg("WSAPI request")

	if len(sink.lines) != 1 {
		t.Fatalf("sink received %d lines, want 1", len(sink.lines))
	}
	line := sink.lines[0]
	if strings.HasSuffix(line, "\n") {
		t.Error("trailing newline should be trimmed before reaching the sink")
	}
	if !strings.Contains(line, "WSAPI request") || !strings.Contains(line, "/defect") {
		t.Errorf("unexpected trace line %q", line)
	}
}

func TestNewDebugLogger_IgnoresGlobalLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	defer zerolog.SetGlobalLevel(prev)

	sink := &recordingSink{}
	logger := NewDebugLogger(true, sink)
	logger.Log().Msg("trace")

	if len(sink.lines) != 1 {
		t.Errorf("trace lines must not be filtered by the global level, got %d", len(sink.lines))
	}
}

func TestNewDebugLogger_PanickingSink(t *testing.T) {
	logger := NewDebugLogger(true, DebugSinkFunc(func(string) {
		panic("sink exploded")
	}))

	// Must not propagate the panic.
	logger.Log().Msg("trace")
}

func TestSinkWriter_Write(t *testing.T) {
	sink := &recordingSink{}
	w := &sinkWriter{sink: sink}

	n, err := w.Write([]byte("hello\n"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 6 {
		t.Errorf("Write() n = %d, want 6", n)
	}
	if sink.lines[0] != "hello" {
		t.Errorf("sink got %q, want %q", sink.lines[0], "hello")
	}
}
