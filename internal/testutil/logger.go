// Package testutil provides shared test helpers.
package testutil

import (
	"bytes"
	"log/slog"
	"testing"
)

// NewTestLogger returns a debug-level logger routed through t.Log, so
// component output is attributed to the test that produced it and only
// surfaces on failure or with -v.
func NewTestLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	return slog.New(slog.NewTextHandler(&logSink{tb: tb}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// logSink adapts testing.TB to io.Writer, trimming the handler's trailing
// newline so t.Log does not double-space the output.
type logSink struct {
	tb testing.TB
}

func (s *logSink) Write(p []byte) (int, error) {
	s.tb.Helper()
	s.tb.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
