// Package plazzalog provides the fleet's structured logger: a thin
// log/slog.Handler that renders records as
// "[YYYY-MM-DD HH:MM:SS.mmm] [LEVEL] message", and a small constructor
// that wires it to one or more sinks (console, append-mode log file).
//
// The logger is a value passed explicitly to the components that need
// it (dispatcher, kitchen, reception), never a package-level global —
// the source this system descends from shared a logger singleton
// across components, which made teardown ordering and testing awkward.
package plazzalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type handler struct {
	mu  *sync.Mutex
	out io.Writer
}

// NewHandler returns an slog.Handler that writes to out in the fleet's
// fixed log-line format. Multiple handlers sharing mu serialize their
// writes against each other, which matters when a console handler and
// a file handler both wrap the same *slog.Logger.
func NewHandler(out io.Writer, mu *sync.Mutex) slog.Handler {
	return &handler{mu: mu, out: out}
}

func (h *handler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	level := levelTag(r.Level)
	line := fmt.Sprintf("[%s] [%s] %s", r.Time.Format("2006-01-02 15:04:05.000"), level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *handler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *handler) WithGroup(_ string) slog.Handler      { return h }

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// multiWriter fans writes out to every sink in order, matching the
// teacher's pattern of a process owning the sinks it logs to rather
// than reaching for a global.
type multiWriter struct {
	writers []io.Writer
}

func (m *multiWriter) Write(p []byte) (int, error) {
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// New builds a *slog.Logger that fans out to every given sink using the
// fleet's fixed line format. Pass a single sink for a file-only kitchen
// logger, or stdout+file for the parent's console-plus-file logger.
func New(sinks ...io.Writer) *slog.Logger {
	var mu sync.Mutex
	var out io.Writer
	switch len(sinks) {
	case 0:
		out = io.Discard
	case 1:
		out = sinks[0]
	default:
		out = &multiWriter{writers: sinks}
	}
	return slog.New(NewHandler(out, &mu))
}
