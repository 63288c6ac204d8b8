// Package journal writes the append-only, timestamped text logs that
// accompany an acquisition: the case event journal and the dedicated
// bad-sector log. Both are evidence artifacts, so lines are only ever
// appended and every line carries its own timestamp.
package journal

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// TimeLayout is the timestamp format of every journal line.
const TimeLayout = "2006-01-02 15:04:05"

// Journal is an append-only text log with one timestamped line per entry.
type Journal struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the time source, for deterministic output.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithMirror copies every entry to logger at info level.
func WithMirror(logger *slog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// Open opens (or creates) the journal file at path in append mode.
func Open(path string, opts ...Option) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	j := New(f, opts...)
	j.closer = f
	j.path = path
	return j, nil
}

// New returns a Journal writing to w.
func New(w io.Writer, opts ...Option) *Journal {
	j := &Journal{w: w, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Path returns the file backing the journal, or "" for writer-backed journals.
func (j *Journal) Path() string { return j.path }

// Recordf appends one formatted, timestamped line.
func (j *Journal) Recordf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.logger != nil {
		j.logger.Info(msg)
	}
	if _, err := fmt.Fprintf(j.w, "[%s] %s\n", j.now().Format(TimeLayout), msg); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the journal owns one.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closer == nil {
		return nil
	}
	err := j.closer.Close()
	j.closer = nil
	return err
}
