package engine

import (
	"errors"
	"io"
	"os"
	"time"
)

// Medium is an open source being imaged. Reads advance a cursor that the
// engine repositions with Seek when it skips an unreadable chunk.
// *os.File implements it.
type Medium interface {
	io.Reader
	io.Seeker
	io.Closer
}

// Opener opens a source path for reading.
type Opener func(path string) (Medium, error)

// OpenMedium opens path read-only.
func OpenMedium(path string) (Medium, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// BadSector records one unreadable span of the source. Records are
// append-only and never mutated after they are handed to a sink.
type BadSector struct {
	Offset int64
	Length int64
	Err    error
	At     time.Time
}

// Description returns the fault text recorded in logs.
func (b BadSector) Description() string {
	if b.Err == nil {
		return "unknown read error"
	}
	return b.Err.Error()
}

// BadSectorSink receives bad sector records as they happen. A sink that
// buffers may also implement Flush, which the engine calls when the run
// ends on any path.
type BadSectorSink interface {
	RecordBadSector(BadSector) error
}

type flusher interface {
	Flush() error
}

func flushSink(s BadSectorSink) error {
	if f, ok := s.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// TeeBadSectors fans records out to every sink, continuing past failures.
func TeeBadSectors(sinks ...BadSectorSink) BadSectorSink {
	return teeSink(sinks)
}

type teeSink []BadSectorSink

func (t teeSink) RecordBadSector(b BadSector) error {
	var errs []error
	for _, s := range t {
		if err := s.RecordBadSector(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeSink) Flush() error {
	var errs []error
	for _, s := range t {
		if err := flushSink(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopSink struct{}

func (nopSink) RecordBadSector(BadSector) error { return nil }
