package journal

import (
	"fmt"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/engine"
)

// BadSectorLog writes one line per unreadable span to a dedicated log.
type BadSectorLog struct {
	j *Journal
}

var _ engine.BadSectorSink = (*BadSectorLog)(nil)

// OpenBadSectorLog opens (or creates) the bad sector log at path.
func OpenBadSectorLog(path string, opts ...Option) (*BadSectorLog, error) {
	j, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	return &BadSectorLog{j: j}, nil
}

// NewBadSectorLog wraps an existing Journal.
func NewBadSectorLog(j *Journal) *BadSectorLog {
	return &BadSectorLog{j: j}
}

func (l *BadSectorLog) RecordBadSector(b engine.BadSector) error {
	return l.j.Recordf("Read error (bad sector) at offset: %d (length %d). Error: %s",
		b.Offset, b.Length, b.Description())
}

// Path returns the log file path.
func (l *BadSectorLog) Path() string { return l.j.Path() }

func (l *BadSectorLog) Close() error {
	if err := l.j.Close(); err != nil {
		return fmt.Errorf("close bad sector log: %w", err)
	}
	return nil
}
