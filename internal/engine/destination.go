package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/platform"
)

// partial is the destination image while it is being written. It lives
// under a hidden name next to the final path and only becomes visible
// at that path once the run has completed.
type partial struct {
	final     string
	path      string
	f         *os.File
	written   int64
	sealed    bool
	published bool
}

// openPartial creates the partial image file. Tests swap it to get hold
// of the descriptor.
var openPartial = func(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

func createPartial(final string, size int64, logger *slog.Logger) (*partial, error) {
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	name := fmt.Sprintf(".%s.%s.partial", filepath.Base(final), uuid.New().String()[:8])
	path := filepath.Join(dir, name)

	f, err := openPartial(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	RegisterPartial(path, final)

	if err := platform.Preallocate(f, size); err != nil {
		logger.Debug("preallocation unavailable", "path", path, "error", err)
	}

	return &partial{final: final, path: path, f: f}, nil
}

func (p *partial) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	p.written += int64(n)
	return n, err
}

// seal flushes and closes the partial image and checks that the bytes on
// disk match the bytes written.
func (p *partial) seal() (int64, error) {
	p.sealed = true
	if err := p.f.Sync(); err != nil {
		p.f.Close()
		return p.written, fmt.Errorf("sync %s: %w", p.path, err)
	}
	if err := p.f.Close(); err != nil {
		return p.written, fmt.Errorf("close %s: %w", p.path, err)
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return p.written, fmt.Errorf("stat %s: %w", p.path, err)
	}
	if info.Size() != p.written {
		return p.written, fmt.Errorf("%w: %d bytes on disk, %d written",
			ErrSizeMismatch, info.Size(), p.written)
	}
	return p.written, nil
}

// publish moves the sealed image to its final path without ever
// replacing an existing file, and marks it read-only.
func (p *partial) publish() error {
	if err := os.Chmod(p.path, 0o444); err != nil {
		return fmt.Errorf("chmod %s: %w", p.path, err)
	}

	err := os.Link(p.path, p.final)
	switch {
	case err == nil:
		if err := os.Remove(p.path); err != nil {
			return fmt.Errorf("remove %s: %w", p.path, err)
		}
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrDestinationExists, p.final)
	default:
		// Filesystems without hard links: check, then rename.
		if _, statErr := os.Lstat(p.final); statErr == nil {
			return fmt.Errorf("%w: %s", ErrDestinationExists, p.final)
		}
		if err := os.Rename(p.path, p.final); err != nil {
			return fmt.Errorf("rename %s -> %s: %w", p.path, p.final, err)
		}
	}

	p.published = true
	DeregisterPartial(p.path)
	return nil
}

// discard removes the partial image unless it was published.
func (p *partial) discard() {
	if p.published {
		return
	}
	if !p.sealed {
		p.f.Close()
	}
	_ = os.Remove(p.path)
	DeregisterPartial(p.path)
}
