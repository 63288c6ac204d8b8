// Package source identifies the medium being imaged: what kind of
// object it is, how many bytes it holds, and whether it can be
// protected against writes for the duration of an acquisition.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/platform"
)

// ErrSizeUndetermined is returned when no mechanism could establish the
// length of the source. A zero length is never a usable answer.
var ErrSizeUndetermined = errors.New("source size could not be determined")

// Kind classifies the backing object of a source path.
type Kind int

const (
	KindOther Kind = iota
	KindFile
	KindBlockDevice
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindBlockDevice:
		return "block-device"
	default:
		return "other"
	}
}

// Info describes a source after it has been sized.
type Info struct {
	Path string
	Kind Kind
	Size int64
}

// KindOf classifies the object at path without opening it.
func KindOf(path string) (Kind, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return KindOther, fmt.Errorf("stat source: %w", err)
	}
	return kindOf(fi), nil
}

func kindOf(fi os.FileInfo) Kind {
	mode := fi.Mode()
	switch {
	case mode.IsRegular():
		return KindFile
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0:
		return KindBlockDevice
	default:
		return KindOther
	}
}

// Size returns the total addressable length of the source. Regular
// files report their stored size; block devices are asked for their
// capacity; anything else is opened read-only and measured by seeking
// to the end. On failure the returned length is zero and the error
// wraps ErrSizeUndetermined. Repeated calls on an unchanged source
// return the same length.
func Size(path string) (Info, error) {
	info := Info{Path: path}

	fi, err := os.Stat(path)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSizeUndetermined, err)
	}
	info.Kind = kindOf(fi)

	if fi.IsDir() {
		return info, fmt.Errorf("%w: %s is a directory", ErrSizeUndetermined, path)
	}

	if info.Kind == KindFile {
		if fi.Size() <= 0 {
			return info, fmt.Errorf("%w: %s is empty", ErrSizeUndetermined, path)
		}
		info.Size = fi.Size()
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSizeUndetermined, err)
	}
	defer f.Close()

	if info.Kind == KindBlockDevice {
		if n, err := platform.BlockDeviceSize(f); err == nil && n > 0 {
			info.Size = n
			return info, nil
		}
	}

	n, err := seekSize(f)
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrSizeUndetermined, err)
	}
	if n <= 0 {
		return info, fmt.Errorf("%w: %s reports zero length", ErrSizeUndetermined, path)
	}
	info.Size = n
	return info, nil
}

// seekSize measures a seekable object by seeking to its end and back.
func seekSize(rs io.Seeker) (int64, error) {
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek end: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind: %w", err)
	}
	return end, nil
}
