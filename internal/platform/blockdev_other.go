//go:build !linux

package platform

import "os"

// BlockDeviceSize has no native implementation here; callers fall back
// to seeking to the end of the device.
func BlockDeviceSize(_ *os.File) (int64, error) { return 0, ErrUnsupported }

// ReadOnly is not supported on this platform.
func ReadOnly(_ *os.File) (bool, error) { return false, ErrUnsupported }

// SetReadOnly is not supported on this platform.
func SetReadOnly(_ *os.File, _ bool) error { return ErrUnsupported }

// Preallocate is a no-op on non-Linux platforms (fallocate is Linux-only).
func Preallocate(_ *os.File, _ int64) error { return nil }
