//go:build linux

package platform

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BlockDeviceSize returns the capacity of the block device behind f in
// bytes, as reported by the BLKGETSIZE64 ioctl. This is distinct from
// the file size reported by stat, which is zero for device nodes.
//
//nolint:gosec // G103,G115: ioctl argument is a pointer to a local uint64
func BlockDeviceSize(f *os.File) (int64, error) {
	var size uint64
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		uintptr(unix.BLKGETSIZE64),
		uintptr(unsafe.Pointer(&size)),
	)
	if errno != 0 {
		return 0, fmt.Errorf("BLKGETSIZE64 %s: %w", f.Name(), errno)
	}
	return int64(size), nil
}

// ReadOnly reports whether the kernel marks the block device behind f
// read-only (BLKROGET).
//
//nolint:gosec // G115: fd values are small non-negative integers
func ReadOnly(f *os.File) (bool, error) {
	v, err := unix.IoctlGetUint32(int(f.Fd()), unix.BLKROGET)
	if err != nil {
		return false, fmt.Errorf("BLKROGET %s: %w", f.Name(), err)
	}
	return v != 0, nil
}

// SetReadOnly sets or clears the kernel read-only flag on the block
// device behind f (BLKROSET). Requires CAP_SYS_ADMIN.
//
//nolint:gosec // G115: fd values are small non-negative integers
func SetReadOnly(f *os.File, ro bool) error {
	v := 0
	if ro {
		v = 1
	}
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.BLKROSET, v); err != nil {
		return fmt.Errorf("BLKROSET %s=%d: %w", f.Name(), v, err)
	}
	return nil
}

// Preallocate reserves size bytes for f. fallocate is not supported on
// every filesystem, so callers treat failure as advisory.
//
//nolint:gosec // G115: fd values are small non-negative integers
func Preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}
