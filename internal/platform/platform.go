// Package platform wraps the OS-specific calls the acquisition engine
// needs for block devices: capacity, read-only state, and space
// preallocation for the destination image.
package platform

import "errors"

// ErrUnsupported is returned when the running platform has no native
// mechanism for the requested operation. Callers fall back or skip.
var ErrUnsupported = errors.New("operation not supported on this platform")
