package source

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/platform"
)

var (
	// ErrWriteBlock reports that the software write-block could not be applied.
	ErrWriteBlock = errors.New("software write-block could not be applied")
	// ErrWriteBlockRefused reports that the operator declined to continue
	// without a software write-block.
	ErrWriteBlockRefused = errors.New("operator declined to continue without write-block")
)

// HardwareBlockerWarning is logged whenever software protection fails.
const HardwareBlockerWarning = "a hardware write-blocker is the only guaranteed protection of the source"

// ConfirmFunc asks the operator whether to continue after the software
// write-block failed. cause wraps ErrWriteBlock. Returning false aborts.
type ConfirmFunc func(cause error) bool

// Protection describes what Acquire achieved.
type Protection int

const (
	// NotApplicable: the source is not a block device.
	NotApplicable Protection = iota
	// Applied: the device was switched to read-only and will be reverted.
	Applied
	// AlreadyReadOnly: the device was read-only before; nothing to revert.
	AlreadyReadOnly
	// Unprotected: the toggle failed and the operator chose to continue.
	Unprotected
)

func (p Protection) String() string {
	switch p {
	case Applied:
		return "applied"
	case AlreadyReadOnly:
		return "already-read-only"
	case Unprotected:
		return "unprotected"
	default:
		return "not-applicable"
	}
}

// Guard brackets an acquisition with a best-effort kernel read-only flag
// on the source device. Release restores the previous state and is safe
// to call more than once, so callers defer it immediately after Acquire.
type Guard struct {
	info    Info
	confirm ConfirmFunc
	logger  *slog.Logger

	mu       sync.Mutex
	dev      *os.File
	applied  bool
	released bool
}

// NewGuard returns a Guard for the sized source. A nil confirm refuses
// every unprotected run.
func NewGuard(info Info, confirm ConfirmFunc, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{info: info, confirm: confirm, logger: logger}
}

// Acquire marks the source read-only. Plain files are left alone. When
// the toggle cannot be applied the operator is asked through the
// confirmation callback; a refusal returns an error wrapping
// ErrWriteBlockRefused.
func (g *Guard) Acquire() (Protection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.info.Kind != KindBlockDevice {
		return NotApplicable, nil
	}

	dev, err := os.Open(g.info.Path)
	if err != nil {
		return g.unprotected(err)
	}

	if ro, err := platform.ReadOnly(dev); err == nil && ro {
		dev.Close()
		g.logger.Info("source already read-only", "path", g.info.Path)
		return AlreadyReadOnly, nil
	}

	if err := platform.SetReadOnly(dev, true); err != nil {
		dev.Close()
		return g.unprotected(err)
	}

	g.dev = dev
	g.applied = true
	g.logger.Info("software write-block applied", "path", g.info.Path)
	return Applied, nil
}

func (g *Guard) unprotected(cause error) (Protection, error) {
	err := fmt.Errorf("%w on %s: %w", ErrWriteBlock, g.info.Path, cause)
	g.logger.Warn("software write-block failed", "path", g.info.Path, "error", cause)
	g.logger.Warn(HardwareBlockerWarning)

	if g.confirm == nil || !g.confirm(err) {
		return Unprotected, fmt.Errorf("%w: %w", ErrWriteBlockRefused, err)
	}
	g.logger.Warn("operator chose to continue without software write-block", "path", g.info.Path)
	return Unprotected, nil
}

// Release reverts the read-only flag if Acquire set it.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.applied || g.released {
		return nil
	}
	g.released = true
	defer g.dev.Close()

	if err := platform.SetReadOnly(g.dev, false); err != nil {
		g.logger.Error("failed to revert write-block", "path", g.info.Path, "error", err)
		return fmt.Errorf("release write-block: %w", err)
	}
	g.logger.Info("software write-block released", "path", g.info.Path)
	return nil
}
