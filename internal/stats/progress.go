package stats

import (
	"math"
	"time"
)

const mebibyte = 1024 * 1024

// Sample is one progress reading derived from engine state.
type Sample struct {
	Percent    float64 // 0-100, rounded to two decimals
	MBps       float64 // MiB per second since start, 0 when no time has elapsed
	BadSectors int64
}

// Compute derives a progress Sample. It performs no I/O and allocates
// nothing, so the engine can call it on every chunk.
func Compute(processed, total int64, elapsed time.Duration, badSectors int64) Sample {
	s := Sample{BadSectors: badSectors}

	if total > 0 {
		pct := float64(processed) / float64(total) * 100
		pct = math.Max(0, math.Min(100, pct))
		s.Percent = math.Round(pct*100) / 100
	}

	if secs := elapsed.Seconds(); secs > 0 {
		s.MBps = float64(processed) / mebibyte / secs
	}

	return s
}
