package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Writer is the write side of a Collector, used by the engine.
type Writer interface {
	SetTotal(bytes int64)
	AddBytesProcessed(n int64)
	AddBytesZeroFilled(n int64)
	AddBadSectors(n int64)
	AddVerified(n int64)
	AddVerifyFailed(n int64)
}

// Reader is the read side of a Collector, used by presenters.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	ETA() time.Duration
	SparklineData(n int) []float64
}

// ReadTicker is a Reader whose ring buffer is advanced by the presenter.
type ReadTicker interface {
	Reader
	Tick()
}

// Collector tracks acquisition statistics using lock-free atomic counters.
type Collector struct {
	bytesProcessed  atomic.Int64
	bytesZeroFilled atomic.Int64
	bytesTotal      atomic.Int64
	badSectors      atomic.Int64
	verified        atomic.Int64
	verifyFailed    atomic.Int64
	startTime       time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int // samples written, capped at ringSize
	lastBytes  int64
}

var (
	_ Writer     = (*Collector)(nil)
	_ ReadTicker = (*Collector)(nil)
)

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotal records the source length (called once sizing succeeds).
func (c *Collector) SetTotal(bytes int64) { c.bytesTotal.Store(bytes) }

func (c *Collector) AddBytesProcessed(n int64)  { c.bytesProcessed.Add(n) }
func (c *Collector) AddBytesZeroFilled(n int64) { c.bytesZeroFilled.Add(n) }
func (c *Collector) AddBadSectors(n int64)      { c.badSectors.Add(n) }
func (c *Collector) AddVerified(n int64)        { c.verified.Add(n) }
func (c *Collector) AddVerifyFailed(n int64)    { c.verifyFailed.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	BytesProcessed  int64
	BytesZeroFilled int64
	BytesTotal      int64
	BadSectors      int64
	Verified        int64
	VerifyFailed    int64
	Elapsed         time.Duration
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BytesProcessed:  c.bytesProcessed.Load(),
		BytesZeroFilled: c.bytesZeroFilled.Load(),
		BytesTotal:      c.bytesTotal.Load(),
		BadSectors:      c.badSectors.Load(),
		Verified:        c.verified.Load(),
		VerifyFailed:    c.verifyFailed.Load(),
		Elapsed:         c.Elapsed(),
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesProcessed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// SparklineData returns the last n bytes/sec samples for rendering, oldest first.
func (c *Collector) SparklineData(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(n, c.ringCount)
	if count <= 0 {
		return nil
	}

	data := make([]float64, count)
	for i := range count {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.throughput[idx])
	}
	return data
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesProcessed.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"processed=%d total=%d zerofilled=%d badsectors=%d",
		s.BytesProcessed, s.BytesTotal, s.BytesZeroFilled, s.BadSectors,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
