package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddBytesProcessed(512)
				c.AddBytesZeroFilled(1)
				c.AddBadSectors(1)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected*512, s.BytesProcessed)
	assert.Equal(t, expected, s.BytesZeroFilled)
	assert.Equal(t, expected, s.BadSectors)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		BytesProcessed:  4096,
		BytesTotal:      8192,
		BytesZeroFilled: 512,
		BadSectors:      1,
	}
	assert.Equal(t, "processed=4096 total=8192 zerofilled=512 badsectors=1", s.String())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{10485760, "10.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestNewCollectorElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(5 * time.Millisecond)
	assert.Positive(t, c.Elapsed())
}

func TestRollingSpeed(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RollingSpeed(10))

	c.AddBytesProcessed(1000)
	c.Tick()
	c.AddBytesProcessed(3000)
	c.Tick()

	assert.InDelta(t, 2000.0, c.RollingSpeed(10), 0.001)
	assert.InDelta(t, 3000.0, c.RollingSpeed(1), 0.001)
}

func TestSparklineDataOldestFirst(t *testing.T) {
	c := NewCollector()
	assert.Nil(t, c.SparklineData(5))

	for _, n := range []int64{10, 20, 30} {
		c.AddBytesProcessed(n)
		c.Tick()
	}
	assert.Equal(t, []float64{10, 20, 30}, c.SparklineData(5))
	assert.Equal(t, []float64{20, 30}, c.SparklineData(2))
}

func TestRingWraps(t *testing.T) {
	c := NewCollector()
	for range ringSize + 5 {
		c.AddBytesProcessed(100)
		c.Tick()
	}
	assert.Len(t, c.SparklineData(ringSize*2), ringSize)
	assert.InDelta(t, 100.0, c.RollingSpeed(ringSize), 0.001)
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetTotal(10_000)
	assert.Zero(t, c.ETA(), "no samples yet")

	c.AddBytesProcessed(1000)
	c.Tick()
	assert.Equal(t, 9*time.Second, c.ETA())

	c.AddBytesProcessed(9000)
	assert.Zero(t, c.ETA(), "nothing remaining")
}
