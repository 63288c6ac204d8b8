package engine

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func TestNewBWLimiter(t *testing.T) {
	t.Parallel()

	t.Run("burst capped to rate when rate < chunk", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(1024, DefaultChunkSize)
		assert.Equal(t, 1024, lim.Burst())
	})

	t.Run("burst is one chunk when rate >= chunk", func(t *testing.T) {
		t.Parallel()
		lim := NewBWLimiter(10*1024*1024, DefaultChunkSize)
		assert.Equal(t, DefaultChunkSize, lim.Burst())
	})
}

func TestRateLimitedMedium(t *testing.T) {
	t.Parallel()

	t.Run("reads all data", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("x"), 4096)
		m := nopCloser{bytes.NewReader(data)}
		rl := newRateLimitedMedium(context.Background(), m, NewBWLimiter(1<<20, DefaultChunkSize))

		got, err := io.ReadAll(rl)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("enforces rate limit", func(t *testing.T) {
		t.Parallel()
		// 10 KB at 5 KB/s should take ~1s after the initial burst.
		dataSize := 10 * 1024
		rateLimit := int64(5 * 1024)
		data := bytes.Repeat([]byte("a"), dataSize)
		m := nopCloser{bytes.NewReader(data)}

		start := time.Now()
		rl := newRateLimitedMedium(context.Background(), m, NewBWLimiter(rateLimit, DefaultChunkSize))
		got, err := io.ReadAll(rl)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Len(t, got, dataSize)
		assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	})

	t.Run("reads larger than burst are sliced", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("b"), 64*1024)
		m := nopCloser{bytes.NewReader(data)}
		// Burst 16 KiB, one 64 KiB read.
		rl := newRateLimitedMedium(context.Background(), m, NewBWLimiter(64<<20, 16*1024))

		buf := make([]byte, len(data))
		n, err := io.ReadFull(rl, buf)
		require.NoError(t, err)
		assert.Equal(t, len(data), n)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("c"), 8192)
		m := nopCloser{bytes.NewReader(data)}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		// 1 byte/s with a 1 byte burst: the second slice must wait.
		rl := newRateLimitedMedium(ctx, m, NewBWLimiter(1, DefaultChunkSize))

		n, err := rl.Read(make([]byte, 100))
		require.ErrorIs(t, err, errThrottled)
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, n)
	})

	t.Run("refused wait is not swallowed by ReadFull", func(t *testing.T) {
		t.Parallel()
		data := bytes.Repeat([]byte("d"), 256*1024)
		m := nopCloser{bytes.NewReader(data)}
		ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
		defer cancel()
		// 16 KiB/s: the whole buffer would need ~15s, far past the deadline.
		rl := newRateLimitedMedium(ctx, m, NewBWLimiter(16*1024, DefaultChunkSize))

		n, err := io.ReadFull(rl, make([]byte, len(data)))
		require.ErrorIs(t, err, errThrottled)
		assert.Zero(t, n)
		pos, seekErr := m.Seek(0, io.SeekCurrent)
		require.NoError(t, seekErr)
		assert.Zero(t, pos, "source is not read when the wait is refused")
	})

	t.Run("seek passes through", func(t *testing.T) {
		t.Parallel()
		data := []byte("0123456789")
		m := nopCloser{bytes.NewReader(data)}
		rl := newRateLimitedMedium(context.Background(), m, NewBWLimiter(1<<20, DefaultChunkSize))

		pos, err := rl.Seek(5, io.SeekStart)
		require.NoError(t, err)
		assert.Equal(t, int64(5), pos)
		buf := make([]byte, 5)
		_, err = io.ReadFull(rl, buf)
		require.NoError(t, err)
		assert.Equal(t, "56789", string(buf))
	})
}
