package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// NewBWLimiter creates a rate.Limiter that caps source reads to
// bytesPerSec. The burst is one chunk so a full chunk can pass at once
// when the limit allows it.
func NewBWLimiter(bytesPerSec int64, chunkSize int) *rate.Limiter {
	burst := chunkSize
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), max(burst, 1))
}

// rateLimitedMedium throttles reads from a Medium. Seeks and closes pass
// through untouched.
type rateLimitedMedium struct {
	Medium
	limiter *rate.Limiter
	ctx     context.Context
}

func newRateLimitedMedium(ctx context.Context, m Medium, limiter *rate.Limiter) *rateLimitedMedium {
	return &rateLimitedMedium{Medium: m, limiter: limiter, ctx: ctx}
}

// errThrottled marks a read the limiter refused to schedule, e.g. because
// the wait would run past the context deadline. It is never a read fault.
var errThrottled = errors.New("bandwidth limit wait refused")

// Read reserves len(p) tokens before touching the source, so a refused
// wait returns 0 bytes and cannot be swallowed by io.ReadFull.
func (rl *rateLimitedMedium) Read(p []byte) (int, error) {
	if len(p) > 0 {
		if err := waitN(rl.ctx, rl.limiter, len(p)); err != nil {
			return 0, fmt.Errorf("%w: %w", errThrottled, err)
		}
	}
	return rl.Medium.Read(p)
}

// waitN waits for n tokens in burst-sized steps; WaitN rejects requests
// larger than the burst.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
