package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

// ErrVerifyMismatch is returned when a re-read of the published image does
// not reproduce the digests computed during acquisition.
var ErrVerifyMismatch = errors.New("image digest mismatch")

// VerifyConfig controls the post-acquisition verification pass.
type VerifyConfig struct {
	Path     string
	Expected [2]digest.Sum
	Events   chan<- event.Event
	Stats    stats.Writer
	Now      func() time.Time
}

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Computed [2]digest.Sum
	Bytes    int64
	Elapsed  time.Duration
}

// Verify re-hashes the image at cfg.Path with the algorithms of
// cfg.Expected and compares the results.
func Verify(ctx context.Context, cfg VerifyConfig) (VerifyResult, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	emitEvent(cfg.Events, event.Event{Type: event.VerifyStarted, Path: cfg.Path}, start)

	res, err := verify(ctx, cfg)
	res.Elapsed = now().Sub(start)

	if cfg.Stats != nil {
		if err != nil {
			cfg.Stats.AddVerifyFailed(1)
		} else {
			cfg.Stats.AddVerified(1)
		}
	}
	if err != nil {
		emitEvent(cfg.Events, event.Event{
			Type: event.VerifyFailed, Path: cfg.Path, Size: res.Bytes, Error: err,
		}, now())
		return res, err
	}
	emitEvent(cfg.Events, event.Event{
		Type: event.VerifyOK, Path: cfg.Path, Size: res.Bytes, Elapsed: res.Elapsed,
	}, now())
	return res, nil
}

func verify(ctx context.Context, cfg VerifyConfig) (VerifyResult, error) {
	var res VerifyResult

	pair, err := digest.New(cfg.Expected[0].Algorithm, cfg.Expected[1].Algorithm)
	if err != nil {
		return res, err
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	buf := make([]byte, DefaultChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		n, err := f.Read(buf)
		if n > 0 {
			pair.Write(buf[:n]) //nolint:errcheck // never fails
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read %s: %w", cfg.Path, err)
		}
	}

	res.Bytes = pair.Written()
	res.Computed = pair.Sum()
	for i := range res.Computed {
		if res.Computed[i].Hex != cfg.Expected[i].Hex {
			return res, fmt.Errorf("%w: %s expected %s, got %s", ErrVerifyMismatch,
				res.Computed[i].Algorithm, cfg.Expected[i].Hex, res.Computed[i].Hex)
		}
	}
	return res, nil
}
