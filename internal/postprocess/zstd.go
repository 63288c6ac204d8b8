package postprocess

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
)

// Zstd exports the raw image as a zstd stream next to it and checks that
// the stream decompresses to the acquired digests.
type Zstd struct {
	Level zstd.EncoderLevel // default zstd.SpeedDefault
}

// ZstdLevel maps a compression name to an encoder level. A zstd stream is
// always compressed, so "none" gets the fastest level; the CLI rejects
// --zstd with --compress none rather than relying on this.
func ZstdLevel(compression string) zstd.EncoderLevel {
	switch compression {
	case CompressNone, CompressFast:
		return zstd.SpeedFastest
	case CompressBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) Available() error { return nil }

func (z *Zstd) Run(ctx context.Context, in Input) (Output, error) {
	target := in.RawImage + ".zst"
	if _, err := os.Lstat(target); err == nil {
		return Output{}, fmt.Errorf("%s already exists", target)
	}
	record(in.Journal, "Compressing %s to %s", in.RawImage, target)

	tmp := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".tmp")
	if err := z.compress(ctx, in.RawImage, tmp); err != nil {
		_ = os.Remove(tmp)
		return Output{}, err
	}

	if in.Digests[0].Algorithm != "" {
		sums, err := decompressedSums(ctx, tmp, in.Digests)
		if err != nil {
			_ = os.Remove(tmp)
			return Output{}, err
		}
		for i := range sums {
			if sums[i].Hex != in.Digests[i].Hex {
				_ = os.Remove(tmp)
				return Output{}, fmt.Errorf("zstd round trip %s mismatch: %s != %s",
					sums[i].Algorithm, sums[i].Hex, in.Digests[i].Hex)
			}
		}
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return Output{}, fmt.Errorf("rename %s: %w", tmp, err)
	}
	record(in.Journal, "zstd export complete: %s", target)
	return Output{Path: target}, nil
}

func (z *Zstd) compress(ctx context.Context, src, dst string) error {
	level := z.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}

	r, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer w.Close()

	bw := bufio.NewWriterSize(w, 1<<20)
	enc, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(enc, ctxReader{ctx: ctx, r: r}, buf); err != nil {
		enc.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return w.Sync()
}

func decompressedSums(ctx context.Context, path string, want [2]digest.Sum) ([2]digest.Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return [2]digest.Sum{}, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return [2]digest.Sum{}, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	pair, err := digest.New(want[0].Algorithm, want[1].Algorithm)
	if err != nil {
		return [2]digest.Sum{}, err
	}
	if _, err := io.Copy(pair, ctxReader{ctx: ctx, r: dec}); err != nil {
		return [2]digest.Sum{}, fmt.Errorf("decompress: %w", err)
	}
	return pair.Sum(), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
