package postprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
)

var ErrNoRecoveryKey = errors.New("no BitLocker recovery key supplied")

// KeyPrompt asks the operator for a BitLocker recovery key.
type KeyPrompt func(ctx context.Context) (string, error)

// BitLocker decrypts the image with dislocker, mounting it through FUSE
// and copying the decrypted volume out to decrypted.img.
type BitLocker struct {
	Prompt   KeyPrompt
	Digests  [2]string // algorithms for hashing the decrypted image
	Command  CommandFunc
	LookPath LookPathFunc
}

func (b *BitLocker) Name() string { return "bitlocker" }

func (b *BitLocker) Available() error {
	lookPath := b.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, tool := range []string{"dislocker", "umount"} {
		if _, err := lookPath(tool); err != nil {
			return fmt.Errorf("%s not found on PATH: %w", tool, err)
		}
	}
	if b.Prompt == nil {
		return ErrNoRecoveryKey
	}
	return nil
}

func (b *BitLocker) Run(ctx context.Context, in Input) (Output, error) {
	command := b.Command
	if command == nil {
		command = ExecCommand
	}

	mount := filepath.Join(in.OutputDir, "mount")
	decrypted := filepath.Join(in.OutputDir, "decrypted.img")
	if _, err := os.Lstat(decrypted); err == nil {
		return Output{}, fmt.Errorf("%s already exists", decrypted)
	}
	if err := os.MkdirAll(mount, 0o700); err != nil {
		return Output{}, fmt.Errorf("create mount point: %w", err)
	}

	record(in.Journal, "Attempting BitLocker decryption...")
	key, err := b.Prompt(ctx)
	if err != nil {
		return Output{}, fmt.Errorf("read recovery key: %w", err)
	}
	if key == "" {
		return Output{}, ErrNoRecoveryKey
	}

	if _, err := command(ctx, nil, "dislocker", "-V", in.Image, "-p"+key, "--", mount); err != nil {
		record(in.Journal, "[!] Decryption failed. Check your recovery key or dislocker options.")
		// The key is never echoed into the error.
		return Output{}, errors.New("dislocker failed")
	}

	out, copyErr := b.copyOut(filepath.Join(mount, "dislocker-file"), decrypted, in)
	if _, err := command(context.WithoutCancel(ctx), nil, "umount", mount); err != nil {
		in.logger().Warn("unmount failed", "mount", mount, "error", err)
		if copyErr == nil {
			copyErr = fmt.Errorf("unmount %s: %w", mount, err)
		}
	}
	if copyErr != nil {
		_ = os.Remove(decrypted)
		return Output{}, copyErr
	}

	record(in.Journal, "Decryption and copy successful.")
	return out, nil
}

func (b *BitLocker) copyOut(src, dst string, in Input) (Output, error) {
	if _, err := os.Stat(src); err != nil {
		record(in.Journal, "[!] Error: 'dislocker-file' not found in mount point. Decryption likely failed.")
		return Output{}, fmt.Errorf("dislocker-file missing: %w", err)
	}
	record(in.Journal, "BitLocker volume mounted. Copying decrypted data to %s...", dst)

	r, err := os.Open(src)
	if err != nil {
		return Output{}, err
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Output{}, err
	}

	names := b.Digests
	if names[0] == "" {
		names = [2]string{digest.DefaultPrimary, digest.DefaultSecondary}
	}
	pair, err := digest.New(names[0], names[1])
	if err != nil {
		w.Close()
		return Output{}, err
	}

	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(io.MultiWriter(w, pair), r, buf); err != nil {
		w.Close()
		return Output{}, fmt.Errorf("copy decrypted volume: %w", err)
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return Output{}, err
	}
	if err := w.Close(); err != nil {
		return Output{}, err
	}

	sums := pair.Sum()
	for _, s := range sums {
		record(in.Journal, "Decrypted image %s Hash: %s", s.Algorithm, s.Hex)
	}
	return Output{Path: dst, Evidence: true, Digests: sums}, nil
}
