package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

func TestVerify_Match(t *testing.T) {
	h := newHarness(t, 3*mib+5)
	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	events := make(chan event.Event, 16)
	collector := stats.NewCollector()
	vr, err := Verify(context.Background(), VerifyConfig{
		Path:     h.dst,
		Expected: res.Digests,
		Events:   events,
		Stats:    collector,
	})
	require.NoError(t, err)
	assert.Equal(t, res.Digests, vr.Computed)
	assert.Equal(t, int64(3*mib+5), vr.Bytes)
	assert.Equal(t, int64(1), collector.Snapshot().Verified)

	got := drain(events)
	require.Len(t, got, 2)
	assert.Equal(t, event.VerifyStarted, got[0].Type)
	assert.Equal(t, event.VerifyOK, got[1].Type)
}

func TestVerify_Mismatch(t *testing.T) {
	h := newHarness(t, mib)
	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	// Tamper with a copy of the image.
	tampered := filepath.Join(t.TempDir(), "image.dd")
	data, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	data[100] ^= 0xFF
	require.NoError(t, os.WriteFile(tampered, data, 0o644))

	events := make(chan event.Event, 16)
	collector := stats.NewCollector()
	_, err = Verify(context.Background(), VerifyConfig{
		Path:     tampered,
		Expected: res.Digests,
		Events:   events,
		Stats:    collector,
	})
	require.ErrorIs(t, err, ErrVerifyMismatch)
	assert.Equal(t, int64(1), collector.Snapshot().VerifyFailed)

	got := drain(events)
	require.Len(t, got, 2)
	assert.Equal(t, event.VerifyFailed, got[1].Type)
	assert.ErrorIs(t, got[1].Error, ErrVerifyMismatch)
}

func TestVerify_MissingImage(t *testing.T) {
	h := newHarness(t, mib)
	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	_, err = Verify(context.Background(), VerifyConfig{
		Path:     filepath.Join(t.TempDir(), "gone.dd"),
		Expected: res.Digests,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVerifyMismatch)
}

func TestVerify_Canceled(t *testing.T) {
	h := newHarness(t, mib)
	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Verify(ctx, VerifyConfig{Path: h.dst, Expected: res.Digests})
	require.ErrorIs(t, err, ErrCanceled)
}
