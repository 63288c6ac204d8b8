package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/digest"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/event"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/source"
	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/stats"
)

const mib = 1 << 20

// faultMedium serves data from memory and fails any read that touches a
// fault span, the way a device returns EIO for unreadable sectors.
type faultMedium struct {
	data    []byte
	pos     int64
	faults  [][2]int64 // [start, end)
	seekErr error
	onRead  func()

	mu     sync.Mutex
	closed bool
	reads  int
}

func (m *faultMedium) Read(p []byte) (int, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()
	if m.onRead != nil {
		m.onRead()
	}
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	end := min(m.pos+int64(len(p)), int64(len(m.data)))
	for _, f := range m.faults {
		if m.pos < f[1] && f[0] < end {
			return 0, syscall.EIO
		}
	}
	n := copy(p, m.data[m.pos:end])
	m.pos += int64(n)
	return n, nil
}

func (m *faultMedium) Seek(offset int64, whence int) (int64, error) {
	if m.seekErr != nil {
		return 0, m.seekErr
	}
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.data)) + offset
	}
	return m.pos, nil
}

func (m *faultMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *faultMedium) opener() Opener {
	return func(string) (Medium, error) { return m, nil }
}

type fakeGuard struct {
	protection source.Protection
	err        error
	releaseErr error
	acquired   int
	released   int
}

func (g *fakeGuard) Acquire() (source.Protection, error) {
	g.acquired++
	return g.protection, g.err
}

func (g *fakeGuard) Release() error {
	g.released++
	return g.releaseErr
}

type recordingJournal struct {
	lines []string
}

func (j *recordingJournal) Recordf(format string, args ...any) error {
	j.lines = append(j.lines, fmt.Sprintf(format, args...))
	return nil
}

type recordingSink struct {
	records []BadSector
	flushed int
}

func (s *recordingSink) RecordBadSector(b BadSector) error {
	s.records = append(s.records, b)
	return nil
}

func (s *recordingSink) Flush() error {
	s.flushed++
	return nil
}

func payload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.img")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func sums(t *testing.T, data []byte) [2]digest.Sum {
	t.Helper()
	p, err := digest.New(digest.DefaultPrimary, digest.DefaultSecondary)
	require.NoError(t, err)
	p.Write(data) //nolint:errcheck
	return p.Sum()
}

func drain(ch chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func ofType(events []event.Event, typ event.Type) []event.Event {
	var out []event.Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// assertOnlyFiles checks dir holds exactly the named entries, so no
// partial image was left behind.
func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, names, got)
}

type harness struct {
	data    []byte
	src     string
	outDir  string
	dst     string
	medium  *faultMedium
	guard   *fakeGuard
	journal *recordingJournal
	sink    *recordingSink
	events  chan event.Event
	stats   *stats.Collector
}

func newHarness(t *testing.T, size int) *harness {
	t.Helper()
	data := payload(size)
	out := t.TempDir()
	return &harness{
		data:    data,
		src:     writeSource(t, data),
		outDir:  out,
		dst:     filepath.Join(out, "image.dd"),
		medium:  &faultMedium{data: data},
		guard:   &fakeGuard{},
		journal: &recordingJournal{},
		sink:    &recordingSink{},
		events:  make(chan event.Event, 1024),
		stats:   stats.NewCollector(),
	}
}

func (h *harness) config() Config {
	return Config{
		Source:      h.src,
		Destination: h.dst,
		ChunkSize:   mib,
		Guard:       h.guard,
		Open:        h.medium.opener(),
		Events:      h.events,
		Stats:       h.stats,
		Journal:     h.journal,
		BadSectors:  h.sink,
	}
}

func TestAcquire_FaultFree(t *testing.T) {
	h := newHarness(t, 10*mib)

	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	got, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	assert.Equal(t, h.data, got)

	assert.Equal(t, sums(t, h.data), res.Digests)
	assert.Equal(t, int64(10*mib), res.BytesWritten)
	assert.Zero(t, res.BadSectors)
	assert.Zero(t, res.ZeroFilled)
	assert.Equal(t, source.KindFile, res.SourceKind)
	assert.Equal(t, mib, res.ChunkSize)

	events := drain(h.events)
	progress := ofType(events, event.Progress)
	require.Len(t, progress, 10)
	assert.InDelta(t, 100.0, progress[9].Percent, 0.001)
	assert.Zero(t, progress[9].BadSectors)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i].Size, progress[i-1].Size)
	}

	assert.Equal(t, event.AcquireStarted, events[0].Type)
	assert.Equal(t, event.AcquireCompleted, events[len(events)-1].Type)

	assert.True(t, h.medium.closed)
	assert.Equal(t, 1, h.guard.acquired)
	assert.Equal(t, 1, h.guard.released)
	assertOnlyFiles(t, h.outDir, "image.dd")

	snap := h.stats.Snapshot()
	assert.Equal(t, int64(10*mib), snap.BytesProcessed)
	assert.Equal(t, int64(10*mib), snap.BytesTotal)
}

func TestAcquire_BadSectorZeroFill(t *testing.T) {
	h := newHarness(t, 10*mib)
	const faultAt = 5242880
	h.medium.faults = [][2]int64{{faultAt, faultAt + 512}}

	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.BadSectors)
	assert.Equal(t, int64(mib), res.ZeroFilled)

	got, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	require.Len(t, got, 10485760)
	assert.Equal(t, make([]byte, mib), got[faultAt:6291456])
	assert.Equal(t, h.data[:faultAt], got[:faultAt])
	assert.Equal(t, h.data[6291456:], got[6291456:])

	assert.Equal(t, sums(t, got), res.Digests)
	assert.NotEqual(t, sums(t, h.data), res.Digests)

	require.Len(t, h.sink.records, 1)
	assert.Equal(t, int64(faultAt), h.sink.records[0].Offset)
	assert.Equal(t, int64(mib), h.sink.records[0].Length)
	assert.ErrorIs(t, h.sink.records[0].Err, syscall.EIO)
	assert.Equal(t, 1, h.sink.flushed)

	events := drain(h.events)
	bad := ofType(events, event.BadSector)
	require.Len(t, bad, 1)
	assert.Equal(t, int64(faultAt), bad[0].Offset)
	progress := ofType(events, event.Progress)
	require.Len(t, progress, 10)
	assert.Equal(t, int64(1), progress[9].BadSectors)

	assert.Equal(t, int64(1), h.stats.Snapshot().BadSectors)
	assert.Equal(t, int64(mib), h.stats.Snapshot().BytesZeroFilled)
}

func TestAcquire_ZeroLengthSource(t *testing.T) {
	h := newHarness(t, 0)
	opened := false
	cfg := h.config()
	cfg.Open = func(string) (Medium, error) {
		opened = true
		return h.medium, nil
	}

	_, err := Acquire(context.Background(), cfg)
	require.ErrorIs(t, err, ErrSizeUndetermined)

	assert.False(t, opened)
	assert.Zero(t, h.guard.acquired)
	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Contains(t, h.journal.lines, "Error: Source size is 0 or could not be determined. Aborting.")

	events := drain(h.events)
	require.NotEmpty(t, events)
	assert.Equal(t, event.AcquireAborted, events[len(events)-1].Type)
	assert.Empty(t, ofType(events, event.AcquireStarted))
}

func TestAcquire_FaultInShortFinalChunk(t *testing.T) {
	const size = 10000
	h := newHarness(t, size)
	h.medium.faults = [][2]int64{{9000, 9001}}
	cfg := h.config()
	cfg.ChunkSize = 4096

	res, err := Acquire(context.Background(), cfg)
	require.NoError(t, err)

	got, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	require.Len(t, got, size)
	assert.Equal(t, h.data[:8192], got[:8192])
	assert.Equal(t, make([]byte, size-8192), got[8192:])
	assert.Equal(t, int64(size-8192), res.ZeroFilled)
	require.Len(t, h.sink.records, 1)
	assert.Equal(t, int64(size-8192), h.sink.records[0].Length)
}

func TestAcquire_ConsecutiveFaults(t *testing.T) {
	h := newHarness(t, 8*4096)
	h.medium.faults = [][2]int64{{4096, 3 * 4096}}
	cfg := h.config()
	cfg.ChunkSize = 4096

	res, err := Acquire(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.BadSectors)

	got, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 2*4096), got[4096:3*4096])
	assert.Equal(t, h.data[3*4096:], got[3*4096:])
}

func TestAcquire_SkipFailure(t *testing.T) {
	h := newHarness(t, 4*mib)
	h.medium.faults = [][2]int64{{2 * mib, 2*mib + 1}}
	h.medium.seekErr = errors.New("seek: invalid argument")

	_, err := Acquire(context.Background(), h.config())
	require.ErrorIs(t, err, ErrSkipFailure)

	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Equal(t, 1, h.guard.released)
	assert.True(t, h.medium.closed)
	assert.Equal(t, 1, h.sink.flushed)
}

func TestAcquire_PrematureEnd(t *testing.T) {
	h := newHarness(t, 4*mib)
	// The medium yields less than the sized length.
	h.medium.data = h.data[:3*mib+100]

	_, err := Acquire(context.Background(), h.config())
	require.ErrorIs(t, err, ErrPrematureEnd)
	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Equal(t, 1, h.guard.released)
}

func TestAcquire_DestinationExists(t *testing.T) {
	h := newHarness(t, mib)
	require.NoError(t, os.WriteFile(h.dst, []byte("prior evidence"), 0o644))

	_, err := Acquire(context.Background(), h.config())
	require.ErrorIs(t, err, ErrDestinationExists)

	got, err := os.ReadFile(h.dst)
	require.NoError(t, err)
	assert.Equal(t, "prior evidence", string(got))
	assert.Zero(t, h.medium.reads)
	assert.Zero(t, h.guard.acquired)
}

func TestAcquire_DestinationUnwritable(t *testing.T) {
	h := newHarness(t, mib)
	blocker := filepath.Join(h.outDir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg := h.config()
	cfg.Destination = filepath.Join(blocker, "image.dd")

	_, err := Acquire(context.Background(), cfg)
	require.ErrorIs(t, err, ErrDestinationWrite)
	assert.Zero(t, h.guard.acquired)
	assert.Zero(t, h.medium.reads)
}

func TestAcquire_DestinationWriteFailsMidRun(t *testing.T) {
	h := newHarness(t, 4*mib)

	var dst *os.File
	orig := openPartial
	openPartial = func(path string) (*os.File, error) {
		f, err := orig(path)
		dst = f
		return f, err
	}
	t.Cleanup(func() { openPartial = orig })

	// Two chunks reach the image, then the descriptor goes away under the
	// engine the way a full or yanked disk would fail the next write.
	h.medium.onRead = func() {
		if h.medium.reads == 3 {
			require.NoError(t, dst.Close())
		}
	}

	res, err := Acquire(context.Background(), h.config())
	require.ErrorIs(t, err, ErrDestinationWrite)
	require.ErrorIs(t, err, os.ErrClosed)
	assert.Contains(t, err.Error(), fmt.Sprintf("offset %d", 2*mib))
	assert.Equal(t, Result{}, res)

	assert.Equal(t, 3, h.medium.reads)
	assert.Equal(t, int64(2*mib), h.stats.Snapshot().BytesProcessed)
	assert.Equal(t, 1, h.guard.released)
	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Zero(t, SweepPartials(nil), "aborted partial is deregistered")
}

func TestAcquire_SourceOpenFailure(t *testing.T) {
	h := newHarness(t, mib)
	cfg := h.config()
	cfg.Open = func(string) (Medium, error) { return nil, os.ErrPermission }

	_, err := Acquire(context.Background(), cfg)
	require.ErrorIs(t, err, ErrSourceOpen)
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, h.guard.released)
	assertOnlyFiles(t, h.outDir)
}

func TestAcquire_GuardRefused(t *testing.T) {
	h := newHarness(t, mib)
	h.guard.err = fmt.Errorf("%w: %w", source.ErrWriteBlockRefused, source.ErrWriteBlock)

	_, err := Acquire(context.Background(), h.config())
	require.ErrorIs(t, err, source.ErrWriteBlockRefused)
	assert.Zero(t, h.medium.reads)
	assert.Zero(t, h.guard.released)
	assertOnlyFiles(t, h.outDir)

	events := drain(h.events)
	assert.Len(t, ofType(events, event.WriteBlockFailed), 1)
}

func TestAcquire_GuardAppliedAndReleased(t *testing.T) {
	h := newHarness(t, mib)
	h.guard.protection = source.Applied

	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)
	assert.Equal(t, source.Applied, res.Protection)
	assert.Equal(t, 1, h.guard.released)

	events := drain(h.events)
	assert.Len(t, ofType(events, event.WriteBlockApplied), 1)
	assert.Len(t, ofType(events, event.WriteBlockReleased), 1)
	assert.Contains(t, h.journal.lines, "Software write-block applied on "+h.src+".")
}

func TestAcquire_GuardReleaseFailureKeepsResult(t *testing.T) {
	h := newHarness(t, mib)
	h.guard.protection = source.Applied
	h.guard.releaseErr = errors.New("BLKROSET: operation not permitted")

	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)
	assert.Equal(t, int64(mib), res.BytesWritten)
	assert.FileExists(t, h.dst)
}

func TestAcquire_Canceled(t *testing.T) {
	h := newHarness(t, 8*mib)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.medium.onRead = func() {
		if h.medium.pos >= 2*mib {
			cancel()
		}
	}

	_, err := Acquire(ctx, h.config())
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Equal(t, 1, h.guard.released)
}

func TestAcquire_JournalTrail(t *testing.T) {
	h := newHarness(t, 2*mib)
	h.medium.faults = [][2]int64{{0, 1}}

	res, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	lines := h.journal.lines
	require.NotEmpty(t, lines)
	assert.Equal(t, "Acquisition process started.", lines[0])
	assert.Contains(t, lines, fmt.Sprintf("Source: %s (%d bytes)", h.src, 2*mib))
	assert.Contains(t, lines, "Destination (RAW): "+h.dst)
	assert.Contains(t, lines, "MD5 Hash: "+res.Digests[0].Hex)
	assert.Contains(t, lines, "SHA256 Hash: "+res.Digests[1].Hex)
	assert.Contains(t, lines, "Total Bad Sectors: 1")
	assert.Contains(t, lines, "[!] Read error (bad sector) at offset: 0. Error: input/output error")
}

func TestAcquire_CustomDigests(t *testing.T) {
	h := newHarness(t, mib)
	cfg := h.config()
	cfg.Digests = [2]string{"sha1", "blake3"}

	res, err := Acquire(context.Background(), cfg)
	require.NoError(t, err)

	want, err := digest.File(h.dst, "sha1", "blake3")
	require.NoError(t, err)
	assert.Equal(t, want, res.Digests)
}

func TestAcquire_UnknownDigest(t *testing.T) {
	h := newHarness(t, mib)
	cfg := h.config()
	cfg.Digests = [2]string{"md5", "crc32"}

	_, err := Acquire(context.Background(), cfg)
	require.ErrorIs(t, err, digest.ErrUnknownAlgorithm)
	assert.Zero(t, h.guard.acquired)
}

func TestAcquire_PublishedImageReadOnly(t *testing.T) {
	h := newHarness(t, mib)

	_, err := Acquire(context.Background(), h.config())
	require.NoError(t, err)

	info, err := os.Stat(h.dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())
}

func TestAcquire_RealFileSource(t *testing.T) {
	data := payload(3*mib + 17)
	src := writeSource(t, data)
	dst := filepath.Join(t.TempDir(), "out", "image.dd")

	res, err := Acquire(context.Background(), Config{Source: src, Destination: dst})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, sums(t, data), res.Digests)
	assert.Equal(t, source.NotApplicable, res.Protection)
}

func TestAcquire_BandwidthLimited(t *testing.T) {
	h := newHarness(t, 64*1024)
	cfg := h.config()
	cfg.ChunkSize = 16 * 1024
	cfg.BWLimit = 64 * mib

	res, err := Acquire(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, sums(t, h.data), res.Digests)
}

func TestAcquire_BandwidthDeadline(t *testing.T) {
	h := newHarness(t, 256*1024)
	cfg := h.config()
	cfg.ChunkSize = 64 * 1024
	cfg.BWLimit = 16 * 1024
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Acquire(ctx, cfg)
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, errThrottled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, h.sink.records, "a refused wait is not a bad sector")
	assert.Zero(t, h.medium.reads, "source untouched when the first wait is refused")
	assert.NoFileExists(t, h.dst)
	assertOnlyFiles(t, h.outDir)
	assert.Equal(t, 1, h.guard.released)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "COMPLETED", StateCompleted.String())
	assert.Equal(t, "ABORTED", StateAborted.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestEmitEventNeverBlocks(t *testing.T) {
	ch := make(chan event.Event) // unbuffered, no reader
	emitEvent(ch, event.Event{Type: event.Progress}, time.Time{})
	emitEvent(nil, event.Event{Type: event.Progress}, time.Time{})
}
