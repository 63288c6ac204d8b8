package journal

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/engine"
)

var fixed = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func clock() time.Time { return fixed }

func TestRecordfFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf, WithClock(clock))

	require.NoError(t, j.Recordf("Source: %s (%d bytes)", "/dev/sdb", 512))
	assert.Equal(t, "[2024-03-09 14:05:07] Source: /dev/sdb (512 bytes)\n", buf.String())
}

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acquisition.log")

	j, err := Open(path, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, j.Recordf("first"))
	require.NoError(t, j.Close())

	j, err = Open(path, WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, j.Recordf("second"))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "first"))
	assert.True(t, strings.HasSuffix(lines[1], "second"))
	assert.Equal(t, path, j.Path())
}

func TestCloseIsIdempotent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "a.log"))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	// Writer-backed journals own nothing.
	require.NoError(t, New(&bytes.Buffer{}).Close())
}

func TestMirrorToLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	j := New(&bytes.Buffer{}, WithMirror(logger))

	require.NoError(t, j.Recordf("Total Bad Sectors: %d", 3))
	assert.Contains(t, logs.String(), "Total Bad Sectors: 3")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRecordfWriteError(t *testing.T) {
	j := New(failWriter{})
	err := j.Recordf("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestBadSectorLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_sectors.log")
	l, err := OpenBadSectorLog(path, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, l.RecordBadSector(engine.BadSector{
		Offset: 4096,
		Length: 1 << 20,
		Err:    errors.New("input/output error"),
	}))
	require.NoError(t, l.RecordBadSector(engine.BadSector{Offset: 8192, Length: 512}))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-03-09 14:05:07] Read error (bad sector) at offset: 4096 (length 1048576). Error: input/output error\n"+
			"[2024-03-09 14:05:07] Read error (bad sector) at offset: 8192 (length 512). Error: unknown read error\n",
		string(data))
	assert.Equal(t, path, l.Path())
}
