package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openForCorruption(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0o644)
}

func openTestLog(t *testing.T, compress bool) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := Open(path, 1, compress)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestAppendIterRoundTrips(t *testing.T) {
	l, _ := openTestLog(t, false)

	idx0, err := l.Append([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx0)
	_, err = l.Append([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, l.Flush())

	records, err := l.Iter()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", string(records[0]))
	assert.Equal(t, "second", string(records[1]))
	assert.Equal(t, 2, l.Len())
}

func TestAppendIterRoundTripsCompressed(t *testing.T) {
	l, _ := openTestLog(t, true)

	payload := []byte("a reasonably compressible payload payload payload")
	_, err := l.Append(payload)
	require.NoError(t, err)

	records, err := l.Iter()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, payload, records[0])
}

func TestTruncateDropsTrailingRecords(t *testing.T) {
	l, _ := openTestLog(t, false)
	_, _ = l.Append([]byte("a"))
	_, _ = l.Append([]byte("b"))
	_, _ = l.Append([]byte("c"))

	require.NoError(t, l.Truncate(1))

	records, err := l.Iter()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", string(records[0]))
}

func TestRestartResetsSequenceAndDiscardsRecords(t *testing.T) {
	l, _ := openTestLog(t, false)
	_, _ = l.Append([]byte("a"))

	require.NoError(t, l.Restart(9))

	assert.Equal(t, uint64(9), l.Sequence())
	assert.Equal(t, 0, l.Len())
	records, err := l.Iter()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReopenPreservesRecordsWithMatchingSequence(t *testing.T) {
	l, path := openTestLog(t, false)
	_, _ = l.Append([]byte("a"))
	_, _ = l.Append([]byte("b"))
	require.NoError(t, l.Flush())
	require.NoError(t, l.Close())

	reopened, err := Open(path, 1, false)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(1), reopened.Sequence())
	records, err := reopened.Iter()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", string(records[1]))
}

func TestOpenTwiceFromSameProcessReportsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := Open(path, 1, false)
	require.NoError(t, err)
	defer l.Close()

	_, err = Open(path, 1, false)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestScanAndRepairTruncatesCorruptedSuffix(t *testing.T) {
	l, path := openTestLog(t, false)
	_, _ = l.Append([]byte("good"))
	require.NoError(t, l.Flush())

	// Append a record whose payload is shorter than its declared length,
	// simulating a crash mid-write.
	goodSize, err := l.SizeBytes()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	f, err := openForCorruption(path)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0, 0, 0, 0, 0, 0, 0, 0, 100, 0, 0, 0, 0}, goodSize)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path, 1, false)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Iter()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", string(records[0]))
}
