package errlog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(day string) func() time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestRecordCreatesDatedPartition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log, err := NewWithClock(dir, fixedClock("2026-08-28"))
	require.NoError(t, err)

	require.NoError(t, log.Record("https://example.com/p/1", []string{"Home", "Pain"}, "missing title"))

	_, err = os.Stat(filepath.Join(dir, "log_error_2026-08-28.json"))
	require.NoError(t, err)

	entries, path, err := log.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "log_error_2026-08-28.json"), path)
	require.Len(t, entries, 1)
	require.Equal(t, "https://example.com/p/1", entries[0].URL)
	require.Equal(t, []string{"Home", "Pain"}, entries[0].Breadcrumbs)
	require.Equal(t, "missing title", entries[0].Error)
}

func TestRecordAppendsToExistingPartition(t *testing.T) {
	t.Parallel()

	log, err := NewWithClock(t.TempDir(), fixedClock("2026-08-28"))
	require.NoError(t, err)

	require.NoError(t, log.Record("https://example.com/p/1", nil, "first"))
	require.NoError(t, log.Record("https://example.com/p/2", nil, "second"))

	entries, _, err := log.ReadLatest()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "first", entries[0].Error)
	require.Equal(t, "second", entries[1].Error)
}

func TestReadLatestPicksNewestPartition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	old, err := NewWithClock(dir, fixedClock("2026-08-27"))
	require.NoError(t, err)
	require.NoError(t, old.Record("https://example.com/old", nil, "stale"))

	fresh, err := NewWithClock(dir, fixedClock("2026-08-28"))
	require.NoError(t, err)
	require.NoError(t, fresh.Record("https://example.com/new", nil, "fresh"))

	entries, path, err := fresh.ReadLatest()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "log_error_2026-08-28.json"), path)
	require.Len(t, entries, 1)
	require.Equal(t, "https://example.com/new", entries[0].URL)
}

func TestReadLatestEmptyDir(t *testing.T) {
	t.Parallel()

	log, err := New(t.TempDir())
	require.NoError(t, err)

	entries, path, err := log.ReadLatest()
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Empty(t, path)
}

func TestConcurrentRecordsLoseNothing(t *testing.T) {
	t.Parallel()

	log, err := NewWithClock(t.TempDir(), fixedClock("2026-08-28"))
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, log.Record("https://example.com/p", nil, "boom"))
		}()
	}
	wg.Wait()

	entries, _, err := log.ReadLatest()
	require.NoError(t, err)
	require.Len(t, entries, writers)
}

func TestCorruptPartitionIsRestarted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "log_error_2026-08-28.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	log, err := NewWithClock(dir, fixedClock("2026-08-28"))
	require.NoError(t, err)
	require.NoError(t, log.Record("https://example.com/p/1", nil, "after corruption"))

	entries, _, err := log.ReadLatest()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "after corruption", entries[0].Error)
}
