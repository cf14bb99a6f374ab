// Package errlog keeps a durable, date-partitioned record of failed items.
//
// One JSON file exists per UTC day. Writes are read-modify-write over the
// whole partition under a mutex, so concurrent workers never interleave
// partial writes; the replay pass reads a full partition with the same
// exclusion guarantee.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry is one failed item with enough context to replay it.
type Entry struct {
	URL         string   `json:"url"`
	Breadcrumbs []string `json:"breadcrumbs"`
	Error       string   `json:"error"`
}

// Log appends entries to the current day's partition.
type Log struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// New creates a Log rooted at dir, creating the directory if needed.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create error log dir %s: %w", dir, err)
	}
	return &Log{dir: dir, now: time.Now}, nil
}

// NewWithClock creates a Log with an injected clock (for testing).
func NewWithClock(dir string, now func() time.Time) (*Log, error) {
	l, err := New(dir)
	if err != nil {
		return nil, err
	}
	l.now = now
	return l, nil
}

// Record appends one entry to today's partition. The whole partition is
// read, extended and rewritten under the lock; a torn write can therefore
// never corrupt previously logged entries.
func (l *Log) Record(url string, breadcrumbs []string, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.partitionPath(l.now().UTC())
	entries, err := readPartition(path)
	if err != nil {
		return err
	}

	entries = append(entries, Entry{
		URL:         url,
		Breadcrumbs: breadcrumbs,
		Error:       reason,
	})
	return writePartition(path, entries)
}

// ReadLatest returns the entries of the most recent partition, or an empty
// slice when no partition exists yet.
func (l *Log) ReadLatest() ([]Entry, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := l.partitions()
	if err != nil {
		return nil, "", err
	}
	if len(names) == 0 {
		return nil, "", nil
	}

	// Partition names embed the date, so lexicographic order is
	// chronological.
	latest := names[len(names)-1]
	path := filepath.Join(l.dir, latest)
	entries, err := readPartition(path)
	if err != nil {
		return nil, "", err
	}
	return entries, path, nil
}

func (l *Log) partitions() ([]string, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read error log dir %s: %w", l.dir, err)
	}
	var names []string
	for _, e := range dirEntries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "log_error_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Log) partitionPath(day time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("log_error_%s.json", day.Format("2006-01-02")))
}

func readPartition(path string) ([]Entry, error) {
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read error log %s: %w", path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		// A corrupt partition is unrecoverable context, not a reason to
		// stop logging new failures; start the partition over.
		return nil, nil
	}
	return entries, nil
}

func writePartition(path string, entries []Entry) error {
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal error log: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write error log %s: %w", path, err)
	}
	return nil
}
