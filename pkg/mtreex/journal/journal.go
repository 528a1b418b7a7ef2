package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

var logger = logging.Get("journal")

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("journal entry not found")

// Journal manages run history on the filesystem.
type Journal struct {
	dir string
	mu  sync.Mutex
}

// New creates a new Journal with the given directory.
// The directory is not created until EnsureDir is called.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal directory cannot be empty")
	}
	return &Journal{dir: dir}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// EnsureDir creates the journal directory if it does not exist.
func (j *Journal) EnsureDir() error {
	return os.MkdirAll(j.dir, 0o755)
}

// Record stamps e with an ID and timestamp, persists it, and returns it.
// Findings beyond the first 100 are dropped; Summary.Problems keeps the
// full count.
func (j *Journal) Record(e Entry) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	e.Timestamp = time.Now().UTC()
	e.ID = generateID(e.Operation, e.Timestamp)
	if len(e.Findings) > maxFindings {
		e.Findings = e.Findings[:maxFindings]
	}

	if err := j.writeEntry(&e); err != nil {
		return nil, fmt.Errorf("failed to write journal entry: %w", err)
	}

	logger.Debug("journal entry recorded", "id", e.ID, "operation", e.Operation)
	return &e, nil
}

// writeEntry writes an entry to a JSON file in the journal directory.
func (j *Journal) writeEntry(entry *Entry) error {
	filePath := filepath.Join(j.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Write atomically using a temp file and rename
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Query selects journal entries. Zero fields match everything.
type Query struct {
	Operation Operation
	Since     time.Time
	Limit     int
}

func (q Query) match(e Entry) bool {
	return (q.Operation == "" || e.Operation == q.Operation) &&
		(q.Since.IsZero() || !e.Timestamp.Before(q.Since))
}

// List returns entries sorted newest first. If limit is 0 or negative, all
// entries are returned. Files that cannot be parsed are skipped.
func (j *Journal) List(limit int) ([]Entry, error) {
	return j.Select(Query{Limit: limit})
}

// Select returns the entries matching q, newest first.
func (j *Journal) Select(q Query) ([]Entry, error) {
	j.mu.Lock()
	entries, err := j.readAll()
	j.mu.Unlock()
	if err != nil {
		return nil, err
	}

	entries = lo.Filter(entries, func(e Entry, _ int) bool { return q.match(e) })
	slices.SortStableFunc(entries, func(a, b Entry) int { return b.Timestamp.Compare(a.Timestamp) })

	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries, nil
}

// Get retrieves a specific entry by ID. A unique ID prefix is accepted.
func (j *Journal) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
		if strings.HasPrefix(entries[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous entry ID prefix: %s", id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed. A non-positive retention keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read journal directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		stamp, ok := j.entryTime(f)
		if !ok || !stamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, f.Name())); err != nil {
			logger.Warn("failed to remove journal entry", "file", f.Name(), "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

// entryTime returns the recorded timestamp of an entry file, falling back
// to the file's modification time when it cannot be parsed.
func (j *Journal) entryTime(f os.DirEntry) (time.Time, bool) {
	if e, err := j.readEntryFile(f.Name()); err == nil {
		return e.Timestamp, true
	}
	info, err := f.Info()
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (j *Journal) readAll() ([]Entry, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := j.readEntryFile(f.Name())
		if err != nil {
			logger.Debug("skipping unreadable journal file", "file", f.Name(), "error", err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// readEntryFile reads and parses a journal entry from a JSON file.
func (j *Journal) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &entry, nil
}

// generateID creates a unique ID like "verify-2024-06-15T10-30-00-1b4e28ba".
func generateID(op Operation, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, ts.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
