// Package watch notifies callers when manifest files change on disk.
//
// Editors commonly save by writing a temporary file and renaming it over
// the original, which replaces the inode a direct file watch would follow.
// The watcher therefore watches each file's parent directory and filters
// events by name.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

// DefaultDebounce is how long a file must be quiet before its change is
// reported.
const DefaultDebounce = 200 * time.Millisecond

// ErrClosed is returned when adding files to a closed watcher.
var ErrClosed = errors.New("watcher closed")

var logger = logging.Get("watcher")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// Watcher reports debounced changes to a set of files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	files  map[string]bool // absolute file paths
	dirs   map[string]int  // watched directory -> number of files in it
	timers map[string]*time.Timer
	closed bool

	fired chan string
}

// New creates a new Watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		fired:    make(chan string, 16),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add starts watching a file. The file must exist and must not be a
// directory.
func (w *Watcher) Add(file string) error {
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", file)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.files[abs] {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			logger.Warn("failed to add watch", "path", dir, "error", err)
			return err
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	logger.Debug("watching file", "path", abs)
	return nil
}

// Remove stops watching a file.
func (w *Watcher) Remove(file string) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.files[abs] {
		return
	}
	delete(w.files, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		_ = w.watcher.Remove(dir)
	}
}

// Files returns the watched files.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	return files
}

// Run starts the event loop. It blocks until the context is cancelled or
// the watcher is closed. onChange is called from Run's goroutine, once per
// burst of writes to a watched file, with the file's absolute path.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case path := <-w.fired:
			if !w.isWatched(path) {
				continue
			}
			if _, err := os.Stat(path); err != nil {
				logger.Debug("changed file is gone", "path", path, "error", err)
				continue
			}
			if onChange != nil {
				onChange(path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent schedules a report for events that may have changed a
// watched file's contents. A rename onto the file arrives as Create.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			logger.Debug("watched file moved away", "path", event.Name)
		}
		return
	}

	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || !w.files[path] {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.fired <- path:
		default:
			logger.Warn("change dropped, event loop busy", "path", path)
		}
	})
}

func (w *Watcher) isWatched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed && w.files[path]
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.files = make(map[string]bool)
	w.dirs = make(map[string]int)
	return w.watcher.Close()
}
