package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// backupStamp is the timestamp embedded in rotated file names, so
// mtreex.log rotates to mtreex-20260118T150405.123.log (.log.gz when
// compressed).
const backupStamp = "20060102T150405.000"

const gzExt = ".gz"

// RotationConfig controls when the log file is rotated and how many
// rotated files are kept.
type RotationConfig struct {
	// MaxSize rotates the file before a write would take it past this
	// many bytes. Zero uses the default.
	MaxSize int64

	// MaxAge removes rotated files older than this many days. Zero keeps
	// them regardless of age.
	MaxAge int

	// MaxBackups caps the number of rotated files. Zero means no cap.
	MaxBackups int

	// Daily also rotates on the first write of a new local day.
	Daily bool

	// Compress gzips each file as it is rotated.
	Compress bool
}

// DefaultRotationConfig returns the rotation settings used when the config
// file leaves them unset.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 << 20,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
		Compress:   true,
	}
}

// RotatingWriter is an io.WriteCloser over a log file that rotates by size
// and by day. Writes hold an flock so several mtreex processes can share
// one log file.
type RotatingWriter struct {
	mu   sync.Mutex
	path string
	cfg  RotationConfig
	file *os.File
	size int64
	day  string
	now  func() time.Time
}

// backup is a rotated log file and the time encoded in its name.
type backup struct {
	path  string
	stamp time.Time
}

// NewRotatingWriter opens path for appending, creating its directory, and
// prunes rotated files beyond the configured limits.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg, now: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rotating first when p would overflow MaxSize or the
// day has changed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.due(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := unix.Flock(int(w.file.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = unix.Flock(int(w.file.Fd()), unix.LOCK_UN) }()

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

// Rotate moves the current file aside and starts a new one.
func (w *RotatingWriter) Rotate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return os.ErrClosed
	}
	return w.rotate()
}

// Close syncs and closes the file. Closing twice is a no-op.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	return errors.Join(f.Sync(), f.Close())
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat log file: %w", err), f.Close())
	}

	w.file = f
	w.size = info.Size()
	w.day = dayOf(info.ModTime())
	if w.size == 0 {
		w.day = dayOf(w.now())
	}
	return nil
}

func (w *RotatingWriter) due(n int64) bool {
	if w.size > 0 && w.size+n > w.cfg.MaxSize {
		return true
	}
	return w.cfg.Daily && w.size > 0 && dayOf(w.now()) != w.day
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	w.file = nil

	target := w.backupPath(w.now())
	if err := os.Rename(w.path, target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}

	if w.cfg.Compress {
		if err := gzipFile(target); err != nil {
			// The uncompressed backup is still counted by prune.
			fmt.Fprintf(os.Stderr, "mtreex: compressing %s: %v\n", target, err)
		}
	}
	w.prune()
	return nil
}

// backupPath names the rotated file for time t, moving forward a
// millisecond at a time past names already taken.
func (w *RotatingWriter) backupPath(t time.Time) string {
	stem, ext := splitLogName(w.path)
	for {
		p := fmt.Sprintf("%s-%s%s", stem, t.Format(backupStamp), ext)
		if !exists(p) && !exists(p+gzExt) {
			return p
		}
		t = t.Add(time.Millisecond)
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// backups lists rotated files of this log, newest first.
func (w *RotatingWriter) backups() ([]backup, error) {
	dir := filepath.Dir(w.path)
	stem, ext := splitLogName(filepath.Base(w.path))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stamp, ok := parseBackupName(e.Name(), stem, ext)
		if !ok {
			continue
		}
		out = append(out, backup{path: filepath.Join(dir, e.Name()), stamp: stamp})
	}
	slices.SortFunc(out, func(a, b backup) int { return b.stamp.Compare(a.stamp) })
	return out, nil
}

func (w *RotatingWriter) prune() {
	list, err := w.backups()
	if err != nil {
		return
	}
	for _, b := range expired(list, w.cfg, w.now()) {
		_ = os.Remove(b.path)
	}
}

// expired picks the backups to delete from list, which is sorted newest
// first.
func expired(list []backup, cfg RotationConfig, now time.Time) []backup {
	var out []backup
	cutoff := now.Add(-time.Duration(cfg.MaxAge) * 24 * time.Hour)
	for i, b := range list {
		overCount := cfg.MaxBackups > 0 && i >= cfg.MaxBackups
		tooOld := cfg.MaxAge > 0 && b.stamp.Before(cutoff)
		if overCount || tooOld {
			out = append(out, b)
		}
	}
	return out
}

// parseBackupName reports whether name is a rotated file of stem+ext and
// returns the time in its name.
func parseBackupName(name, stem, ext string) (time.Time, bool) {
	name = strings.TrimSuffix(name, gzExt)
	if !strings.HasPrefix(name, stem+"-") || !strings.HasSuffix(name, ext) {
		return time.Time{}, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, stem+"-"), ext)
	t, err := time.ParseInLocation(backupStamp, mid, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// splitLogName splits "dir/mtreex.log" into "dir/mtreex" and ".log".
func splitLogName(path string) (string, string) {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext), ext
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) (err error) {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp := path + gzExt + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(path)
	if _, err = io.Copy(zw, src); err != nil {
		return errors.Join(err, zw.Close(), dst.Close())
	}
	if err = errors.Join(zw.Close(), dst.Close()); err != nil {
		return err
	}
	if err = os.Rename(tmp, path+gzExt); err != nil {
		return err
	}
	return os.Remove(path)
}

func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}
