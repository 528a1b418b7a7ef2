package logging_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

// rotated returns the names of rotated files next to logPath.
func rotated(t *testing.T, logPath string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Dir(logPath))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	stem := strings.TrimSuffix(filepath.Base(logPath), filepath.Ext(logPath))
	var names []string
	for _, e := range entries {
		if e.Name() != filepath.Base(logPath) && strings.HasPrefix(e.Name(), stem+"-") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := logging.DefaultRotationConfig()
	if cfg.MaxSize != 10<<20 {
		t.Errorf("MaxSize = %d, want %d", cfg.MaxSize, 10<<20)
	}
	if cfg.MaxAge != 30 || cfg.MaxBackups != 5 {
		t.Errorf("MaxAge, MaxBackups = %d, %d, want 30, 5", cfg.MaxAge, cfg.MaxBackups)
	}
	if !cfg.Daily || !cfg.Compress {
		t.Errorf("Daily, Compress = %v, %v, want true, true", cfg.Daily, cfg.Compress)
	}
}

func TestRotatingWriterRotatesBySize(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "scan.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{MaxSize: 100})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	line := []byte(strings.Repeat("a", 39) + "\n")
	for range 5 {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// 40-byte lines into 100-byte files: two per file, three files.
	names := rotated(t, logPath)
	if len(names) != 2 {
		t.Fatalf("rotated files = %v, want 2", names)
	}
	for _, name := range names {
		if !strings.HasSuffix(name, ".log") {
			t.Errorf("rotated file %q is not a plain .log", name)
		}
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 40 {
		t.Errorf("current log size = %d, want 40", info.Size())
	}
}

func TestRotatingWriterOversizedWrite(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "big.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{MaxSize: 10})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	// A single write larger than MaxSize still lands in an empty file.
	if _, err := w.Write([]byte(strings.Repeat("z", 64))); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if names := rotated(t, logPath); len(names) != 0 {
		t.Errorf("rotated files = %v, want none", names)
	}
}

func TestRotatingWriterMaxBackups(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "verify.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{MaxSize: 1 << 20, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	for range 6 {
		if _, err := w.Write([]byte("entry\n")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if err := w.Rotate(); err != nil {
			t.Fatalf("Rotate() error = %v", err)
		}
	}

	if names := rotated(t, logPath); len(names) != 2 {
		t.Errorf("rotated files = %v, want 2", names)
	}
}

func TestRotatingWriterCompress(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "mtreex.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{Compress: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	want := "parser warning line 12\n"
	if _, err := w.Write([]byte(want)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Rotate(); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	names := rotated(t, logPath)
	if len(names) != 1 || !strings.HasSuffix(names[0], ".log.gz") {
		t.Fatalf("rotated files = %v, want one .log.gz", names)
	}

	f, err := os.Open(filepath.Join(filepath.Dir(logPath), names[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip: %v", err)
	}
	if string(got) != want {
		t.Errorf("decompressed = %q, want %q", got, want)
	}
}

func TestRotatingWriterPrunesOnOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "mtreex.log")

	old := filepath.Join(dir, "mtreex-20000101T000000.000.log.gz")
	recent := filepath.Join(dir, "mtreex-20991231T235959.000.log")
	other := filepath.Join(dir, "other-20000101T000000.000.log")
	for _, p := range []string{old, recent, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{MaxAge: 7})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired backup was not removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("recent backup was removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("unrelated file was removed")
	}
}

func TestRotatingWriterCreatesDirectory(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "state", "mtreex", "mtreex.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestRotatingWriterClosed(t *testing.T) {
	t.Parallel()

	w, err := logging.NewRotatingWriter(filepath.Join(t.TempDir(), "x.log"), logging.RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("Write() after Close() succeeded")
	}
}

func TestRotatingWriterConcurrentWrites(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "walk.log")
	w, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	line := []byte("hashed file\n")
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = w.Write(line)
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, line); n != 400 {
		t.Errorf("found %d lines, want 400", n)
	}
}
