package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

// These tests share the package-level logging state and must not run in
// parallel with each other.

// initTo initializes logging into a temp file and returns its path.
// Logging is closed when the test ends.
func initTo(t *testing.T, cfg logging.Config) string {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "mtreex.log")
	}
	if err := logging.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = logging.Close() })
	return cfg.Path
}

// closeAndRead closes logging and returns the log file contents.
func closeAndRead(t *testing.T, path string) string {
	t.Helper()
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	return string(data)
}

func TestInitErrors(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr error
	}{
		{"bad level", logging.Config{Level: "loud", Path: filepath.Join(dir, "a.log")}, logging.ErrInvalidLevel},
		{"bad component level", logging.Config{Level: "info", Path: filepath.Join(dir, "b.log"), Components: map[string]string{"parser": "chatty"}}, logging.ErrInvalidLevel},
		{"bad console level", logging.Config{Level: "info", Path: filepath.Join(dir, "c.log"), ConsoleLevel: "all"}, logging.ErrInvalidLevel},
		{"bad format", logging.Config{Level: "info", Path: filepath.Join(dir, "d.log"), Format: "xml"}, logging.ErrInvalidFormat},
		{"parent is a file", logging.Config{Level: "info", Path: filepath.Join(blocker, "e.log")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if err == nil {
				_ = logging.Close()
				t.Fatal("Init() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Init() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetReturnsSameHandle(t *testing.T) {
	a := logging.Get("scanner")
	b := logging.Get("scanner")
	if a != b {
		t.Error("Get() returned different handles for one component")
	}
	if a.Component() != "scanner" {
		t.Errorf("Component() = %q, want scanner", a.Component())
	}
	if logging.Get("verify") == a {
		t.Error("Get() shared a handle across components")
	}
}

func TestLevelsAndComponentOverrides(t *testing.T) {
	path := initTo(t, logging.Config{
		Level:      "warn",
		Components: map[string]string{"parser": "debug"},
	})

	scanner := logging.Get("scanner")
	scanner.Debug("scanner debug hidden")
	scanner.Info("scanner info hidden")
	scanner.Warn("scanner warn shown")
	scanner.Error("scanner error shown")
	logging.Get("parser").Debug("parser debug shown", "line", 7)

	content := closeAndRead(t, path)
	for _, hidden := range []string{"scanner debug hidden", "scanner info hidden"} {
		if strings.Contains(content, hidden) {
			t.Errorf("log contains %q", hidden)
		}
	}
	for _, shown := range []string{"scanner warn shown", "scanner error shown", "parser debug shown", "line=7"} {
		if !strings.Contains(content, shown) {
			t.Errorf("log missing %q:\n%s", shown, content)
		}
	}
}

func TestWithAddsFields(t *testing.T) {
	path := initTo(t, logging.Config{Level: "info"})

	base := logging.Get("verify")
	scoped := base.With("root", "/srv")
	scoped.Info("checked", "entries", 3)
	base.Info("unscoped")

	content := closeAndRead(t, path)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), content)
	}
	if !strings.Contains(lines[0], "/srv") || !strings.Contains(lines[0], "entries=3") {
		t.Errorf("scoped line = %q", lines[0])
	}
	if strings.Contains(lines[1], "root=") {
		t.Errorf("With() leaked fields into the parent: %q", lines[1])
	}
}

func TestJSONFormat(t *testing.T) {
	path := initTo(t, logging.Config{Level: "info", Format: "json"})

	logging.Get("cache").Info("pruned", "removed", 4)

	content := closeAndRead(t, path)
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, content)
	}
	if rec["msg"] != "pruned" || !strings.HasPrefix(fmt.Sprint(rec["prefix"]), "cache") {
		t.Errorf("record = %v", rec)
	}
	if rec["removed"] != float64(4) {
		t.Errorf("removed = %v, want 4", rec["removed"])
	}
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	path := initTo(t, logging.Config{Level: "debug", ConsoleLevel: "warn", Console: &console})

	logger := logging.Get("watcher")
	logger.Info("file only")
	logger.Warn("both outputs")

	content := closeAndRead(t, path)
	if !strings.Contains(content, "file only") || !strings.Contains(content, "both outputs") {
		t.Errorf("file log = %q", content)
	}
	if strings.Contains(console.String(), "file only") {
		t.Error("info reached the console at warn level")
	}
	if !strings.Contains(console.String(), "both outputs") {
		t.Errorf("console = %q", console.String())
	}
}

func TestLoggerBeforeInitAndAfterClose(t *testing.T) {
	logger := logging.Get("early")
	logger.Info("before init")

	path := initTo(t, logging.Config{Level: "info"})
	logger.Info("after init")
	content := closeAndRead(t, path)

	logger.Info("after close")

	if strings.Contains(content, "before init") {
		t.Error("record logged before Init was kept")
	}
	if !strings.Contains(content, "after init") {
		t.Errorf("early logger did not pick up Init:\n%s", content)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "after close") {
		t.Error("record logged after Close was written")
	}
}

func TestReinitSwitchesFiles(t *testing.T) {
	first := initTo(t, logging.Config{Level: "info"})
	logger := logging.Get("tui")
	logger.Info("to first")

	second := filepath.Join(t.TempDir(), "second.log")
	if err := logging.Init(logging.Config{Level: "info", Path: second}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	logger.Info("to second")
	content := closeAndRead(t, second)

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to first") || strings.Contains(string(data), "to second") {
		t.Errorf("first log = %q", data)
	}
	if !strings.Contains(content, "to second") {
		t.Errorf("second log = %q", content)
	}
}

func TestConcurrentLogging(t *testing.T) {
	path := initTo(t, logging.Config{Level: "debug"})

	const workers, records = 10, 100
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := logging.Get("scanner")
			for j := range records {
				logger.Info("hashed", "worker", i, "file", j)
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(closeAndRead(t, path)), "\n")
	if len(lines) != workers*records {
		t.Errorf("got %d lines, want %d", len(lines), workers*records)
	}
}

func TestDefaultLogPath(t *testing.T) {
	path := logging.DefaultLogPath()
	if filepath.Base(path) != "mtreex.log" || filepath.Base(filepath.Dir(path)) != "mtreex" {
		t.Errorf("DefaultLogPath() = %q", path)
	}
	if cfg := logging.DefaultConfig(); cfg.Path != path || cfg.Format != "text" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"trace", logging.LevelInfo, true},
		{"", logging.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if logging.LevelWarn.String() != "warn" || logging.Level(9).String() != "unknown" {
		t.Error("Level.String() mismatch")
	}
}
