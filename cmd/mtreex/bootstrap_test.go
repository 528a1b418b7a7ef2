package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

func TestParseRotationConfig(t *testing.T) {
	defaultSize := logging.DefaultRotationConfig().MaxSize

	tests := []struct {
		name string
		in   config.RotationConfig
		want logging.RotationConfig
	}{
		{
			name: "config defaults",
			in:   config.RotationConfig{MaxSize: "10MB", MaxAge: 30, MaxBackups: 5, Daily: true, Compress: true},
			want: logging.RotationConfig{MaxSize: 10 * 1000 * 1000, MaxAge: 30, MaxBackups: 5, Daily: true, Compress: true},
		},
		{
			name: "binary units",
			in:   config.RotationConfig{MaxSize: "1GiB", MaxAge: 7, MaxBackups: 3},
			want: logging.RotationConfig{MaxSize: 1 << 30, MaxAge: 7, MaxBackups: 3},
		},
		{
			name: "empty max_size",
			in:   config.RotationConfig{MaxAge: 14, MaxBackups: 2, Daily: true},
			want: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 14, MaxBackups: 2, Daily: true},
		},
		{
			name: "invalid max_size",
			in:   config.RotationConfig{MaxSize: "invalid", MaxAge: 21, Compress: true},
			want: logging.RotationConfig{MaxSize: defaultSize, MaxAge: 21, Compress: true},
		},
		{
			name: "zero max_size",
			in:   config.RotationConfig{MaxSize: "0B"},
			want: logging.RotationConfig{MaxSize: defaultSize},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRotationConfig(tt.in); got != tt.want {
				t.Errorf("parseRotationConfig(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitializeLoggingEnsuresDirectories(t *testing.T) {
	resetViper(t)

	// XDG paths are cached at package init, so this checks the real
	// locations rather than overriding them.
	if err := initializeLogging(nil, nil); err != nil {
		t.Fatalf("initializeLogging() returned error: %v", err)
	}
	defer func() { _ = logging.Close() }()

	configDir, err := config.ConfigDir()
	if err != nil {
		t.Fatalf("failed to get config dir: %v", err)
	}
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Errorf("config directory was not created: %s", configDir)
	}

	stateDir := config.StateDir()
	if _, err := os.Stat(stateDir); os.IsNotExist(err) {
		t.Errorf("state directory was not created: %s", stateDir)
	}
}

func TestRecordRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	cfg := &config.Config{Journal: config.JournalConfig{Enabled: true, Path: dir}}

	recordRun(cfg, journal.Entry{Operation: journal.OpConvert, Source: "site.mtree"})

	j, err := journal.New(dir)
	if err != nil {
		t.Fatalf("journal.New() error: %v", err)
	}
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Source != "site.mtree" {
		t.Errorf("Source = %q, want site.mtree", entries[0].Source)
	}
}

func TestRecordRun_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	cfg := &config.Config{Journal: config.JournalConfig{Enabled: false, Path: dir}}

	recordRun(cfg, journal.Entry{Operation: journal.OpConvert, Source: "-"})

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("journal directory created while disabled: %v", err)
	}
}

func TestJournalSummary(t *testing.T) {
	doc, err := mtree.Parse(testManifest)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	s := journalSummary(doc)
	if s.Entries != 5 || s.Dirs != 2 || s.Files != 3 {
		t.Errorf("summary = %+v, want 5 entries, 2 dirs, 3 files", s)
	}
	if s.Bytes != 1024+4096+100 {
		t.Errorf("Bytes = %d, want %d", s.Bytes, 1024+4096+100)
	}
}

func TestOpenCache_Disabled(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{Enabled: false, Path: t.TempDir()}}
	if c := openCache(cfg, false); c != nil {
		c.Close()
		t.Error("openCache() returned a cache while disabled")
	}

	cfg.Cache.Enabled = true
	if c := openCache(cfg, true); c != nil {
		c.Close()
		t.Error("openCache() returned a cache with noCache set")
	}
}
