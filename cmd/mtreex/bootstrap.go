package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mtreex/pkg/mtreex/cache"
	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/output"
)

var logger = logging.Get("cli")

// initializeLogging is the root PersistentPreRunE. It makes sure the config
// and state directories exist and starts file logging; --verbose adds
// debug output on stderr.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.EnsureStateDir(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		Format:     cfg.Logging.Format,
		Rotation:   parseRotationConfig(cfg.Logging.Rotation),
		Components: cfg.Logging.Components,
	}
	if getVerbose() && !getQuiet() {
		logCfg.ConsoleLevel = "debug"
		logCfg.Console = os.Stderr
	}

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.Debug("logging initialized", "path", logging.DefaultLogPath())
	return nil
}

// parseRotationConfig converts the config file form into logging options.
// An empty or unparseable max_size falls back to the logging default.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	out := logging.RotationConfig{
		MaxSize:    logging.DefaultRotationConfig().MaxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
		Compress:   rc.Compress,
	}
	if rc.MaxSize == "" {
		return out
	}
	n, err := humanize.ParseBytes(rc.MaxSize)
	if err != nil || n == 0 {
		printVerbose("Invalid logging.rotation.max_size %q, using default", rc.MaxSize)
		return out
	}
	out.MaxSize = int64(n)
	return out
}

// loadConfig decodes the global viper instance, which holds the config
// file, environment and any bound flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newParser builds a parser from the strict and unescape_names settings.
func newParser() *mtree.Parser {
	return mtree.NewParser(
		mtree.WithStrict(viper.GetBool("strict")),
		mtree.WithUnescapeNames(viper.GetBool("unescape_names")),
	)
}

// openCache opens the digest cache unless it is disabled by config or
// --no-cache. A cache that fails to open is skipped with a warning.
func openCache(cfg *config.Config, noCache bool) *cache.Cache {
	if noCache || !cfg.Cache.Enabled {
		return nil
	}
	if err := config.EnsureCacheDir(); err != nil {
		logger.Warn("cache directory unavailable", "error", err)
		return nil
	}
	c, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		logger.Warn("digest cache unavailable, hashing every file", "path", cfg.Cache.Path, "error", err)
		printVerbose("Digest cache unavailable: %v", err)
		return nil
	}
	return c
}

// openJournal returns the journal at the configured path.
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	j, err := journal.New(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// recordRun writes a journal entry for a finished command. Journal
// failures never fail the command.
func recordRun(cfg *config.Config, e journal.Entry) {
	if !cfg.Journal.Enabled {
		return
	}
	j, err := openJournal(cfg)
	if err != nil {
		logger.Warn("journal unavailable", "error", err)
		return
	}
	if err := j.EnsureDir(); err != nil {
		logger.Warn("journal unavailable", "error", err)
		return
	}
	saved, err := j.Record(e)
	if err != nil {
		logger.Warn("failed to record journal entry", "operation", e.Operation, "error", err)
		return
	}
	logger.Debug("journal entry recorded", "id", saved.ID)
}

// journalSummary counts a document for a journal entry.
func journalSummary(d *mtree.Document) journal.Summary {
	s := output.Summarize(d)
	return journal.Summary{
		Entries: s.Entries,
		Dirs:    s.Dirs,
		Files:   s.Files,
		Bytes:   s.Bytes,
	}
}
