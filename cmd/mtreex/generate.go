package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
	"github.com/jamesainslie/mtreex/pkg/mtreex/journal"
	"github.com/jamesainslie/mtreex/pkg/mtreex/output"
	"github.com/jamesainslie/mtreex/pkg/mtreex/scanner"
)

var generateCmd = &cobra.Command{
	Use:   "generate DIR",
	Short: "Generate a manifest describing a directory tree",
	Long: `Walk DIR and write an mtree manifest describing every entry below it.

Keywords default to generate.keywords from the config file. Digests are
reused from the digest cache when a file's size and modification time
are unchanged since it was last hashed.

Examples:
  mtreex generate /usr/local > local.mtree
  mtreex generate -k type,mode,size,sha512 -e '*.o' -f src.mtree ./src
  mtreex generate -o json --no-cache /etc`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringSliceP("keywords", "k", nil, "keywords to record (default from config)")
	f.StringSliceP("exclude", "e", nil, "exclude glob patterns (added to config exclude)")
	f.IntP("workers", "w", 0, "override hashing worker count (0=auto)")
	f.Bool("no-cache", false, "hash every file, bypassing the digest cache")
	f.StringP("output", "o", "mtree", "output format")
	f.String("layout", "", "structured layout: shallow or deep")
	f.StringP("file", "f", "", "write the manifest to FILE instead of stdout")
	rootCmd.AddCommand(generateCmd)
}

// runGenerate is the generate command handler.
func runGenerate(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := config.ExpandPath(args[0])
	if err != nil {
		return err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	opts := scanner.Options{
		Root:     root,
		Keywords: cfg.Generate.Keywords,
		Exclude:  cfg.Exclude,
		Workers:  cfg.Generate.Workers,
	}
	if cmd.Flags().Changed("keywords") {
		opts.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
	}
	if extra, _ := cmd.Flags().GetStringSlice("exclude"); len(extra) > 0 {
		opts.Exclude = append(append([]string{}, opts.Exclude...), extra...)
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}

	formatName, _ := cmd.Flags().GetString("output")
	formatter, err := output.Get(formatName)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", formatName, output.Available())
	}
	layoutName, _ := cmd.Flags().GetString("layout")
	layout, err := output.ParseLayout(layoutName)
	if err != nil {
		return err
	}
	output.ApplyLayout(formatter, layout)

	noCache, _ := cmd.Flags().GetBool("no-cache")
	if c := openCache(cfg, noCache); c != nil {
		defer c.Close()
		opts.Cache = c
	}

	if !getQuiet() {
		opts.OnProgress = progressPrinter()
	}

	ctx := commandContext(cmd)

	printVerbose("Generating manifest for %s with keywords %v", root, opts.Keywords)

	s := scanner.New(opts)
	doc, err := s.Scan(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printInfo("\nGeneration cancelled")
		}
		return fmt.Errorf("generate failed: %w", err)
	}
	if !getQuiet() {
		fmt.Fprintln(os.Stderr)
	}

	for _, e := range s.Errors() {
		printInfo("warning: %s: %s", e.Path, e.Error)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, doc); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	target, _ := cmd.Flags().GetString("file")
	if target == "" {
		if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	} else if err := writeFileAtomic(target, buf.Bytes()); err != nil {
		return err
	}

	summary := journalSummary(doc)
	summary.Problems = len(s.Errors())
	elapsed := time.Since(start)
	printInfo("Described %d entries (%s) in %s", summary.Entries, humanize.IBytes(uint64(summary.Bytes)), elapsed.Round(time.Millisecond))

	recordRun(cfg, journal.Entry{
		Operation: journal.OpGenerate,
		Source:    root,
		Target:    target,
		Format:    formatName,
		Summary:   summary,
		Duration:  elapsed,
	})
	return nil
}

// progressPrinter returns a scanner progress callback that rewrites one
// status line on stderr.
func progressPrinter() func(scanner.Progress) {
	return func(p scanner.Progress) {
		fmt.Fprintf(os.Stderr, "\r%d dirs, %d files, %d hashed (%s), %d cached",
			p.DirsScanned, p.FilesScanned, p.FilesHashed, humanize.IBytes(uint64(p.BytesHashed)), p.CacheHits)
	}
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	path, err := config.ExpandPath(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
