package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/mtreex/pkg/mtreex/cache"
	"github.com/jamesainslie/mtreex/pkg/mtreex/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the digest cache",
	Long: `Commands for managing the mtreex digest cache.

The cache stores file digests keyed by tree root and relative path so
generate and verify can skip hashing files whose size and modification
time are unchanged. Cache data is stored in the XDG cache directory
(typically ~/.cache/mtreex/digests).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [root]",
	Short: "Clear cached digests",
	Long:  `Removes cached digests for one tree root, or for every root when none is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location and how many files, roots and digests it holds.`,
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune ROOT",
	Short: "Drop stale entries for a tree",
	Long:  `Removes cached digests under ROOT whose files are gone or have changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCachePrune,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openExistingCache opens the configured cache. ok is false when no cache
// has been created yet.
func openExistingCache() (c *cache.Cache, path string, ok bool, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", false, err
	}
	path = cfg.Cache.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, path, false, nil
	}
	c, err = cache.Open(path)
	if err != nil {
		return nil, path, false, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, path, true, nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, _, ok, err := openExistingCache()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "Cache is already empty.")
		return nil
	}
	defer c.Close()

	var removed int
	if len(args) == 1 {
		root, err := absRoot(args[0])
		if err != nil {
			return err
		}
		removed, err = c.Clear(root)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	} else if removed, err = c.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if err := c.Compact(); err != nil {
		logger.Warn("cache compaction failed", "error", err)
	}

	fmt.Fprintf(out, "Cache cleared (%d entries removed).\n", removed)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, path, ok, err := openExistingCache()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "Cache: empty (no cache directory)")
		fmt.Fprintf(out, "Cache location: %s\n", path)
		return nil
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	fmt.Fprintf(out, "Cache location: %s\n", path)
	fmt.Fprintf(out, "Cache size:     %s (%s in use)\n", humanize.IBytes(uint64(dirSize(path))), humanize.IBytes(uint64(stats.DiskBytes)))
	fmt.Fprintf(out, "Roots:          %d\n", stats.Roots)
	fmt.Fprintf(out, "Files:          %s (%s hashed)\n", humanize.Comma(int64(stats.Entries)), humanize.IBytes(uint64(stats.Bytes)))
	fmt.Fprintf(out, "Digests:        %s\n", humanize.Comma(int64(stats.Digests)))
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	c, _, ok, err := openExistingCache()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "Cache is empty.")
		return nil
	}
	defer c.Close()

	root, err := absRoot(args[0])
	if err != nil {
		return err
	}
	res, err := c.Prune(root)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	for _, p := range res.Removed {
		printVerbose("removed %s", p)
	}
	if len(res.Removed) > 0 {
		if err := c.Compact(); err != nil {
			logger.Warn("cache compaction failed", "error", err)
		}
	}
	fmt.Fprintf(out, "Checked %d entries, removed %d.\n", res.Checked, len(res.Removed))
	return nil
}

// absRoot resolves a tree root the way generate and verify key the cache.
func absRoot(p string) (string, error) {
	p, err := config.ExpandPath(p)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return abs, nil
}

// dirSize totals the size of the files under dir.
func dirSize(dir string) int64 {
	var size int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
