package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mtreex/pkg/mtreex/filter"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// convertFlagKeys maps convert flags to the viper keys they override.
// Filter settings live under "filter." so they stay apart from the
// generator's exclude list in the config file.
var convertFlagKeys = map[string]string{
	"output":         "output",
	"layout":         "layout",
	"template":       "template",
	"strict":         "strict",
	"unescape-names": "unescape_names",
	"type":           "filter.type",
	"include":        "filter.include",
	"exclude":        "filter.exclude",
	"min-size":       "filter.min_size",
	"max-size":       "filter.max_size",
	"older-than":     "filter.older_than",
	"newer-than":     "filter.newer_than",
	"max-depth":      "filter.max_depth",
	"sort":           "filter.sort",
	"reverse":        "filter.reverse",
	"limit":          "filter.limit",
}

// addConvertFlags registers the output, parser and filter flags shared by
// the root and convert commands.
func addConvertFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Output flags
	f.StringP("output", "o", "", "output format (xml, json, jsonl, yaml, toml, plain, tsv, csv, markdown, markdown-term, pretty, tree, template, mtree, paths, null)")
	f.String("layout", "", "structured layout: shallow or deep")
	f.String("template", "", "Go template for -o template")
	f.Bool("watch", false, "re-render whenever the manifest file changes")

	// Parser flags
	f.Bool("strict", false, "fail when two entries resolve to the same path")
	f.Bool("unescape-names", false, "decode \\ooo escapes in entry names")

	// Filter flags
	f.String("type", "", "keep entry types (comma-separated: file,dir,link,...)")
	f.StringSlice("include", nil, "keep paths matching glob patterns")
	f.StringSlice("exclude", nil, "drop paths matching glob patterns")
	f.String("min-size", "", "keep entries with size >= SIZE (e.g. 10K, 1MiB)")
	f.String("max-size", "", "keep entries with size <= SIZE")
	f.String("older-than", "", "keep entries modified before DURATION ago (e.g. 30d, 1y)")
	f.String("newer-than", "", "keep entries modified within DURATION")
	f.Int("max-depth", 0, "keep entries at most N levels deep (0=unlimited)")
	f.String("sort", "", "sort by manifest, path, size, time or type")
	f.Bool("reverse", false, "reverse the sort order")
	f.Int("limit", 0, "maximum entries to output (0=unlimited)")
}

// bindFlags binds the named flags of cmd to viper keys. Binding happens
// when a command runs, so root and convert can share keys.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		fl := cmd.Flags().Lookup(name)
		if fl == nil {
			continue
		}
		if err := viper.BindPFlag(key, fl); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// buildFilter creates a filter.Filter from the filter settings.
func buildFilter() (*filter.Filter, error) {
	var opts []filter.Option

	if limitVal := viper.GetInt("filter.limit"); limitVal > 0 {
		opts = append(opts, filter.WithLimit(limitVal))
	}

	if typesStr := viper.GetString("filter.type"); typesStr != "" {
		var types []mtree.EntryType
		for _, s := range parseCommaSeparated(typesStr) {
			t, err := mtree.ParseEntryType(s)
			if err != nil {
				return nil, fmt.Errorf("invalid type %q: %w", s, err)
			}
			types = append(types, t)
		}
		opts = append(opts, filter.WithTypes(types...))
	}

	if include := viper.GetStringSlice("filter.include"); len(include) > 0 {
		opts = append(opts, filter.WithInclude(include...))
	}
	if exclude := viper.GetStringSlice("filter.exclude"); len(exclude) > 0 {
		opts = append(opts, filter.WithExclude(exclude...))
	}

	if s := viper.GetString("filter.min_size"); s != "" {
		n, err := filter.ParseSize(s)
		if err != nil {
			return nil, fmt.Errorf("invalid min-size %q: %w", s, err)
		}
		opts = append(opts, filter.WithMinSize(n))
	}
	if s := viper.GetString("filter.max_size"); s != "" {
		n, err := filter.ParseSize(s)
		if err != nil {
			return nil, fmt.Errorf("invalid max-size %q: %w", s, err)
		}
		opts = append(opts, filter.WithMaxSize(n))
	}

	if s := viper.GetString("filter.older_than"); s != "" {
		d, err := filter.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid older-than %q: %w", s, err)
		}
		opts = append(opts, filter.WithOlderThan(d))
	}
	if s := viper.GetString("filter.newer_than"); s != "" {
		d, err := filter.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid newer-than %q: %w", s, err)
		}
		opts = append(opts, filter.WithNewerThan(d))
	}

	if maxDepthVal := viper.GetInt("filter.max_depth"); maxDepthVal > 0 {
		opts = append(opts, filter.WithMaxDepth(maxDepthVal))
	}

	sortStr := viper.GetString("filter.sort")
	sortField, err := filter.ParseSortField(sortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid sort field %q: %w", sortStr, err)
	}
	opts = append(opts, filter.WithSortBy(sortField))

	// Size and time read largest/newest first; the others ascend.
	reverseVal := viper.GetBool("filter.reverse")
	descending := reverseVal
	if sortField == filter.SortSize || sortField == filter.SortTime {
		descending = !reverseVal
	}
	opts = append(opts, filter.WithSortDescending(descending))

	return filter.New(opts...), nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	return lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
}
