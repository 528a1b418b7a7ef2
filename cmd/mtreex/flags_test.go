package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mtreex/pkg/mtreex/filter"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name           string
		settings       map[string]any
		wantLimit      int
		wantMinSize    int64
		wantMaxSize    int64
		wantSortBy     filter.SortField
		wantDescending bool
		wantZero       bool
	}{
		{
			name:       "default values",
			wantSortBy: filter.SortManifest,
			wantZero:   true,
		},
		{
			name:       "custom limit",
			settings:   map[string]any{"filter.limit": 100},
			wantLimit:  100,
			wantSortBy: filter.SortManifest,
		},
		{
			name:           "sort by size",
			settings:       map[string]any{"filter.sort": "size"},
			wantSortBy:     filter.SortSize,
			wantDescending: true, // largest first
		},
		{
			name:           "sort by time",
			settings:       map[string]any{"filter.sort": "time"},
			wantSortBy:     filter.SortTime,
			wantDescending: true, // newest first
		},
		{
			name:           "sort by path",
			settings:       map[string]any{"filter.sort": "path"},
			wantSortBy:     filter.SortPath,
			wantDescending: false, // A-Z
		},
		{
			name:           "reverse sort on size",
			settings:       map[string]any{"filter.sort": "size", "filter.reverse": true},
			wantSortBy:     filter.SortSize,
			wantDescending: false,
		},
		{
			name:           "reverse manifest order",
			settings:       map[string]any{"filter.reverse": true},
			wantSortBy:     filter.SortManifest,
			wantDescending: true,
		},
		{
			name:        "size bounds",
			settings:    map[string]any{"filter.min_size": "1K", "filter.max_size": "1MiB"},
			wantMinSize: 1000,
			wantMaxSize: 1 << 20,
			wantSortBy:  filter.SortManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			for k, v := range tt.settings {
				viper.Set(k, v)
			}

			f, err := buildFilter()
			if err != nil {
				t.Fatalf("buildFilter() error: %v", err)
			}
			if f.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", f.Limit, tt.wantLimit)
			}
			if f.MinSize != tt.wantMinSize {
				t.Errorf("MinSize = %d, want %d", f.MinSize, tt.wantMinSize)
			}
			if f.MaxSize != tt.wantMaxSize {
				t.Errorf("MaxSize = %d, want %d", f.MaxSize, tt.wantMaxSize)
			}
			if f.SortBy != tt.wantSortBy {
				t.Errorf("SortBy = %v, want %v", f.SortBy, tt.wantSortBy)
			}
			if f.SortDescending != tt.wantDescending {
				t.Errorf("SortDescending = %v, want %v", f.SortDescending, tt.wantDescending)
			}
			if f.IsZero() != tt.wantZero {
				t.Errorf("IsZero() = %v, want %v", f.IsZero(), tt.wantZero)
			}
		})
	}
}

func TestBuildFilter_Criteria(t *testing.T) {
	resetViper(t)
	viper.Set("filter.type", "file, link")
	viper.Set("filter.include", []string{"*.go"})
	viper.Set("filter.exclude", []string{"vendor/*"})
	viper.Set("filter.older_than", "7d")
	viper.Set("filter.newer_than", "1y")
	viper.Set("filter.max_depth", 3)

	f, err := buildFilter()
	if err != nil {
		t.Fatalf("buildFilter() error: %v", err)
	}

	if want := []mtree.EntryType{mtree.TypeFile, mtree.TypeLink}; !reflect.DeepEqual(f.Types, want) {
		t.Errorf("Types = %v, want %v", f.Types, want)
	}
	if !reflect.DeepEqual(f.Include, []string{"*.go"}) {
		t.Errorf("Include = %v", f.Include)
	}
	if !reflect.DeepEqual(f.Exclude, []string{"vendor/*"}) {
		t.Errorf("Exclude = %v", f.Exclude)
	}
	if f.OlderThan != 7*24*time.Hour {
		t.Errorf("OlderThan = %v, want 168h", f.OlderThan)
	}
	if f.NewerThan <= f.OlderThan {
		t.Errorf("NewerThan = %v, want more than OlderThan", f.NewerThan)
	}
	if f.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want 3", f.MaxDepth)
	}
}

func TestBuildFilter_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid type", "filter.type", "file,bogus"},
		{"invalid min size", "filter.min_size", "lots"},
		{"invalid max size", "filter.max_size", "-5"},
		{"invalid older than", "filter.older_than", "soon"},
		{"invalid newer than", "filter.newer_than", "later"},
		{"invalid sort", "filter.sort", "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			viper.Set(tt.key, tt.val)

			if _, err := buildFilter(); err == nil {
				t.Errorf("buildFilter() with %s=%q expected error", tt.key, tt.val)
			}
		})
	}
}

func TestBindFlags(t *testing.T) {
	resetViper(t)
	cmd := &cobra.Command{Use: "test"}
	addConvertFlags(cmd)

	if err := cmd.Flags().Set("min-size", "2K"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("output", "yaml"); err != nil {
		t.Fatal(err)
	}
	if err := bindFlags(cmd, convertFlagKeys); err != nil {
		t.Fatalf("bindFlags() error: %v", err)
	}

	if got := viper.GetString("filter.min_size"); got != "2K" {
		t.Errorf("filter.min_size = %q, want 2K", got)
	}
	if got := viper.GetString("output"); got != "yaml" {
		t.Errorf("output = %q, want yaml", got)
	}
	// Unset flags leave the defaults in place.
	if got := viper.GetString("layout"); got != "shallow" {
		t.Errorf("layout = %q, want shallow", got)
	}
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"file", []string{"file"}},
		{"file, dir ,link", []string{"file", "dir", "link"}},
		{",,file,,", []string{"file"}},
	}

	for _, tt := range tests {
		got := parseCommaSeparated(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommaSeparated(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
