// Package filter selects, sorts and limits the entries of an mtree document
// by type, size, time keyword, path globs and depth.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// SortField orders filtered entries. The zero value keeps manifest order.
type SortField int

const (
	SortManifest SortField = iota
	SortPath
	SortSize
	SortTime
	SortType // type, then path
)

var sortNames = [...]string{
	SortManifest: "manifest",
	SortPath:     "path",
	SortSize:     "size",
	SortTime:     "time",
	SortType:     "type",
}

// ErrInvalidSortField is returned by ParseSortField for an unknown name.
var ErrInvalidSortField = errors.New("invalid sort field")

func (s SortField) String() string {
	if s < 0 || int(s) >= len(sortNames) {
		return sortNames[SortManifest]
	}
	return sortNames[s]
}

// ParseSortField accepts a sort field name in any case. The empty string
// is manifest order and "age" is an alias for time.
func ParseSortField(s string) (SortField, error) {
	name := strings.ToLower(s)
	switch name {
	case "":
		return SortManifest, nil
	case "age":
		return SortTime, nil
	}
	for f, n := range sortNames {
		if n == name {
			return SortField(f), nil
		}
	}
	return SortManifest, fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}
