// Package mtree parses BSD mtree directory manifests into typed, ordered
// documents.
//
// A manifest is a leading comment header followed by a body of item lines,
// /set and /unset commands, and ".." lines that climb back out of the most
// recent directory. Parsing is a single linear pass; every call owns its own
// path stack and /set overlay, so Parse is safe for concurrent use.
//
// Basic usage:
//
//	doc, err := mtree.Parse(text)
//	if err != nil {
//	    return err
//	}
//	for _, e := range doc.Entries() {
//	    fmt.Println(e.Path, e.Attrs.Type())
//	}
package mtree

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntryType is the value of the type keyword.
type EntryType string

// The seven entry types mtree recognizes.
const (
	TypeBlock  EntryType = "block"
	TypeChar   EntryType = "char"
	TypeDir    EntryType = "dir"
	TypeFifo   EntryType = "fifo"
	TypeFile   EntryType = "file"
	TypeLink   EntryType = "link"
	TypeSocket EntryType = "socket"
)

// EntryTypes lists every valid EntryType in manifest documentation order.
var EntryTypes = []EntryType{TypeBlock, TypeChar, TypeDir, TypeFifo, TypeFile, TypeLink, TypeSocket}

// Valid reports whether t is one of the seven recognized types.
func (t EntryType) Valid() bool {
	switch t {
	case TypeBlock, TypeChar, TypeDir, TypeFifo, TypeFile, TypeLink, TypeSocket:
		return true
	}
	return false
}

// ParseEntryType validates s as a type keyword value.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Mode holds permission bits parsed from octal text.
type Mode uint32

// String renders the mode as zero-padded octal, e.g. "0755".
func (m Mode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// Device is the structured form of the device keyword.
//
// mtree writes devices either as a bare number or as
// "format,major,minor" / "format,major,unit,subunit".
type Device struct {
	Format  string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	Major   int64  `json:"major" yaml:"major" toml:"major"`
	Minor   int64  `json:"minor" yaml:"minor" toml:"minor"`
	Unit    int64  `json:"unit,omitempty" yaml:"unit,omitempty" toml:"unit,omitempty"`
	Subunit int64  `json:"subunit,omitempty" yaml:"subunit,omitempty" toml:"subunit,omitempty"`

	// Number is set when the device was written as a single opaque number.
	Number int64 `json:"number,omitempty" yaml:"number,omitempty" toml:"number,omitempty"`

	// fields is the number of comma-separated fields the value had.
	fields int
}

// ParseDevice parses a device keyword value.
func ParseDevice(s string) (Device, error) {
	parts := strings.Split(s, ",")
	nums := make([]int64, 0, len(parts))
	for _, p := range parts[min(1, len(parts)-1):] {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 0, 64)
		if err != nil {
			return Device{}, fmt.Errorf("%w: device %q", ErrInvalidKeywordValue, s)
		}
		nums = append(nums, n)
	}

	switch len(parts) {
	case 1:
		return Device{Number: nums[0], fields: 1}, nil
	case 3:
		return Device{Format: parts[0], Major: nums[0], Minor: nums[1], fields: 3}, nil
	case 4:
		return Device{Format: parts[0], Major: nums[0], Unit: nums[1], Subunit: nums[2], fields: 4}, nil
	default:
		return Device{}, fmt.Errorf("%w: device %q", ErrInvalidKeywordValue, s)
	}
}

// NewDevice returns a "format,major,minor" device.
func NewDevice(format string, major, minor int64) Device {
	return Device{Format: format, Major: major, Minor: minor, fields: 3}
}

// String renders the device back into keyword form.
func (d Device) String() string {
	switch d.fields {
	case 1:
		return strconv.FormatInt(d.Number, 10)
	case 4:
		return fmt.Sprintf("%s,%d,%d,%d", d.Format, d.Major, d.Unit, d.Subunit)
	default:
		return fmt.Sprintf("%s,%d,%d", d.Format, d.Major, d.Minor)
	}
}

// noneValue marks a keyword explicitly set to "none".
type noneValue struct{}

func (noneValue) String() string { return "none" }

// None is stored for keywords whose value is the literal "none".
// Renderers omit it; Attributes.Has reports false for it.
var None = noneValue{}

// IsNone reports whether v is the None marker.
func IsNone(v any) bool {
	_, ok := v.(noneValue)
	return ok
}

// Header holds the values of the leading "# key: value" comment block.
type Header struct {
	User    string    `json:"user,omitempty" yaml:"user,omitempty" toml:"user,omitempty"`
	Machine string    `json:"machine,omitempty" yaml:"machine,omitempty" toml:"machine,omitempty"`
	Tree    string    `json:"tree,omitempty" yaml:"tree,omitempty" toml:"tree,omitempty"`
	Date    time.Time `json:"date,omitempty" yaml:"date,omitempty" toml:"date,omitempty"`
}

// IsZero reports whether the manifest had no header.
func (h Header) IsZero() bool {
	return h.User == "" && h.Machine == "" && h.Tree == "" && h.Date.IsZero()
}

// Fields returns the header as ordered key/value pairs, skipping empty ones.
// Dates are rendered in RFC 3339.
func (h Header) Fields() [][2]string {
	var out [][2]string
	if h.User != "" {
		out = append(out, [2]string{"user", h.User})
	}
	if h.Machine != "" {
		out = append(out, [2]string{"machine", h.Machine})
	}
	if h.Tree != "" {
		out = append(out, [2]string{"tree", h.Tree})
	}
	if !h.Date.IsZero() {
		out = append(out, [2]string{"date", h.Date.Format(time.RFC3339)})
	}
	return out
}

// Entry is one resolved path of a manifest.
type Entry struct {
	// Path is the absolute, cleaned path of the item.
	Path string

	// Attrs is the /set overlay at the time the item was read, overlaid by
	// the item's own keywords.
	Attrs Attributes

	// Line is the 1-based line number the item was read from, 0 for
	// entries built in memory.
	Line int
}

// Name returns the last element of the entry path.
func (e Entry) Name() string {
	if e.Path == "/" {
		return "/"
	}
	return e.Path[strings.LastIndexByte(e.Path, '/')+1:]
}
