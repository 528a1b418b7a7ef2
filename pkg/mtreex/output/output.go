// Package output renders parsed mtree documents in various formats
// (xml, json, yaml, pretty, plain, tree, mtree, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("xml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output.ApplyLayout(formatter, output.LayoutDeep)
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, doc); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// logger is the package-level logger for output operations.
var logger = logging.Get("output")

// Layout selects how structured formatters lay out an entry.
type Layout string

const (
	// LayoutShallow renders each entry as one flat record whose fields are
	// the path and the attributes.
	LayoutShallow Layout = "shallow"

	// LayoutDeep renders each entry as a record with one child per
	// attribute, including an explicit path child.
	LayoutDeep Layout = "deep"
)

// ParseLayout validates a layout name. The empty string means shallow.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutShallow:
		return LayoutShallow, nil
	case LayoutDeep:
		return LayoutDeep, nil
	default:
		return "", fmt.Errorf("unknown layout: %s (want shallow or deep)", s)
	}
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted document to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, d *mtree.Document) error
}

// LayoutSetter is implemented by formatters that support both layouts.
type LayoutSetter interface {
	SetLayout(l Layout)
}

// ApplyLayout sets the layout on f if it supports one.
func ApplyLayout(f Formatter, l Layout) {
	if ls, ok := f.(LayoutSetter); ok {
		ls.SetLayout(l)
	}
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// Summary holds counts over a document's entries.
type Summary struct {
	Entries int   `json:"entries" yaml:"entries" toml:"entries"`
	Dirs    int   `json:"dirs" yaml:"dirs" toml:"dirs"`
	Files   int   `json:"files" yaml:"files" toml:"files"`
	Links   int   `json:"links" yaml:"links" toml:"links"`
	Other   int   `json:"other" yaml:"other" toml:"other"`
	Bytes   int64 `json:"bytes" yaml:"bytes" toml:"bytes"`
}

// Summarize counts entries by type and totals the size keyword.
// Entries without a type count as files.
func Summarize(d *mtree.Document) Summary {
	s := Summary{Entries: d.Len()}
	for _, e := range d.Entries() {
		switch e.Attrs.Type() {
		case mtree.TypeDir:
			s.Dirs++
		case mtree.TypeFile, "":
			s.Files++
			s.Bytes += e.Attrs.Size()
		case mtree.TypeLink:
			s.Links++
		default:
			s.Other++
		}
	}
	return s
}

// attrText renders an attribute value as display text. None and values
// with no text form render as "".
func attrText(v any) string {
	text, _ := mtree.FormatValue(v)
	return text
}

// typeText returns the entry type for table columns, "-" when unset.
func typeText(a mtree.Attributes) string {
	if t := a.Type(); t != "" {
		return string(t)
	}
	return "-"
}

// modeText returns the octal mode for table columns, "-" when unset.
func modeText(a mtree.Attributes) string {
	if m, ok := a.Mode(); ok {
		return m.String()
	}
	return "-"
}

// structuredValue converts an attribute value into a form the json, yaml
// and toml encoders render faithfully: modes stay octal text, times become RFC 3339.
// The boolean result is false for None.
func structuredValue(v any) (any, bool) {
	switch val := v.(type) {
	case mtree.EntryType:
		return string(val), true
	case mtree.Mode:
		return val.String(), true
	case time.Time:
		return val.Format(time.RFC3339Nano), true
	case mtree.Device:
		return val, true
	case int64, bool, string, []string:
		return val, true
	default:
		if mtree.IsNone(v) {
			return nil, false
		}
		return fmt.Sprint(v), true
	}
}
