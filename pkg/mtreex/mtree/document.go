package mtree

// Document is a parsed manifest: its header and the entries in manifest order.
type Document struct {
	Header Header

	entries  []Entry
	index    map[string]int
	warnings []string
	unknown  []string
}

// NewDocument returns an empty document with the given header.
func NewDocument(h Header) *Document {
	return &Document{
		Header: h,
		index:  make(map[string]int),
	}
}

// Add stores an entry. If an entry already exists at the same path its
// attributes are replaced in place and it keeps its original position;
// Add then returns false.
func (d *Document) Add(e Entry) bool {
	if i, ok := d.index[e.Path]; ok {
		d.entries[i] = e
		return false
	}
	d.index[e.Path] = len(d.entries)
	d.entries = append(d.entries, e)
	return true
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.entries)
}

// Entries returns the entries in manifest order. The slice is shared with
// the document and must not be modified.
func (d *Document) Entries() []Entry {
	return d.entries
}

// Get returns the entry at path.
func (d *Document) Get(path string) (Entry, bool) {
	i, ok := d.index[path]
	if !ok {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Paths returns every entry path in manifest order.
func (d *Document) Paths() []string {
	paths := make([]string, len(d.entries))
	for i, e := range d.entries {
		paths[i] = e.Path
	}
	return paths
}

// Warnings returns non-fatal problems found while parsing, such as
// unrecognized keywords or replaced duplicate paths.
func (d *Document) Warnings() []string {
	return d.warnings
}

// UnknownKeywords returns the distinct unrecognized keyword names in the
// order they were first seen.
func (d *Document) UnknownKeywords() []string {
	return d.unknown
}

func (d *Document) warn(msg string) {
	d.warnings = append(d.warnings, msg)
}

func (d *Document) noteUnknown(name string) bool {
	for _, u := range d.unknown {
		if u == name {
			return false
		}
	}
	d.unknown = append(d.unknown, name)
	return true
}

// CopyNotes appends the warnings and unknown keywords of src to d, so a
// document derived from src keeps its parse diagnostics.
func (d *Document) CopyNotes(src *Document) {
	d.warnings = append(d.warnings, src.warnings...)
	for _, u := range src.unknown {
		d.noteUnknown(u)
	}
}

// AddWarning records a non-fatal problem, such as a file that could not be
// read while generating a manifest.
func (d *Document) AddWarning(msg string) {
	d.warn(msg)
}
