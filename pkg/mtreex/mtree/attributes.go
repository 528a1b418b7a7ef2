package mtree

import (
	"sort"
	"time"
)

// Attributes maps keyword names to typed values.
//
// Value types by keyword:
//
//	type                          EntryType
//	mode                          Mode
//	uid gid size cksum nlink      int64
//	ignore optional nochange      bool
//	flags tags                    []string
//	time                          time.Time
//	device                        Device (string if unparseable)
//	everything else               string
//
// A keyword given the value "none" holds None.
type Attributes map[string]any

// Clone returns a shallow copy; list values are copied too.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// Merge copies every key of other into a, overwriting existing values.
func (a Attributes) Merge(other Attributes) {
	for k, v := range other {
		a[k] = v
	}
}

// Has reports whether key is present with a value other than None.
func (a Attributes) Has(key string) bool {
	v, ok := a[key]
	return ok && !IsNone(v)
}

// Keys returns the keyword names in a stable order: type first, the rest sorted.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		if k != KeywordType {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := a[KeywordType]; ok {
		keys = append([]string{KeywordType}, keys...)
	}
	return keys
}

// Type returns the entry type, or "" if unset.
func (a Attributes) Type() EntryType {
	t, _ := a[KeywordType].(EntryType)
	return t
}

// Mode returns the mode and whether it is set.
func (a Attributes) Mode() (Mode, bool) {
	m, ok := a[KeywordMode].(Mode)
	return m, ok
}

// Int returns an integer keyword value and whether it is set.
func (a Attributes) Int(key string) (int64, bool) {
	n, ok := a[key].(int64)
	return n, ok
}

// String returns a string keyword value and whether it is set.
func (a Attributes) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// Bool reports whether a presence keyword such as ignore is set.
func (a Attributes) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// List returns a list keyword value such as flags.
func (a Attributes) List(key string) []string {
	l, _ := a[key].([]string)
	return l
}

// Time returns the time keyword and whether it is set.
func (a Attributes) Time() (time.Time, bool) {
	t, ok := a[KeywordTime].(time.Time)
	return t, ok
}

// Size returns the size keyword, or 0 if unset.
func (a Attributes) Size() int64 {
	n, _ := a.Int(KeywordSize)
	return n
}
