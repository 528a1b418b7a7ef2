package verify

import (
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// sameValue compares a recorded keyword value with the value read from disk.
func sameValue(keyword string, want, got any) bool {
	switch keyword {
	case mtree.KeywordTime:
		wt, ok1 := want.(time.Time)
		gt, ok2 := got.(time.Time)
		if !ok1 || !ok2 {
			return false
		}
		// Manifests written with whole seconds only compare seconds.
		if wt.Nanosecond() == 0 {
			return wt.Unix() == gt.Unix()
		}
		return wt.Equal(gt)

	case mtree.KeywordMode:
		wm, ok1 := want.(mtree.Mode)
		gm, ok2 := got.(mtree.Mode)
		return ok1 && ok2 && wm&0o7777 == gm&0o7777

	case mtree.KeywordDevice:
		wd, ok1 := want.(mtree.Device)
		gd, ok2 := got.(mtree.Device)
		if !ok1 || !ok2 {
			// An unparsed or bare-number device cannot be decoded portably.
			return true
		}
		if wd.Format == "" {
			return true
		}
		return wd.Major == gd.Major && wd.Minor == gd.Minor
	}

	return valueText(want) == valueText(got)
}

// valueText renders a value for a report. Absent values render as "".
func valueText(v any) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	text, _ := mtree.FormatValue(v)
	return text
}
