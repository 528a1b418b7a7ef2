package tui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// headerStats summarizes a document for the header line.
type headerStats struct {
	Entries  int
	Files    int
	Bytes    int64
	Notes    int
	Marked   int
	LoadTime time.Duration
}

func newHeaderStats(doc *mtree.Document, elapsed time.Duration) headerStats {
	s := headerStats{
		Entries:  doc.Len(),
		Notes:    len(doc.Warnings()) + len(doc.UnknownKeywords()),
		LoadTime: elapsed,
	}
	for _, e := range doc.Entries() {
		switch e.Attrs.Type() {
		case mtree.TypeFile, "":
			s.Files++
			s.Bytes += e.Attrs.Size()
		}
	}
	return s
}

// renderAppHeader renders the application header with the source name and
// document stats.
func renderAppHeader(source string, s headerStats) string {
	appName := titleStyle.Render("MTREEX")

	stats := mutedTextStyle.Render(fmt.Sprintf("  %s  •  %s entries  •  %s files  •  %s",
		source,
		humanize.Comma(int64(s.Entries)),
		humanize.Comma(int64(s.Files)),
		humanize.IBytes(uint64(s.Bytes))))

	header := " " + appName + stats

	if s.Notes > 0 {
		header += warningTextStyle.Render(fmt.Sprintf("  ⚠ %d notes", s.Notes))
	}
	if s.Marked > 0 {
		header += keyStyle.Render(fmt.Sprintf("  ● %d marked", s.Marked))
	}
	return header
}

// renderLoadMetrics renders how long parsing took. Returns an empty string
// when unknown.
func renderLoadMetrics(elapsed time.Duration) string {
	if elapsed <= 0 {
		return ""
	}
	return mutedTextStyle.Render(fmt.Sprintf("  Parsed in %v", elapsed.Round(time.Millisecond)))
}
