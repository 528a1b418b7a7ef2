package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	w.WriteString(f.formatHeader(d.Header))
	w.WriteString("\n")

	w.WriteString(f.formatTable(d))

	w.WriteString(f.formatFooter(Summarize(d)))

	if warnings := d.Warnings(); len(warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(warnings))
	}

	return nil
}

// formatHeader builds the header box with manifest metadata.
func (f *PrettyFormatter) formatHeader(h mtree.Header) string {
	if h.IsZero() {
		return theme.header.Render(theme.muted.Render("No manifest header"))
	}

	var parts []string
	for _, kv := range h.Fields() {
		label := theme.label.Render(strings.ToUpper(kv[0][:1]) + kv[0][1:] + ":")
		parts = append(parts, fmt.Sprintf("%s %s", label, theme.value.Render(kv[1])))
	}
	return theme.header.Render(strings.Join(parts, "  "))
}

// formatTable builds the entry table with TYPE, MODE, SIZE and PATH columns.
func (f *PrettyFormatter) formatTable(d *mtree.Document) string {
	if d.Len() == 0 {
		return theme.muted.Render("  No entries") + "\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		theme.column.Render(padRight("TYPE", 6)),
		theme.column.Render("MODE"),
		theme.column.Render(padLeft("SIZE", 9)),
		theme.column.Render("PATH")))

	for _, e := range d.Entries() {
		size := ""
		if e.Attrs.Has(mtree.KeywordSize) {
			size = humanize.IBytes(uint64(e.Attrs.Size()))
		}

		sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			theme.muted.Render(padRight(typeText(e.Attrs), 6)),
			theme.value.Render(padRight(modeText(e.Attrs), 4)),
			theme.size.Render(padLeft(size, 9)),
			theme.path(e)))
	}

	return sb.String()
}

// formatFooter builds the footer box with summary information.
func (f *PrettyFormatter) formatFooter(s Summary) string {
	parts := []string{
		fmt.Sprintf("%s %s", theme.label.Render("Entries:"), theme.value.Render(fmt.Sprintf("%d", s.Entries))),
		fmt.Sprintf("%s %s", theme.label.Render("Dirs:"), theme.value.Render(fmt.Sprintf("%d", s.Dirs))),
		fmt.Sprintf("%s %s", theme.label.Render("Files:"), theme.value.Render(fmt.Sprintf("%d", s.Files))),
		fmt.Sprintf("%s %s", theme.label.Render("Total:"), theme.size.Render(humanize.IBytes(uint64(s.Bytes)))),
		theme.muted.Render("Use -o plain for unformatted output"),
	}
	return theme.footer.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(theme.warn.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")

	for _, warning := range warnings {
		sb.WriteString(theme.warn.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

// padLeft pads a string with spaces on the left to achieve the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// padRight pads a string with spaces on the right to achieve the desired width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
