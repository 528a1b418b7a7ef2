package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// palette uses the ANSI 256-color table so the pretty output looks the same
// in any terminal that supports it.
var palette = struct {
	accent, text, muted, warn, device, link, special lipgloss.Color
}{
	accent:  lipgloss.Color("39"),
	text:    lipgloss.Color("255"),
	muted:   lipgloss.Color("245"),
	warn:    lipgloss.Color("214"),
	device:  lipgloss.Color("178"),
	link:    lipgloss.Color("51"),
	special: lipgloss.Color("170"),
}

// prettyTheme holds the styles of the pretty formatter.
type prettyTheme struct {
	header, footer lipgloss.Style
	column         lipgloss.Style
	label, value   lipgloss.Style
	muted, size    lipgloss.Style
	warn           lipgloss.Style
	paths          map[mtree.EntryType]lipgloss.Style
}

var theme = newPrettyTheme()

func newPrettyTheme() prettyTheme {
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	return prettyTheme{
		header: box.BorderForeground(palette.accent).MarginBottom(1),
		footer: box.BorderForeground(palette.muted).MarginTop(1),
		column: fg(palette.muted).Bold(true).
			BorderBottom(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(palette.muted).
			PaddingRight(2),
		label: fg(palette.muted),
		value: fg(palette.text),
		muted: fg(palette.muted),
		size:  fg(palette.accent).Bold(true),
		warn:  fg(palette.warn),
		paths: map[mtree.EntryType]lipgloss.Style{
			mtree.TypeDir:    fg(palette.accent).Bold(true),
			mtree.TypeLink:   fg(palette.link),
			mtree.TypeBlock:  fg(palette.device),
			mtree.TypeChar:   fg(palette.device),
			mtree.TypeFifo:   fg(palette.special),
			mtree.TypeSocket: fg(palette.special),
		},
	}
}

// path renders an entry path in the color of its type. Directories get a
// trailing slash and links show their target.
func (t prettyTheme) path(e mtree.Entry) string {
	typ := e.Attrs.Type()
	style, ok := t.paths[typ]
	if !ok {
		style = t.value
	}

	switch typ {
	case mtree.TypeDir:
		return style.Render(e.Path + "/")
	case mtree.TypeLink:
		if target, ok := e.Attrs.String(mtree.KeywordLink); ok {
			return style.Render(e.Path) + t.muted.Render(" -> "+target)
		}
	}
	return style.Render(e.Path)
}
