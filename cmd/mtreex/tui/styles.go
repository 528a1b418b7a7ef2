// Package tui provides the interactive manifest browser for mtreex, built on
// Bubble Tea, Bubbles and Lip Gloss.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	violet = lipgloss.Color("#7D56F4")
	cyan   = lipgloss.Color("#00D9FF")
	amber  = lipgloss.Color("#FFC107")
	red    = lipgloss.Color("#DC3545")
	green  = lipgloss.Color("#00FF00")
	sky    = lipgloss.Color("#00AAFF")
	grey   = lipgloss.Color("#666666")
	rule   = lipgloss.Color("#333333")
	white  = lipgloss.Color("#FFFFFF")
	silver = lipgloss.Color("#CCCCCC")
	plum   = lipgloss.Color("#4A2040")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

// Frames.
var (
	outerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(violet).Padding(0, 1)
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(rule).Padding(0, 1)
	dividerStyle  = fg(rule)
)

// Text.
var (
	titleStyle       = fg(violet).Bold(true)
	spinnerStyle     = fg(violet)
	mutedTextStyle   = fg(grey)
	errorTextStyle   = fg(red)
	warningTextStyle = fg(amber)
	keyStyle         = fg(violet).Bold(true)
	keyDescStyle     = fg(grey)
	detailKeyStyle   = fg(cyan).Width(12)
	detailValueStyle = fg(white)
)

// Tree rows.
var (
	rowStyle       = fg(silver)
	cursorRowStyle = fg(white).Background(plum).Bold(true)
	markedStyle    = fg(green)
	unmarkedStyle  = fg(grey)
	summaryStyle   = fg(sky)
)

func renderDivider(width int) string {
	return dividerStyle.Render(strings.Repeat("─", max(width, 0)))
}

// renderHelpBar renders key hints as "[key] desc" pairs.
func renderHelpBar(hints [][2]string) string {
	var b strings.Builder
	b.WriteString(" ")
	for _, h := range hints {
		b.WriteString(" ")
		b.WriteString(keyStyle.Render("[" + h[0] + "]"))
		b.WriteString(" ")
		b.WriteString(keyDescStyle.Render(h[1]))
		b.WriteString(" ")
	}
	return strings.TrimRight(b.String(), " ")
}

// truncatePath shortens path to at most maxLen runes, keeping the end,
// which holds the file name.
func truncatePath(path string, maxLen int) string {
	r := []rune(path)
	switch {
	case len(r) <= maxLen:
		return path
	case maxLen <= 3:
		return string(r[:max(maxLen, 0)])
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

// center pads s on both sides to width cells.
func center(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, s)
}
