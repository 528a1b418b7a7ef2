package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// NoteKind classifies a parser note.
type NoteKind int

const (
	NoteAll NoteKind = iota
	NoteWarning
	NoteUnknownKeyword
)

func (k NoteKind) String() string {
	switch k {
	case NoteWarning:
		return "warnings"
	case NoteUnknownKeyword:
		return "unknown keywords"
	default:
		return "all"
	}
}

// Note is one line of the notes pane.
type Note struct {
	Kind NoteKind
	Text string
}

// collectNotes gathers the document's warnings and unknown keywords.
func collectNotes(doc *mtree.Document) []Note {
	var notes []Note
	for _, w := range doc.Warnings() {
		notes = append(notes, Note{Kind: NoteWarning, Text: w})
	}
	for _, k := range doc.UnknownKeywords() {
		notes = append(notes, Note{Kind: NoteUnknownKeyword, Text: k})
	}
	return notes
}

// filterNotes returns the notes of the given kind; NoteAll keeps every note.
func filterNotes(notes []Note, kind NoteKind) []Note {
	if kind == NoteAll {
		return notes
	}
	result := make([]Note, 0, len(notes))
	for _, n := range notes {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

// clampScroll ensures the scroll offset stays within valid bounds.
func clampScroll(offset, total, visibleRows int) int {
	if total <= visibleRows {
		return 0
	}
	maxOffset := total - visibleRows
	if offset < 0 {
		return 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

// NotesState holds the state for the notes pane.
type NotesState struct {
	Open         bool
	Notes        []Note
	Filter       NoteKind
	ScrollOffset int
}

// NewNotesState creates the notes pane state for doc.
func NewNotesState(doc *mtree.Document) *NotesState {
	return &NotesState{Notes: collectNotes(doc)}
}

// Toggle toggles the notes pane open/closed.
func (s *NotesState) Toggle() {
	s.Open = !s.Open
}

// SetFilter sets the filter and resets the scroll position.
func (s *NotesState) SetFilter(kind NoteKind) {
	s.Filter = kind
	s.ScrollOffset = 0
}

// ScrollUp scrolls up by one line.
func (s *NotesState) ScrollUp() {
	if s.ScrollOffset > 0 {
		s.ScrollOffset--
	}
}

// ScrollDown scrolls down by one line.
func (s *NotesState) ScrollDown(visibleRows int) {
	maxOffset := max(len(s.Visible())-visibleRows, 0)
	if s.ScrollOffset < maxOffset {
		s.ScrollOffset++
	}
}

// Visible returns the notes that pass the current filter.
func (s *NotesState) Visible() []Note {
	return filterNotes(s.Notes, s.Filter)
}

// renderNotes renders the notes pane.
func renderNotes(s *NotesState, width, height int) string {
	if height < 3 {
		return ""
	}

	var b strings.Builder

	title := titleStyle.Render(fmt.Sprintf(" Notes [%s] ", s.Filter))
	b.WriteString(title + mutedTextStyle.Render("[1-3] filter  [w] close"))
	b.WriteString("\n")
	b.WriteString(renderDivider(width))
	b.WriteString("\n")

	visibleRows := max(height-2, 1)
	filtered := s.Visible()
	s.ScrollOffset = clampScroll(s.ScrollOffset, len(filtered), visibleRows)

	if len(filtered) == 0 {
		b.WriteString(mutedTextStyle.Render("  (none)"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(s.ScrollOffset+visibleRows, len(filtered))
	for _, n := range filtered[s.ScrollOffset:end] {
		b.WriteString(renderNote(n, width))
		b.WriteString("\n")
	}

	if len(filtered) > visibleRows {
		indicator := mutedTextStyle.Render(fmt.Sprintf(" [%d/%d]", s.ScrollOffset+1, len(filtered)))
		if padding := width - lipgloss.Width(indicator); padding > 0 {
			b.WriteString(strings.Repeat(" ", padding))
		}
		b.WriteString(indicator)
	}

	return b.String()
}

// renderNote renders one note, truncated to width.
func renderNote(n Note, width int) string {
	prefix := warningTextStyle.Render("[W]")
	text := n.Text
	if n.Kind == NoteUnknownKeyword {
		prefix = mutedTextStyle.Render("[K]")
		text = "unknown keyword: " + text
	}

	msgWidth := max(width-4, 10)
	if len(text) > msgWidth {
		text = text[:msgWidth-3] + "..."
	}
	return prefix + " " + text
}
