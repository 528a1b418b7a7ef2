package tui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/tree"
)

var logger = logging.Get("tui")

// AppState represents the current state of the application.
type AppState int

const (
	StateLoading AppState = iota
	StateBrowse
	StateError
)

// ErrNoLoader is returned by Run when Options.Load is nil.
var ErrNoLoader = errors.New("no manifest loader")

// Options configures the browser.
type Options struct {
	// Source names the manifest in the header, e.g. its file name.
	Source string

	// Load reads and parses the manifest. It runs off the UI goroutine.
	Load func() (*mtree.Document, error)
}

// Model is the main Bubble Tea model for the manifest browser.
type Model struct {
	state   AppState
	options Options

	loader   LoadModel
	doc      *mtree.Document
	treeView *TreeView
	notes    *NotesState
	stats    headerStats
	err      error

	// marked holds the paths to print when the user quits with q.
	marked []string

	width  int
	height int
}

// NewModel creates a new browser model with the given options.
func NewModel(opts Options) Model {
	return Model{
		state:   StateLoading,
		options: opts,
		loader:  NewLoadModel(opts.Source),
		width:   80,
		height:  24,
	}
}

// Init starts the spinner and the parse.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loader.Init(), m.load())
}

func (m Model) load() tea.Cmd {
	load := m.options.Load
	return func() tea.Msg {
		start := time.Now()
		doc, err := load()
		return LoadedMsg{Doc: doc, Err: err, Elapsed: time.Since(start)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.loader.SetSize(msg.Width, msg.Height)
		return m, nil

	case LoadedMsg:
		m.loader, _ = m.loader.Update(msg)
		if msg.Err != nil {
			logger.Error("failed to load manifest", "source", m.options.Source, "error", msg.Err)
			m.state = StateError
			m.err = msg.Err
			return m, nil
		}
		m.setDocument(msg.Doc, msg.Elapsed)
		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) setDocument(doc *mtree.Document, elapsed time.Duration) {
	m.doc = doc
	m.treeView = NewTreeView(tree.Build(doc))
	m.notes = NewNotesState(doc)
	m.stats = newHeaderStats(doc, elapsed)
	m.state = StateBrowse
	logger.Debug("manifest loaded", "source", m.options.Source, "entries", doc.Len(), "elapsed", elapsed)
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.marked = nil
		return m, tea.Quit
	}

	switch m.state {
	case StateLoading:
		return m, nil
	case StateError:
		return m, tea.Quit
	}

	if m.notes.Open {
		switch key {
		case "w", "esc":
			m.notes.Toggle()
		case "1":
			m.notes.SetFilter(NoteAll)
		case "2":
			m.notes.SetFilter(NoteWarning)
		case "3":
			m.notes.SetFilter(NoteUnknownKeyword)
		case "up", "k":
			m.notes.ScrollUp()
		case "down", "j":
			m.notes.ScrollDown(m.notesHeight() - 2)
		case "q":
			m.marked = m.treeView.MarkedPaths()
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "q":
		m.marked = m.treeView.MarkedPaths()
		return m, tea.Quit
	case "up", "k":
		m.treeView.MoveUp()
	case "down", "j":
		m.treeView.MoveDown()
	case "pgup":
		m.treeView.PageUp(m.bodyHeight())
	case "pgdown":
		m.treeView.PageDown(m.bodyHeight())
	case "enter", "right", "l":
		m.treeView.Toggle()
	case "left", "h":
		m.treeView.Collapse()
	case " ":
		m.treeView.ToggleMark()
		m.stats.Marked = m.treeView.MarkedCount()
	case "n":
		m.treeView.ClearMarks()
		m.stats.Marked = 0
	case "e":
		m.treeView.ExpandAll()
	case "c":
		m.treeView.CollapseAll()
	case "w":
		m.notes.Toggle()
	}
	return m, nil
}

// Marked returns the paths marked when the user quit with q.
func (m Model) Marked() []string {
	return m.marked
}

// Err returns the load error, if any.
func (m Model) Err() error {
	return m.err
}

// bodyHeight is the number of rows available to the tree pane.
func (m Model) bodyHeight() int {
	// outer border (2) + header + divider + help bar + divider
	h := m.height - 6
	if m.notes != nil && m.notes.Open {
		h -= m.notesHeight()
	}
	return max(h, 3)
}

func (m Model) notesHeight() int {
	return max(m.height/3, 5)
}

// View renders the current state.
func (m Model) View() string {
	if m.state != StateBrowse {
		return m.loader.View()
	}

	contentWidth := max(m.width-4, 40)
	treeWidth := contentWidth * 3 / 5
	detailWidth := contentWidth - treeWidth - 1
	body := m.bodyHeight()

	var b strings.Builder
	b.WriteString(renderAppHeader(m.options.Source, m.stats))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")

	treePane := m.treeView.View(treeWidth, body)
	detailPane := renderDetail(m.treeView.Selected(), detailWidth-4, body-2)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, treePane, " ", detailPane))
	b.WriteString("\n")

	if m.notes.Open {
		b.WriteString(renderNotes(m.notes, contentWidth, m.notesHeight()))
		b.WriteString("\n")
	}

	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderHelpBar([][2]string{
		{"Space", "Mark"},
		{"Enter", "Open"},
		{"e/c", "Expand/Collapse all"},
		{"w", "Notes"},
		{"q", "Quit"},
	}))
	b.WriteString(renderLoadMetrics(m.stats.LoadTime))

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// Run starts the browser and blocks until the user quits. It returns the
// paths marked at the time the user pressed q; ctrl+c returns none.
func Run(opts Options) ([]string, error) {
	if opts.Load == nil {
		return nil, ErrNoLoader
	}

	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	m, ok := final.(Model)
	if !ok {
		return nil, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.marked, nil
}
