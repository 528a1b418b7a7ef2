package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// LoadedMsg carries the parsed manifest, or the parse error.
type LoadedMsg struct {
	Doc     *mtree.Document
	Err     error
	Elapsed time.Duration
}

// LoadModel is the screen shown while the manifest is parsed. After a
// failed parse it shows the error until a key is pressed.
type LoadModel struct {
	spinner       spinner.Model
	source        string
	started       time.Time
	width, height int
	err           error
}

// NewLoadModel returns the loading screen for source.
func NewLoadModel(source string) LoadModel {
	return LoadModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Points), spinner.WithStyle(spinnerStyle)),
		source:  source,
		started: time.Now(),
		width:   80,
		height:  24,
	}
}

// SetSize records the terminal size.
func (m *LoadModel) SetSize(width, height int) {
	m.width, m.height = width, height
}

func (m LoadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m LoadModel) Update(msg tea.Msg) (LoadModel, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m LoadModel) View() string {
	inner := max(m.width-4, 40)

	var status string
	if m.err != nil {
		status = lipgloss.JoinVertical(lipgloss.Left,
			errorTextStyle.Render("Error: "+m.err.Error()),
			"",
			mutedTextStyle.Render("Press any key to exit"),
		)
	} else {
		elapsed := time.Since(m.started).Round(100 * time.Millisecond)
		status = m.spinner.View() + " Parsing " + truncatePath(m.source, inner-30) +
			"  " + mutedTextStyle.Render(elapsed.String())
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("mtreex"),
		renderDivider(inner),
		"",
		status,
	)
	return outerBoxStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.PlaceVertical(max(m.height-4, 1), lipgloss.Top, body))
}
