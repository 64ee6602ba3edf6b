// Package ui implements the status monitor for mousecap.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"

	"mousecap/internal/capture"
)

type phaseStyle struct {
	title string
	style gloss.Style
}

var phaseStyles = map[capture.Phase]phaseStyle{
	capture.PhaseIdle: {
		title: "idle",
		style: gloss.NewStyle().Foreground(gloss.Color("8")),
	},
	capture.PhaseWatching: {
		title: "watching",
		style: gloss.NewStyle().Foreground(gloss.Color("11")),
	},
	capture.PhaseFlushed: {
		title: "flushed",
		style: gloss.NewStyle().Foreground(gloss.Color("10")),
	},
}

var (
	cyanStyle = gloss.NewStyle().Foreground(gloss.Color("14"))
	grayStyle = gloss.NewStyle().Foreground(gloss.Color("8"))
)

// Model renders the watcher's most recent status.
type Model struct {
	status capture.Status
	seen   bool
}

// NewModel creates an empty monitor model.
func NewModel() Model {
	return Model{}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case capture.Status:
		m.status = msg
		m.seen = true
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	style, ok := phaseStyles[m.status.Phase]
	if !ok {
		style = phaseStyles[capture.PhaseIdle]
	}
	out := "\n" + style.style.Render("  STATUS: "+style.title) + "\n\n"
	out += cyanStyle.Render("  Anchor    Cycles    Flushes\n")
	if m.seen {
		out += fmt.Sprintf(
			"  %s%s%d\n",
			pad(fmt.Sprintf("%d,%d", m.status.X, m.status.Y), 10),
			pad(fmt.Sprintf("%d", m.status.Cycles), 10),
			m.status.Flushes,
		)
	} else {
		out += grayStyle.Render("  waiting for the watcher...\n")
	}
	out += grayStyle.Render("\n  q: quit\n")
	return out
}

// Run subscribes to the watcher and blocks until the user quits.
func Run(mcap *capture.Capture) error {
	ch := make(chan capture.Status, 32)
	mcap.Subscribe(ch)
	p := tea.NewProgram(NewModel())
	go func() {
		for status := range ch {
			p.Send(status)
		}
	}()
	_, err := p.Run()
	return err
}

func pad(str string, length int) string {
	for len(str) < length {
		str += " "
	}
	return str
}
