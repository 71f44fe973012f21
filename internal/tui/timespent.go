// Package tui is the terminal surface for the time-spent prompt. It renders
// the shared completion.Coordinator and forwards keystrokes to it.
package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pbaille/learnlog/internal/completion"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
	headerStyle     = lipgloss.NewStyle().Bold(true)
	validationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// TimeSpent is a Bubble Tea model over a Coordinator
type TimeSpent struct {
	coord *completion.Coordinator
	input textinput.Model
	label string
}

// NewTimeSpent builds the prompt; label names the resource being completed
func NewTimeSpent(coord *completion.Coordinator, label string) TimeSpent {
	ti := textinput.New()
	ti.Placeholder = "e.g. 60"
	ti.CharLimit = 6
	ti.Width = 12
	ti.SetValue(coord.Input())
	ti.Focus()

	return TimeSpent{coord: coord, input: ti, label: label}
}

func (m TimeSpent) Init() tea.Cmd {
	return textinput.Blink
}

func (m TimeSpent) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.coord.IsOpen() {
		return m, tea.Quit
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.coord.SetInput(m.input.Value())
			err := m.coord.Submit()
			if err == nil || errors.Is(err, completion.ErrNotOpen) {
				return m, tea.Quit
			}
			return m, nil
		case tea.KeyEsc, tea.KeyCtrlC:
			m.coord.Close()
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.coord.SetInput(m.input.Value())
	return m, cmd
}

func (m TimeSpent) View() string {
	if !m.coord.IsOpen() {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Enter Actual Time Spent (in minutes)"))
	if m.label != "" {
		b.WriteString("\n")
		b.WriteString(m.label)
	}
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	if v := m.coord.Validation(); v != "" {
		b.WriteString("\n")
		b.WriteString(validationStyle.Render(v))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter: save & complete • esc: cancel"))

	return boxStyle.Render(b.String()) + "\n"
}

// Run shows the prompt until the coordinator closes. Cancelling ctx closes it.
func Run(ctx context.Context, coord *completion.Coordinator, label string, in io.Reader, out io.Writer) error {
	if !coord.IsOpen() {
		return completion.ErrNotOpen
	}

	p := tea.NewProgram(NewTimeSpent(coord, label),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out))

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
		coord.Close()
		return ctx.Err()
	}
	return err
}
