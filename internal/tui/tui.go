// Package tui is an interactive terminal front end for a todo session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"mytodos/internal/models"
	"mytodos/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5f9fb0"))
	activeTab     = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d16d7a"))
	doneStyle     = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("#6c757d"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
)

// opDoneMsg reports that a controller operation finished. The outcome is
// read back from the controller's snapshot.
type opDoneMsg struct{}

// Model is the bubbletea model over a session controller.
type Model struct {
	ctx    context.Context
	ctl    *session.Controller
	input  textinput.Model
	cursor int
}

// New returns a model driving ctl. Operations run with ctx.
func New(ctx context.Context, ctl *session.Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 500
	ti.Focus()
	ti.SetValue(ctl.Input())

	return Model{ctx: ctx, ctl: ctl, input: ti}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, ctl *session.Controller) error {
	_, err := tea.NewProgram(New(ctx, ctl), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run(m.ctl.Load))
}

// run performs op off the update loop.
func (m Model) run(op func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = op(ctx)
		return opDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opDoneMsg:
		m.input.SetValue(m.ctl.Input())
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.ctl.SetFilter(m.ctl.Filter().Next())
			m.clampCursor()
			return m, nil
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down":
			m.cursor++
			m.clampCursor()
			return m, nil
		case "ctrl+t":
			if item, ok := m.selected(); ok {
				id := item.ID
				return m, m.run(func(ctx context.Context) error { return m.ctl.ToggleItem(ctx, id) })
			}
			return m, nil
		case "ctrl+d":
			if item, ok := m.selected(); ok {
				id := item.ID
				return m, m.run(func(ctx context.Context) error { return m.ctl.DeleteItem(ctx, id) })
			}
			return m, nil
		case "enter":
			if m.ctl.Pending() {
				return m, nil
			}
			m.ctl.SetInput(m.input.Value())
			return m, m.run(m.ctl.Submit)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctl.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) selected() (models.Item, bool) {
	visible := m.ctl.VisibleItems()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return models.Item{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctl.VisibleItems())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	snap := m.ctl.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render("todos"))
	b.WriteString("\n\n")

	tabs := make([]string, 0, len(models.FilterModes))
	for _, mode := range models.FilterModes {
		if mode == snap.Filter {
			tabs = append(tabs, activeTab.Render(mode.String()))
		} else {
			tabs = append(tabs, inactiveTab.Render(mode.String()))
		}
	}
	b.WriteString(strings.Join(tabs, "  "))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if len(snap.Visible) == 0 {
		b.WriteString(mutedStyle.Render("  nothing here"))
		b.WriteString("\n")
	}
	for i, item := range snap.Visible {
		check := "[ ]"
		text := item.Text
		if item.Completed {
			check = "[x]"
			text = doneStyle.Render(text)
		}
		line := fmt.Sprintf("%s %s", check, text)
		if !item.CreatedAt.IsZero() {
			line += mutedStyle.Render("  " + humanize.Time(item.CreatedAt))
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "))
		} else {
			b.WriteString("  ")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if msg, ok := snap.Error.Get(); ok {
		b.WriteString(errorStyle.Render(msg))
		b.WriteString("\n")
	}
	if snap.Pending {
		b.WriteString(mutedStyle.Render("saving..."))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("enter add • tab filter • ctrl+t toggle • ctrl+d delete • esc quit"))
	b.WriteString("\n")
	return b.String()
}
