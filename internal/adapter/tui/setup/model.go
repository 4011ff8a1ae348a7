package setup

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/components"
	"oulipoly-plane/internal/adapter/tui/theme"
)

// CompleteTitle heads the completion screen.
const CompleteTitle = "Setup Complete"

// ScreenModel is the root model of the first-run setup screen. It hosts a
// SessionModel until the session completes or the user cancels, then
// shows the completion summary.
type ScreenModel struct {
	phase   Phase
	session SessionModel
	status  components.StatusBarModel

	summary   string
	items     []string
	completed bool
	cancelled bool
	embedded  bool
	width     int
	height    int
}

// NewScreenModel creates the setup screen around e.
func NewScreenModel(e Engine, title string) ScreenModel {
	return ScreenModel{
		phase:   PhaseSession,
		session: NewSessionModel(e, title),
		status:  components.NewStatusBar(),
	}
}

// Embedded makes the screen report FinishedMsg instead of quitting the
// program, for hosting inside another model.
func (m ScreenModel) Embedded() ScreenModel {
	m.embedded = true
	return m
}

// Tagged binds the screen to the engine whose bridge hooks carry tag.
func (m ScreenModel) Tagged(tag Tag) ScreenModel {
	m.session.tag = tag
	return m
}

// Phase returns the current screen.
func (m ScreenModel) Phase() Phase { return m.phase }

// Session returns the hosted session view.
func (m ScreenModel) Session() SessionModel { return m.session }

// Completed reports whether the session reached complete.
func (m ScreenModel) Completed() bool { return m.completed }

// Cancelled reports whether the user cancelled the session.
func (m ScreenModel) Cancelled() bool { return m.cancelled }

// Summary returns the completion summary and configured items.
func (m ScreenModel) Summary() (string, []string) { return m.summary, m.items }

// Init starts the session.
func (m ScreenModel) Init() tea.Cmd {
	return m.session.Init()
}

// Update handles messages.
func (m ScreenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.status.SetWidth(msg.Width)
		m.session.SetSize(msg.Width, msg.Height)
		return m, nil

	case CompletedMsg:
		if msg.Tag != m.session.tag || m.phase == PhaseComplete || m.cancelled {
			return m, nil
		}
		m.completed = true
		m.summary = msg.Summary
		m.items = msg.Items
		m.phase = PhaseComplete
		return m, nil

	case CancelledMsg:
		if msg.Tag != m.session.tag || m.completed || m.cancelled {
			return m, nil
		}
		m.cancelled = true
		m.session, _ = m.session.Update(msg)
		return m, m.done()
	}

	if m.phase == PhaseComplete {
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "enter", "q", "esc", "ctrl+c":
				return m, m.done()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.session, cmd = m.session.Update(msg)
	if m.session.Cancelled() && !m.cancelled && !m.completed {
		m.cancelled = true
		if cmd == nil {
			return m, m.done()
		}
		return m, tea.Batch(cmd, m.done())
	}
	return m, cmd
}

func (m ScreenModel) done() tea.Cmd {
	if !m.embedded {
		return tea.Quit
	}
	completed := m.completed
	return func() tea.Msg { return FinishedMsg{Completed: completed} }
}

// View renders the active screen.
func (m ScreenModel) View() string {
	if m.phase == PhaseSession {
		return m.session.View()
	}

	var b strings.Builder
	b.WriteString(theme.TextSuccess.Render(theme.SymbolSuccess + " " + CompleteTitle))
	b.WriteString("\n\n")
	if m.summary != "" {
		b.WriteString(theme.TextAccent.Render(m.summary))
		b.WriteString("\n\n")
	}
	if len(m.items) > 0 {
		chips := make([]string, 0, len(m.items))
		for _, it := range m.items {
			chips = append(chips, theme.Chip.Render(it))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, chips...))
		b.WriteString("\n\n")
	}
	m.status.Hints = []components.KeyHint{{Key: "enter", Desc: "Continue"}}
	box := theme.BorderNormal.Width(theme.Clamp(m.width-6, 20, theme.MaxContentWidth)).Render(strings.TrimRight(b.String(), "\n"))
	return lipgloss.NewStyle().Padding(1, 2).Render(box + "\n\n" + m.status.View())
}
