package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/components"
	"oulipoly-plane/internal/adapter/tui/prompt"
	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/adapter/tui/uxerror"
	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/usecase/session"
)

// Labels of the recovery controls.
const (
	RetryLabel      = "Retry Setup"
	StartFreshLabel = "Start Fresh"
	CancelLabel     = "Cancel"
	StaleMessage    = "The setup session is no longer active."
)

// SessionModel renders one engine's state: status, progress, error banner,
// the active prompt, the result log and the recovery panels. Engine calls
// always run inside commands so hooks can post back into the program.
type SessionModel struct {
	engine Engine
	title  string
	tag    Tag

	state       session.State
	prompt      prompt.Prompt
	promptSince uint64
	notice      string

	// panelFocus selects the recovery button: 0 primary, 1 Cancel.
	panelFocus int

	spinner  spinner.Model
	progress progress.Model
	log      components.ResultLogModel
	status   components.StatusBarModel

	cancelled bool
	width     int
	height    int
}

// NewSessionModel creates a view over e. The session starts on Init.
func NewSessionModel(e Engine, title string) SessionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())

	return SessionModel{
		engine:   e,
		title:    title,
		state:    e.Snapshot(),
		spinner:  s,
		progress: p,
		log:      components.NewResultLog(),
		status:   components.NewStatusBar(),
	}
}

// State returns the last applied snapshot.
func (m SessionModel) State() session.State { return m.state }

// Prompt returns the active prompt, or nil.
func (m SessionModel) Prompt() prompt.Prompt { return m.prompt }

// Cancelled reports whether the user cancelled from this view.
func (m SessionModel) Cancelled() bool { return m.cancelled }

// Init starts the session.
func (m SessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, startCmd(m.engine.Start, m.engine.Snapshot, m.tag))
}

// SetSize lays out the view.
func (m *SessionModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	cw := theme.Clamp(w-4, 20, theme.MaxContentWidth)
	m.progress.Width = theme.Clamp(cw-10, 10, 60)
	m.status.SetWidth(w)
	if m.prompt != nil {
		m.prompt.SetWidth(cw)
	}
	m.log.SetSize(cw, theme.Clamp(h/3, 4, 20))
}

// Update handles messages.
func (m SessionModel) Update(msg tea.Msg) (SessionModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case StateMsg:
		if msg.Tag != m.tag {
			return m, nil
		}
		return m.apply(msg.State)

	case CancelledMsg:
		if msg.Tag == m.tag {
			m.cancelled = true
		}
		return m, nil

	case prompt.SubmitMsg:
		m.notice = ""
		return m, respondCmd(m.engine, msg.Response, m.tag)

	case respondFailedMsg:
		m.notice = uxerror.Humanize(msg.Err).Line()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	if m.prompt != nil {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply installs a snapshot. Older snapshots are discarded; a prompt is
// rebuilt only when a new need_input was delivered.
func (m SessionModel) apply(s session.State) (SessionModel, tea.Cmd) {
	if s.Version < m.state.Version {
		return m, nil
	}
	prev := m.state
	m.state = s
	m.log.SetResults(s.Results)
	if s.Phase == session.PhaseCancelled {
		m.cancelled = true
	}
	if s.Phase != prev.Phase {
		m.panelFocus = 0
	}

	var cmd tea.Cmd
	switch {
	case s.Pending == nil:
		m.prompt = nil
		m.promptSince = 0
	case m.prompt == nil || s.PendingSince != m.promptSince:
		p, err := prompt.New(s.Pending)
		if err != nil {
			m.prompt = nil
			m.notice = err.Error()
			break
		}
		p.SetWidth(theme.Clamp(m.width-4, 20, theme.MaxContentWidth))
		m.prompt = p
		m.promptSince = s.PendingSince
		m.notice = ""
		cmd = p.Init()
	}
	return m, cmd
}

func (m SessionModel) handleKey(msg tea.KeyMsg) (SessionModel, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		return m, cancelCmd(m.engine, m.tag)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd
	}

	switch {
	case m.state.ShowRetry():
		return m.panelKey(key, "r", m.engine.Retry)
	case m.state.ShowStale():
		return m.panelKey(key, "f", m.engine.FreshStart)
	}

	if m.prompt != nil {
		if key == "ctrl+x" {
			return m, respondCmd(m.engine, domain.CancelResponse{}, m.tag)
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	if key == "esc" && !m.state.Terminal() {
		return m, cancelCmd(m.engine, m.tag)
	}
	return m, nil
}

// panelKey drives the Retry and Start Fresh panels. Both offer the
// primary action and Cancel.
func (m SessionModel) panelKey(key, shortcut string, primary func(context.Context)) (SessionModel, tea.Cmd) {
	switch key {
	case "tab", "left", "right", "shift+tab":
		m.panelFocus = 1 - m.panelFocus
		return m, nil
	case shortcut:
		return m, startCmd(primary, m.engine.Snapshot, m.tag)
	case "c", "esc":
		return m, cancelCmd(m.engine, m.tag)
	case "enter", " ":
		if m.panelFocus == 1 {
			return m, cancelCmd(m.engine, m.tag)
		}
		return m, startCmd(primary, m.engine.Snapshot, m.tag)
	}
	return m, nil
}

// View renders the session.
func (m SessionModel) View() string {
	var b strings.Builder

	if m.title != "" {
		b.WriteString(theme.WizardTitle.Render(m.title))
		b.WriteString("\n\n")
	}

	if e := m.state.Error; e != nil {
		b.WriteString(m.renderError(e))
		b.WriteString("\n\n")
	}

	switch {
	case m.state.ShowRetry():
		b.WriteString(m.renderPanel(RetryLabel))
		b.WriteString("\n\n")
	case m.state.ShowStale():
		b.WriteString(theme.WarningPanel.Render(StaleMessage))
		b.WriteString("\n")
		b.WriteString(m.renderPanel(StartFreshLabel))
		b.WriteString("\n\n")
	}

	if st := m.state.Status; st != nil {
		b.WriteString(m.spinner.View() + " " + st.Message)
		b.WriteString("\n\n")
	}

	if p := m.state.Progress; p != nil {
		b.WriteString(m.renderProgress(p))
		b.WriteString("\n\n")
	}

	if m.prompt != nil {
		b.WriteString(m.prompt.View())
		b.WriteString("\n\n")
	}

	if m.notice != "" {
		b.WriteString(theme.TextError.Render(theme.SymbolError + " " + m.notice))
		b.WriteString("\n\n")
	}

	if m.log.Len() > 0 {
		b.WriteString(m.log.View())
		b.WriteString("\n\n")
	}

	m.status.Hints = m.hints()
	m.status.Context = []string{string(m.state.Handle), m.state.Phase.String()}
	if n := m.log.Len(); n > 0 {
		m.status.Extra = fmt.Sprintf("%d results", n)
	}
	b.WriteString(m.status.View())

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m SessionModel) renderError(e *session.ErrorBanner) string {
	if e.Recoverable {
		return theme.WarningPanel.Render(theme.SymbolWarning + " " + e.Message)
	}
	return theme.ErrorPanel.Render(theme.SymbolError + " " + e.Message)
}

func (m SessionModel) renderPanel(primary string) string {
	style := func(i int) lipgloss.Style {
		if m.panelFocus == i {
			return theme.ButtonFocused
		}
		return theme.Button
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		style(0).Render(primary),
		style(1).Render(CancelLabel),
	)
}

func (m SessionModel) renderProgress(p *session.Progress) string {
	var b strings.Builder
	b.WriteString(theme.TextInfo.Render(theme.SymbolInfo + " " + p.Message))
	if p.Percent != nil {
		pct := *p.Percent
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		b.WriteString("\n")
		b.WriteString(m.progress.ViewAs(pct / 100))
		b.WriteString(theme.ProgressFull.Render(fmt.Sprintf(" %3.0f%%", pct)))
	}
	if p.Detail != nil && *p.Detail != "" {
		b.WriteString("\n")
		b.WriteString(theme.TextMuted.Render(*p.Detail))
	}
	return b.String()
}

func (m SessionModel) hints() []components.KeyHint {
	switch {
	case m.state.ShowRetry():
		return []components.KeyHint{{Key: "r", Desc: "Retry"}, {Key: "c", Desc: "Cancel"}}
	case m.state.ShowStale():
		return []components.KeyHint{{Key: "f", Desc: "Start fresh"}, {Key: "c", Desc: "Cancel"}}
	case m.prompt != nil:
		return []components.KeyHint{{Key: "ctrl+x", Desc: "Abort setup"}, {Key: "pgup/pgdn", Desc: "Scroll"}}
	}
	return []components.KeyHint{{Key: "esc", Desc: "Cancel"}, {Key: "ctrl+c", Desc: "Quit"}}
}
