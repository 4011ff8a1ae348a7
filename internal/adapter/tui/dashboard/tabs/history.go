package tabs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// HistoryModel shows outcome totals and the recent setup sessions.
type HistoryModel struct {
	Viewport viewport.Model
	sessions []domain.SessionRecord
	err      string
	ready    bool
	width    int
}

// NewHistory creates the history tab.
func NewHistory() HistoryModel {
	return HistoryModel{}
}

// SetSize sets dimensions.
func (m *HistoryModel) SetSize(w, h int) {
	m.width = w
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.Viewport.SetContent(m.render())
}

// SetSessions replaces the listed sessions.
func (m *HistoryModel) SetSessions(recs []domain.SessionRecord) {
	m.sessions = recs
	m.err = ""
	if m.ready {
		m.Viewport.SetContent(m.render())
	}
}

// SetError shows a load failure.
func (m *HistoryModel) SetError(msg string) {
	m.err = msg
	if m.ready {
		m.Viewport.SetContent(m.render())
	}
}

// Len returns the number of sessions shown.
func (m HistoryModel) Len() int { return len(m.sessions) }

// Update handles viewport scrolling.
func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the history tab.
func (m HistoryModel) View() string {
	if !m.ready {
		return m.render()
	}
	return m.Viewport.View()
}

func (m HistoryModel) render() string {
	if m.err != "" {
		return theme.TextError.Render("  " + theme.SymbolError + " " + m.err)
	}

	var sb strings.Builder
	counts := map[domain.SessionOutcome]int{}
	for _, s := range m.sessions {
		counts[s.Outcome]++
	}
	stats := []struct {
		label string
		value int
	}{
		{"Sessions", len(m.sessions)},
		{"Complete", counts[domain.OutcomeComplete]},
		{"Failed", counts[domain.OutcomeFailed]},
		{"Cancelled", counts[domain.OutcomeCancelled]},
	}
	parts := make([]string, 0, len(stats))
	for _, s := range stats {
		parts = append(parts, theme.StatLabel.Render(s.label)+": "+theme.StatValue.Render(fmt.Sprintf("%d", s.value)))
	}
	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render("|")
	sb.WriteString("  " + strings.Join(parts, "  "+sep+"  ") + "\n\n")

	if len(m.sessions) == 0 {
		sb.WriteString(theme.TextMuted.Render("  No setup sessions recorded") + "\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-17s %-10s %-10s %-6s %s\n",
		"Started", "Target", "Outcome", "Turns", "Summary"))
	for _, s := range m.sessions {
		target := s.CLI
		if target == "" {
			target = "all"
		}
		sb.WriteString(fmt.Sprintf("  %-17s %-10s %s %-6d %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			target,
			outcomeLabel(s.Outcome),
			s.Turns,
			s.Summary,
		))
	}
	return sb.String()
}

func outcomeLabel(o domain.SessionOutcome) string {
	label := fmt.Sprintf("%-10s", o)
	switch o {
	case domain.OutcomeComplete:
		return theme.TextSuccess.Render(label)
	case domain.OutcomeFailed:
		return theme.TextError.Render(label)
	case domain.OutcomeCancelled:
		return theme.TextWarning.Render(label)
	}
	return theme.TextMuted.Render(label)
}
