package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

const maxResultEntries = 200

// ResultLogModel displays the session's result log in a scrollable
// viewport that follows new entries while scrolled to the bottom.
type ResultLogModel struct {
	Viewport viewport.Model
	results  []domain.ResultContent
	ready    bool
	atBottom bool
	width    int
	height   int
}

// NewResultLog creates an empty result log.
func NewResultLog() ResultLogModel {
	return ResultLogModel{atBottom: true}
}

// SetSize sets the viewport dimensions.
func (m *ResultLogModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
}

// SetResults replaces the log contents. The session owns the ordering;
// the log only keeps the newest maxResultEntries.
func (m *ResultLogModel) SetResults(results []domain.ResultContent) {
	if len(results) > maxResultEntries {
		results = results[len(results)-maxResultEntries:]
	}
	m.results = results
	m.refreshContent()
	if m.atBottom && m.ready {
		m.Viewport.GotoBottom()
	}
}

// Len returns the number of entries shown.
func (m ResultLogModel) Len() int { return len(m.results) }

// Update handles viewport scrolling.
func (m ResultLogModel) Update(msg tea.Msg) (ResultLogModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// View renders the log.
func (m ResultLogModel) View() string {
	if len(m.results) == 0 {
		return ""
	}
	if !m.ready {
		return m.content()
	}
	return m.Viewport.View()
}

func (m ResultLogModel) content() string {
	entries := make([]string, 0, len(m.results))
	for _, r := range m.results {
		entries = append(entries, RenderResult(r, m.width))
	}
	return strings.Join(entries, "\n\n")
}

func (m *ResultLogModel) refreshContent() {
	if !m.ready {
		return
	}
	m.Viewport.SetContent(m.content())
}

// RenderResult renders one entry of the result log.
func RenderResult(c domain.ResultContent, width int) string {
	w := theme.Clamp(width-4, 20, theme.MaxContentWidth)
	switch v := c.(type) {
	case domain.CommandOutput:
		return renderCommand(v, w)
	case domain.DetectionSummary:
		return renderDetection(v)
	case domain.ConfigWritten:
		return theme.TextSuccess.Render(theme.SymbolSuccess) + " " + v.Description +
			"\n  " + theme.TextMuted.Render(v.Path)
	case domain.TestResult:
		mark, verdict := theme.TextSuccess.Render(theme.SymbolSuccess), "PASS"
		if !v.Success {
			mark, verdict = theme.TextError.Render(theme.SymbolError), "FAIL"
		}
		out := mark + " " + theme.Bold.Render(v.Model+": "+verdict)
		if v.Output != "" {
			out += "\n" + indent(truncateLines(v.Output, 6), "  ")
		}
		return out
	}
	return ""
}

func renderCommand(v domain.CommandOutput, width int) string {
	parts := []string{theme.Code.Render("$ " + v.Command)}
	if s := strings.TrimRight(v.Stdout, "\n"); s != "" {
		parts = append(parts, indent(truncateLines(s, 8), "  "))
	}
	if s := strings.TrimRight(v.Stderr, "\n"); s != "" {
		parts = append(parts, theme.TextWarning.Render(indent(truncateLines(s, 8), "  ")))
	}
	exit := fmt.Sprintf("Exit code: %d", v.ExitCode)
	if v.ExitCode != 0 {
		parts = append(parts, theme.TextError.Render(exit))
	} else {
		parts = append(parts, theme.TextMuted.Render(exit))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(strings.Join(parts, "\n"))
}

func renderDetection(v domain.DetectionSummary) string {
	rows := [][]string{{"CLI", "Installed", "Version", "Auth", "Wrappers"}}
	for _, c := range v.CLIs {
		installed, auth := theme.SymbolError, theme.SymbolError
		if c.Installed {
			installed = theme.SymbolSuccess
		}
		if c.Authenticated {
			auth = theme.SymbolSuccess
		}
		rows = append(rows, []string{
			c.Name, installed, domain.Deref(c.Version, "-"), auth, fmt.Sprint(c.WrapperCount),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	var lines []string
	for ri, r := range rows {
		cells := make([]string, len(r))
		for i, cell := range r {
			cells[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		line := strings.Join(cells, "  ")
		if ri == 0 {
			line = theme.Bold.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func truncateLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n" + theme.SymbolEllipsis + fmt.Sprintf(" (%d more lines)", len(lines)-n)
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
