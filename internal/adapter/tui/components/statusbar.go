package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "r"
	Desc string // e.g. "Retry"
}

// StatusBarModel renders a bottom status bar with keybinding hints on the
// left and context (session handle, phase) on the right.
type StatusBarModel struct {
	Hints   []KeyHint
	Context []string
	Extra   string
	width   int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var right string
	var ctx []string
	for _, c := range m.Context {
		if c != "" {
			ctx = append(ctx, c)
		}
	}
	if len(ctx) > 0 {
		right = theme.TextMuted.Render(strings.Join(ctx, " "+theme.SymbolBullet+" "))
	}
	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
