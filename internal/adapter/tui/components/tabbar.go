package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
)

// Tab is one entry of a tab bar.
type Tab struct {
	ID    string
	Label string
	Count int // shown after the label when > 0
}

// TabBarModel is a horizontal tab bar. The parent routes keys to Next,
// Prev and SetActive.
type TabBarModel struct {
	Tabs   []Tab
	Active int
	width  int
}

// NewTabBar creates a tab bar with the first tab active.
func NewTabBar(tabs []Tab) TabBarModel {
	return TabBarModel{Tabs: tabs}
}

// SetWidth updates the available width.
func (m *TabBarModel) SetWidth(w int) { m.width = w }

// Next activates the next tab, wrapping around.
func (m *TabBarModel) Next() {
	if len(m.Tabs) > 0 {
		m.Active = (m.Active + 1) % len(m.Tabs)
	}
}

// Prev activates the previous tab, wrapping around.
func (m *TabBarModel) Prev() {
	if len(m.Tabs) > 0 {
		m.Active = (m.Active - 1 + len(m.Tabs)) % len(m.Tabs)
	}
}

// SetActive activates tab i when it exists.
func (m *TabBarModel) SetActive(i int) {
	if i >= 0 && i < len(m.Tabs) {
		m.Active = i
	}
}

// SetCount updates the counter of the tab with id.
func (m *TabBarModel) SetCount(id string, n int) {
	for i := range m.Tabs {
		if m.Tabs[i].ID == id {
			m.Tabs[i].Count = n
		}
	}
}

// View renders the bar. Narrow terminals only show the active tab.
func (m TabBarModel) View() string {
	if len(m.Tabs) == 0 {
		return ""
	}

	parts := make([]string, 0, len(m.Tabs))
	for i, t := range m.Tabs {
		label := fmt.Sprintf("%d %s", i+1, t.Label)
		if t.Count > 0 {
			label += fmt.Sprintf(" (%d)", t.Count)
		}
		style := theme.TabNormal
		if i == m.Active {
			style = theme.TabActive
		}
		parts = append(parts, style.Render(label))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)

	if m.width > 0 && lipgloss.Width(bar) > m.width {
		return parts[m.Active] + theme.Dim.Render(fmt.Sprintf(" [%d/%d]", m.Active+1, len(m.Tabs)))
	}
	return bar
}
