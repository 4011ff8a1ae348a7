package tabs

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/adapter/tui/theme"
)

// ConfigModel displays the effective configuration as read-only YAML.
type ConfigModel struct {
	Viewport viewport.Model
	source   string
	content  string
	ready    bool
}

// NewConfig creates the config tab. source names where the config came from.
func NewConfig(source string) ConfigModel {
	return ConfigModel{source: source}
}

// SetSize sets dimensions. One line is reserved for the header.
func (m *ConfigModel) SetSize(w, h int) {
	if h > 1 {
		h--
	}
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.Viewport.SetContent(m.content)
}

// SetContent sets the YAML to show.
func (m *ConfigModel) SetContent(yaml string) {
	m.content = yaml
	if m.ready {
		m.Viewport.SetContent(m.content)
	}
}

// Update handles viewport scrolling.
func (m ConfigModel) Update(msg tea.Msg) (ConfigModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the config tab.
func (m ConfigModel) View() string {
	header := "  Effective configuration (read-only)"
	if m.source != "" {
		header += " from " + m.source
	}
	if !m.ready {
		return theme.TextMuted.Render(header)
	}
	return theme.TextMuted.Render(header) + "\n" + m.Viewport.View()
}
