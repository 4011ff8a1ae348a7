package prompt

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// CLISelect lets the user choose which detected CLIs to configure.
// Installed entries start checked; entries that are not installed cannot
// be toggled.
type CLISelect struct {
	action  domain.CLISelectionAction
	checked []bool
	cursor  int
	width   int
}

func NewCLISelect(a domain.CLISelectionAction) *CLISelect {
	c := &CLISelect{action: a, checked: make([]bool, len(a.Available))}
	for i, opt := range a.Available {
		c.checked[i] = opt.Installed
	}
	return c
}

func (c *CLISelect) Action() domain.Action { return c.action }
func (c *CLISelect) Init() tea.Cmd         { return nil }
func (c *CLISelect) SetWidth(w int)        { c.width = w }

// Selected returns the checked names in the order offered.
func (c *CLISelect) Selected() []string {
	selected := []string{}
	for i, opt := range c.action.Available {
		if c.checked[i] && opt.Installed {
			selected = append(selected, opt.Name)
		}
	}
	return selected
}

// Toggle flips entry i unless it is disabled.
func (c *CLISelect) Toggle(i int) {
	if i < 0 || i >= len(c.checked) || !c.action.Available[i].Installed {
		return
	}
	c.checked[i] = !c.checked[i]
}

func (c *CLISelect) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}
	switch key.String() {
	case "down", "j", "tab":
		if len(c.checked) > 0 {
			c.cursor = (c.cursor + 1) % len(c.checked)
		}
	case "up", "k", "shift+tab":
		if len(c.checked) > 0 {
			c.cursor = (c.cursor + len(c.checked) - 1) % len(c.checked)
		}
	case " ":
		c.Toggle(c.cursor)
	case "enter":
		return c, submit(domain.CLISelectionResponse{Selected: c.Selected()})
	}
	return c, nil
}

func (c *CLISelect) View() string {
	parts := []string{theme.WizardTitle.Render(c.action.Message)}
	for i, opt := range c.action.Available {
		box := theme.SymbolUnchecked
		if c.checked[i] {
			box = theme.SymbolChecked
		}
		state := theme.TextSuccess.Render("Installed")
		name := opt.Name
		if !opt.Installed {
			box = theme.SymbolDisabled
			state = theme.TextMuted.Render("Not found")
			name = theme.Dim.Render(name)
		}
		pointer := "  "
		if i == c.cursor {
			pointer = theme.TextInfo.Render(theme.SymbolCursor + " ")
		}
		line := pointer + box + " " + name + "  " + state
		if opt.Description != "" {
			line += theme.TextMuted.Render("  " + opt.Description)
		}
		parts = append(parts, line)
	}
	parts = append(parts, "", button("Continue", true, false), hints("space", "toggle", "enter", "continue"))
	return theme.BorderActive.Width(contentWidth(c.width)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
