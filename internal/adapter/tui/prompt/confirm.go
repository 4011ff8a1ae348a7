package prompt

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// Confirm renders a yes/no question.
type Confirm struct {
	action domain.ConfirmAction
	yes    bool
	width  int
}

func NewConfirm(a domain.ConfirmAction) *Confirm {
	return &Confirm{action: a, yes: true}
}

// ConfirmLabels returns the button labels, defaulting to Confirm/Cancel.
func ConfirmLabels(a domain.ConfirmAction) (confirm, cancel string) {
	confirm, cancel = domain.Deref(a.ConfirmLabel, ""), domain.Deref(a.CancelLabel, "")
	if confirm == "" {
		confirm = "Confirm"
	}
	if cancel == "" {
		cancel = "Cancel"
	}
	return confirm, cancel
}

func (c *Confirm) Action() domain.Action { return c.action }
func (c *Confirm) Init() tea.Cmd         { return nil }
func (c *Confirm) SetWidth(w int)        { c.width = w }

func (c *Confirm) answer(yes bool) tea.Cmd {
	return submit(domain.ConfirmResponse{ConfirmID: c.action.ConfirmID, Confirmed: yes})
}

func (c *Confirm) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}
	switch key.String() {
	case "left", "right", "tab", "shift+tab", "h", "l":
		c.yes = !c.yes
	case "enter":
		return c, c.answer(c.yes)
	case "y":
		return c, c.answer(true)
	case "n":
		return c, c.answer(false)
	}
	return c, nil
}

func (c *Confirm) View() string {
	ok, cancel := ConfirmLabels(c.action)
	return theme.BorderActive.Width(contentWidth(c.width)).Render(lipgloss.JoinVertical(lipgloss.Left,
		theme.WizardTitle.Render(c.action.Title),
		c.action.Message,
		"",
		buttonRow(button(ok, c.yes, false), " ", button(cancel, !c.yes, false)),
		hints("←/→", "choose", "enter", "select", "y/n", "answer"),
	))
}
