// Package prompt renders setup actions as interactive Bubble Tea widgets.
// Each prompt owns only its transient input state and, when the user acts,
// emits exactly one SubmitMsg carrying a response bound to the action's
// correlation id.
package prompt

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// SubmitMsg is emitted when the user answers a prompt.
type SubmitMsg struct {
	Response domain.UserResponse
}

// Prompt is a renderer for one pending action.
type Prompt interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Prompt, tea.Cmd)
	View() string
	SetWidth(w int)
	// Action returns the action this prompt answers.
	Action() domain.Action
}

// New builds the prompt for a.
func New(a domain.Action) (Prompt, error) {
	switch v := a.(type) {
	case domain.FormAction:
		return NewForm(v), nil
	case domain.WizardAction:
		return NewWizard(v), nil
	case domain.ConfirmAction:
		return NewConfirm(v), nil
	case domain.OAuthFlowAction:
		return NewOAuth(v), nil
	case domain.APIKeyEntryAction:
		return NewAPIKey(v), nil
	case domain.CLISelectionAction:
		return NewCLISelect(v), nil
	}
	return nil, fmt.Errorf("prompt for %T: %w", a, domain.ErrInvalidInput)
}

func submit(r domain.UserResponse) tea.Cmd {
	return func() tea.Msg { return SubmitMsg{Response: r} }
}

// button renders a labelled button in its focus state.
func button(label string, focused, disabled bool) string {
	switch {
	case disabled:
		return theme.ButtonDisabled.Render(label)
	case focused:
		return theme.ButtonFocused.Render(label)
	}
	return theme.Button.Render(label)
}

func buttonRow(buttons ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

func hints(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, theme.StatusKey.Render(pairs[i])+" "+theme.TextMuted.Render(pairs[i+1]))
	}
	return strings.Join(parts, theme.TextMuted.Render("  "+theme.SymbolBullet+"  "))
}

func contentWidth(w int) int {
	if w <= 0 {
		return 60
	}
	return theme.Clamp(w-4, 20, theme.MaxContentWidth)
}
