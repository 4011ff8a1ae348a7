package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// APIKey collects a secret key. Enter is ignored until the trimmed value
// is non-empty.
type APIKey struct {
	action domain.APIKeyEntryAction
	input  textinput.Model
	width  int
}

func NewAPIKey(a domain.APIKeyEntryAction) *APIKey {
	ti := textinput.New()
	ti.Placeholder = "sk-..."
	ti.Width = 50
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Focus()
	return &APIKey{action: a, input: ti}
}

func (k *APIKey) Action() domain.Action { return k.action }
func (k *APIKey) Init() tea.Cmd         { return textinput.Blink }

func (k *APIKey) SetWidth(w int) {
	k.width = w
	k.input.Width = contentWidth(w) - 4
}

// Ready reports whether the key can be submitted.
func (k *APIKey) Ready() bool { return strings.TrimSpace(k.input.Value()) != "" }

func (k *APIKey) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		if !k.Ready() {
			return k, nil
		}
		return k, submit(domain.APIKeyResponse{
			Provider: k.action.Provider,
			Key:      strings.TrimSpace(k.input.Value()),
		})
	}
	var cmd tea.Cmd
	k.input, cmd = k.input.Update(msg)
	return k, cmd
}

func (k *APIKey) View() string {
	parts := []string{
		theme.WizardTitle.Render("API Key: " + k.action.Provider),
		"Enter your API key for " + theme.Code.Render(k.action.EnvVar),
		"",
		k.input.View(),
	}
	if url := domain.Deref(k.action.HelpURL, ""); url != "" {
		parts = append(parts, theme.TextMuted.Render("Get API key: ")+theme.TextInfo.Render(url))
	}
	parts = append(parts, "", button("Save", false, !k.Ready()), hints("enter", "save"))
	return theme.BorderActive.Width(contentWidth(k.width)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
