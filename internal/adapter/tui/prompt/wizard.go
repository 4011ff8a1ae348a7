package prompt

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// Wizard renders a multi-step wizard. It keeps its own step cursor,
// starting at the action's current step; Back moves the cursor locally and
// submitting a step reports the cursor position.
type Wizard struct {
	action domain.WizardAction
	cursor int
	form   *Form
	width  int
}

// NewWizard renders a wizard action.
func NewWizard(a domain.WizardAction) *Wizard {
	w := &Wizard{action: a}
	if len(a.Steps) > 0 {
		w.cursor = theme.Clamp(a.CurrentStep, 0, len(a.Steps)-1)
		w.form = w.stepForm(w.cursor)
	}
	return w
}

func (w *Wizard) stepForm(step int) *Form {
	id := w.action.WizardID
	f := newForm(w.action, w.action.Steps[step].Form, func(values map[string]string) domain.UserResponse {
		return domain.WizardStepResponse{WizardID: id, Step: step, Values: values}
	})
	f.SetWidth(w.width)
	return f
}

func (w *Wizard) Action() domain.Action { return w.action }

// Step returns the local step cursor.
func (w *Wizard) Step() int { return w.cursor }

// CanGoBack reports whether Back is enabled.
func (w *Wizard) CanGoBack() bool { return w.cursor > 0 }

// Back moves to the previous step without contacting the backend.
func (w *Wizard) Back() tea.Cmd {
	if !w.CanGoBack() {
		return nil
	}
	w.cursor--
	w.form = w.stepForm(w.cursor)
	return w.form.Init()
}

func (w *Wizard) Init() tea.Cmd {
	if w.form == nil {
		return nil
	}
	return w.form.Init()
}

func (w *Wizard) SetWidth(width int) {
	w.width = width
	if w.form != nil {
		w.form.SetWidth(width)
	}
}

func (w *Wizard) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	if w.form == nil {
		return w, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+b":
			return w, w.Back()
		}
	}
	_, cmd := w.form.Update(msg)
	return w, cmd
}

func (w *Wizard) View() string {
	if w.form == nil {
		return theme.WizardTitle.Render(w.action.Title) + "\n" + theme.TextMuted.Render("This wizard has no steps.")
	}
	labels := make([]string, len(w.action.Steps))
	for i, s := range w.action.Steps {
		labels[i] = s.Label
	}
	parts := []string{
		theme.WizardTitle.Render(w.action.Title),
		stepBar{labels: labels, current: w.cursor, width: contentWidth(w.width)}.View(),
		"",
	}
	if d := domain.Deref(w.action.Steps[w.cursor].Description, ""); d != "" {
		parts = append(parts, theme.TextMuted.Render(d), "")
	}
	parts = append(parts,
		w.form.View(),
		button("Back", false, !w.CanGoBack()),
		hints("esc", "back"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
