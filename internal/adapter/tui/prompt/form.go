package prompt

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// Form renders a form action. Focus moves over the fields and then the
// submit button; required fields are checked before anything is emitted.
type Form struct {
	action domain.Action
	decl   domain.FormAction
	fields []field
	focus  int // len(fields) is the submit button
	width  int
	build  func(values map[string]string) domain.UserResponse
}

// NewForm renders a standalone form. Submission emits a FormSubmit.
func NewForm(a domain.FormAction) *Form {
	return newForm(a, a, func(values map[string]string) domain.UserResponse {
		return domain.FormSubmit{FormID: a.FormID, Values: values}
	})
}

func newForm(action domain.Action, decl domain.FormAction, build func(map[string]string) domain.UserResponse) *Form {
	f := &Form{action: action, decl: decl, build: build}
	for _, fs := range decl.Fields {
		f.fields = append(f.fields, newField(fs))
	}
	f.focusField(0)
	return f
}

func (f *Form) Action() domain.Action { return f.action }

func (f *Form) Init() tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	return f.fields[0].focus()
}

func (f *Form) SetWidth(w int) {
	f.width = w
	for i := range f.fields {
		f.fields[i].setWidth(contentWidth(w))
	}
}

// Values collects the current value of every field.
func (f *Form) Values() map[string]string {
	values := make(map[string]string, len(f.fields))
	for _, fl := range f.fields {
		values[fl.decl.Name] = fl.value()
	}
	return values
}

// Errors returns the names of fields currently flagged invalid.
func (f *Form) Errors() []string {
	var names []string
	for _, fl := range f.fields {
		if fl.errMsg != "" {
			names = append(names, fl.decl.Name)
		}
	}
	return names
}

// Submit validates and, when valid, emits the response.
func (f *Form) Submit() tea.Cmd {
	if !f.validate() {
		return nil
	}
	return submit(f.build(f.Values()))
}

func (f *Form) validate() bool {
	first := -1
	for i := range f.fields {
		fl := &f.fields[i]
		fl.errMsg = ""
		if fl.decl.Required && strings.TrimSpace(fl.value()) == "" {
			fl.errMsg = RequiredMessage
			if first < 0 {
				first = i
			}
		}
	}
	if first >= 0 {
		f.focusField(first)
		return false
	}
	return true
}

func (f *Form) focusField(i int) tea.Cmd {
	if i < 0 || i > len(f.fields) {
		return nil
	}
	if f.focus < len(f.fields) {
		f.fields[f.focus].blur()
	}
	f.focus = i
	if i < len(f.fields) {
		return f.fields[i].focus()
	}
	return nil
}

func (f *Form) onSubmitButton() bool { return f.focus == len(f.fields) }

func (f *Form) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if f.onSubmitButton() {
			return f, nil
		}
		var cmd tea.Cmd
		f.fields[f.focus], cmd = f.fields[f.focus].update(msg)
		return f, cmd
	}

	switch key.String() {
	case "ctrl+s":
		return f, f.Submit()
	case "tab":
		return f, f.focusField((f.focus + 1) % (len(f.fields) + 1))
	case "shift+tab":
		return f, f.focusField((f.focus + len(f.fields)) % (len(f.fields) + 1))
	case "enter":
		if f.onSubmitButton() {
			return f, f.Submit()
		}
		if f.fields[f.focus].decl.FieldType == domain.FieldTextarea {
			break
		}
		if f.focus == len(f.fields)-1 {
			return f, f.Submit()
		}
		return f, f.focusField(f.focus + 1)
	case "down":
		if f.onSubmitButton() || !f.fields[f.focus].ownsVertical() {
			return f, f.focusField(theme.Clamp(f.focus+1, 0, len(f.fields)))
		}
	case "up":
		if f.onSubmitButton() || !f.fields[f.focus].ownsVertical() {
			return f, f.focusField(theme.Clamp(f.focus-1, 0, len(f.fields)))
		}
	}

	if f.onSubmitButton() {
		return f, nil
	}
	var cmd tea.Cmd
	f.fields[f.focus], cmd = f.fields[f.focus].update(msg)
	return f, cmd
}

func (f *Form) View() string {
	parts := []string{theme.WizardTitle.Render(f.decl.Title)}
	if d := domain.Deref(f.decl.Description, ""); d != "" {
		parts = append(parts, theme.TextMuted.Render(d), "")
	}
	for i, fl := range f.fields {
		parts = append(parts, fl.view(i == f.focus), "")
	}
	parts = append(parts,
		button(SubmitLabel(f.decl), f.onSubmitButton(), false),
		hints("tab", "next field", "space", "toggle", "ctrl+s", "submit"),
	)
	return lipgloss.NewStyle().Width(contentWidth(f.width)).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// SubmitLabel returns the form's submit button text.
func SubmitLabel(a domain.FormAction) string {
	if l := domain.Deref(a.SubmitLabel, ""); l != "" {
		return l
	}
	return "Submit"
}
