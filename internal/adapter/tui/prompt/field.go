package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// RequiredMessage flags a required field left empty.
const RequiredMessage = "This field is required"

// field holds the input state of one form field.
type field struct {
	decl   domain.FormField
	input  textinput.Model // text, password
	area   textarea.Model  // textarea
	on     bool            // checkbox
	choice int             // select; -1 when the placeholder is chosen
	picks  []bool          // multi_select, parallel to decl.Options
	cursor int             // multi_select option under the cursor
	errMsg string
}

func newField(decl domain.FormField) field {
	f := field{decl: decl, choice: -1}
	def := domain.Deref(decl.DefaultValue, "")

	switch decl.FieldType {
	case domain.FieldTextarea:
		ta := textarea.New()
		ta.ShowLineNumbers = false
		ta.Placeholder = domain.Deref(decl.Placeholder, "")
		ta.SetHeight(4)
		ta.SetValue(def)
		f.area = ta
	case domain.FieldCheckbox:
		f.on = def == "true"
	case domain.FieldSelect:
		for i, o := range decl.Options {
			if o.Value == def {
				f.choice = i
			}
		}
		if f.choice < 0 && decl.Placeholder == nil && len(decl.Options) > 0 {
			f.choice = 0
		}
	case domain.FieldMultiSelect:
		f.picks = make([]bool, len(decl.Options))
		defaults := map[string]bool{}
		for _, v := range strings.Split(def, ",") {
			defaults[strings.TrimSpace(v)] = true
		}
		for i, o := range decl.Options {
			f.picks[i] = def != "" && defaults[o.Value]
		}
	default:
		ti := textinput.New()
		ti.Placeholder = domain.Deref(decl.Placeholder, "")
		ti.Width = 50
		ti.PromptStyle = theme.InputPrompt
		ti.PlaceholderStyle = theme.InputPlaceholder
		if decl.FieldType == domain.FieldPassword {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		ti.SetValue(def)
		f.input = ti
	}
	return f
}

// value returns the string submitted for this field.
func (f field) value() string {
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		return f.area.Value()
	case domain.FieldCheckbox:
		if f.on {
			return "true"
		}
		return "false"
	case domain.FieldSelect:
		if f.choice < 0 || f.choice >= len(f.decl.Options) {
			return ""
		}
		return f.decl.Options[f.choice].Value
	case domain.FieldMultiSelect:
		var picked []string
		for i, o := range f.decl.Options {
			if f.picks[i] {
				picked = append(picked, o.Value)
			}
		}
		return strings.Join(picked, ",")
	}
	return f.input.Value()
}

// ownsVertical reports whether up/down move within the field rather than
// between fields.
func (f field) ownsVertical() bool {
	return f.decl.FieldType == domain.FieldTextarea || f.decl.FieldType == domain.FieldMultiSelect
}

func (f *field) focus() tea.Cmd {
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		return f.area.Focus()
	case domain.FieldCheckbox, domain.FieldSelect, domain.FieldMultiSelect:
		return nil
	}
	return f.input.Focus()
}

func (f *field) blur() {
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		f.area.Blur()
	case domain.FieldCheckbox, domain.FieldSelect, domain.FieldMultiSelect:
	default:
		f.input.Blur()
	}
}

func (f *field) setWidth(w int) {
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		f.area.SetWidth(w)
	case domain.FieldCheckbox, domain.FieldSelect, domain.FieldMultiSelect:
	default:
		f.input.Width = w - 4
	}
}

func (f field) update(msg tea.Msg) (field, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		var cmd tea.Cmd
		f.area, cmd = f.area.Update(msg)
		return f, cmd
	case domain.FieldCheckbox:
		if isKey && key.Type == tea.KeySpace {
			f.on = !f.on
			f.errMsg = ""
		}
		return f, nil
	case domain.FieldSelect:
		if !isKey || len(f.decl.Options) == 0 {
			return f, nil
		}
		switch key.String() {
		case "right", "l", " ":
			f.choice = (f.choice + 1) % len(f.decl.Options)
			f.errMsg = ""
		case "left", "h":
			if f.choice <= 0 {
				f.choice = len(f.decl.Options) - 1
			} else {
				f.choice--
			}
			f.errMsg = ""
		}
		return f, nil
	case domain.FieldMultiSelect:
		if !isKey || len(f.decl.Options) == 0 {
			return f, nil
		}
		switch key.String() {
		case "down", "j":
			f.cursor = theme.Clamp(f.cursor+1, 0, len(f.decl.Options)-1)
		case "up", "k":
			f.cursor = theme.Clamp(f.cursor-1, 0, len(f.decl.Options)-1)
		case " ":
			f.picks[f.cursor] = !f.picks[f.cursor]
			f.errMsg = ""
		}
		return f, nil
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if isKey {
		f.errMsg = ""
	}
	return f, cmd
}

func (f field) view(focused bool) string {
	labelStyle := theme.FieldLabel
	if focused {
		labelStyle = theme.FieldLabelFocused
	}
	label := labelStyle.Render(f.decl.Label)
	if f.decl.Required {
		label += theme.TextError.Render(" *")
	}

	parts := []string{label}
	switch f.decl.FieldType {
	case domain.FieldTextarea:
		parts = append(parts, f.area.View())
	case domain.FieldCheckbox:
		box := theme.SymbolUnchecked
		if f.on {
			box = theme.SymbolChecked
		}
		parts[0] = box + " " + label
	case domain.FieldSelect:
		parts = append(parts, f.selectView(focused))
	case domain.FieldMultiSelect:
		for i, o := range f.decl.Options {
			box := theme.SymbolUnchecked
			if f.picks[i] {
				box = theme.SymbolChecked
			}
			line := "  " + box + " " + o.Label
			if focused && i == f.cursor {
				line = theme.TextInfo.Render(theme.SymbolCursor + " " + box + " " + o.Label)
			}
			parts = append(parts, line)
		}
	default:
		parts = append(parts, f.input.View())
	}

	if f.errMsg != "" {
		parts = append(parts, theme.TextError.Render(theme.SymbolError+" "+f.errMsg))
	}
	if help := domain.Deref(f.decl.HelpText, ""); help != "" {
		parts = append(parts, theme.TextMuted.Render(help))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (f field) selectView(focused bool) string {
	current := domain.Deref(f.decl.Placeholder, "")
	if f.choice >= 0 && f.choice < len(f.decl.Options) {
		current = f.decl.Options[f.choice].Label
	}
	if current == "" {
		current = theme.InputPlaceholder.Render("(none)")
	}
	if focused {
		return theme.TextInfo.Render("‹ ") + current + theme.TextInfo.Render(" ›")
	}
	return "  " + current
}
