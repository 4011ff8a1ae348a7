package prompt

import (
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// OAuth button labels.
const (
	LoggedInLabel = "I've logged in"
	SkipLabel     = "Skip"
)

var quoted = regexp.MustCompile(`'([^']+)'`)

// Segment is a run of instruction text; Code marks a single-quoted span.
type Segment struct {
	Text string
	Code bool
}

// InstructionSegments splits text on single-quoted substrings. The quotes
// themselves are dropped from code segments.
func InstructionSegments(text string) []Segment {
	var out []Segment
	last := 0
	for _, m := range quoted.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, Segment{Text: text[last:m[0]]})
		}
		out = append(out, Segment{Text: text[m[2]:m[3]], Code: true})
		last = m[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// InstructionsMarkdown rewrites quoted substrings as markdown code spans.
func InstructionsMarkdown(text string) string {
	var b strings.Builder
	for _, s := range InstructionSegments(text) {
		if s.Code {
			b.WriteString("`" + s.Text + "`")
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// OAuth asks the user to complete a login outside the app.
type OAuth struct {
	action   domain.OAuthFlowAction
	loggedIn bool
	width    int
	rendered string
	md       *glamour.TermRenderer
}

func NewOAuth(a domain.OAuthFlowAction) *OAuth {
	return &OAuth{action: a, loggedIn: true}
}

func (o *OAuth) Action() domain.Action { return o.action }
func (o *OAuth) Init() tea.Cmd         { return nil }

func (o *OAuth) SetWidth(w int) {
	if w != o.width {
		o.width = w
		o.md = nil
		o.rendered = ""
	}
}

func (o *OAuth) answer(success bool) tea.Cmd {
	return submit(domain.OAuthComplete{Provider: o.action.Provider, Success: success})
}

func (o *OAuth) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return o, nil
	}
	switch key.String() {
	case "left", "right", "tab", "shift+tab":
		o.loggedIn = !o.loggedIn
	case "enter":
		return o, o.answer(o.loggedIn)
	case "s":
		return o, o.answer(false)
	}
	return o, nil
}

// instructions renders the instructions through glamour, falling back to
// inline code styling when the renderer is unavailable.
func (o *OAuth) instructions() string {
	if o.rendered != "" {
		return o.rendered
	}
	if o.md == nil {
		style := glamour.WithAutoStyle()
		if theme.MarkdownStyle != "auto" {
			style = glamour.WithStandardStyle(theme.MarkdownStyle)
		}
		r, err := glamour.NewTermRenderer(
			style,
			glamour.WithWordWrap(contentWidth(o.width)),
		)
		if err == nil {
			o.md = r
		}
	}
	if o.md != nil {
		if out, err := o.md.Render(InstructionsMarkdown(o.action.Instructions)); err == nil {
			o.rendered = strings.Trim(out, "\n")
			return o.rendered
		}
	}
	var b strings.Builder
	for _, s := range InstructionSegments(o.action.Instructions) {
		if s.Code {
			b.WriteString(theme.Code.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	o.rendered = b.String()
	return o.rendered
}

func (o *OAuth) View() string {
	parts := []string{
		theme.WizardTitle.Render("Authentication Required: " + o.action.Provider),
		o.instructions(),
	}
	if o.action.LoginCommand != "" {
		parts = append(parts, "", theme.TextMuted.Render("Run: ")+theme.Code.Render(o.action.LoginCommand))
	}
	parts = append(parts, "",
		buttonRow(button(LoggedInLabel, o.loggedIn, false), " ", button(SkipLabel, !o.loggedIn, false)),
		hints("enter", "select", "s", "skip"),
	)
	return theme.BorderActive.Width(contentWidth(o.width)).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
