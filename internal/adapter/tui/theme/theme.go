// Package theme provides a unified visual design system for the TUI.
// All styles use adaptive colors that work on both light and dark terminals.
//
// NO_COLOR (https://no-color.org/) is respected automatically by lipgloss via
// its color profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Adaptive Color Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}

	ColorBgAlt  = lipgloss.AdaptiveColor{Light: "#f5f5f5", Dark: "#2d2d2d"}
	ColorFgDim  = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
	ColorCodeBg = lipgloss.AdaptiveColor{Light: "#eeeeee", Dark: "#333333"}
)

// --- Symbol variables (set by InitSymbols in symbols.go) ---

var (
	SymbolSuccess   = "✓"
	SymbolError     = "✗"
	SymbolWarning   = "⚠"
	SymbolInfo      = "●"
	SymbolArrowR    = "→"
	SymbolBullet    = "•"
	SymbolEllipsis  = "…"
	SymbolChecked   = "☑"
	SymbolUnchecked = "☐"
	SymbolDisabled  = "⊘"
	SymbolCursor    = "›"
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	// Semantic text styles.
	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)

	// Code renders inline command snippets.
	Code = lipgloss.NewStyle().Foreground(ColorAccent).Background(ColorCodeBg)
)

// --- Layout styles ---

var (
	BorderNormal = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	BorderActive = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderActive).
			Padding(0, 1)

	// ErrorPanel frames the error banner and the stale-session panel.
	ErrorPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorError).
			Padding(0, 1)

	WarningPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1)
)

// --- Buttons ---

var (
	Button = lipgloss.NewStyle().
		Foreground(ColorMuted).
		Border(lipgloss.NormalBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 2)

	ButtonFocused = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true).
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorderActive).
			Padding(0, 2)

	ButtonDisabled = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Faint(true).
			Border(lipgloss.HiddenBorder()).
			Padding(0, 2)
)

// --- Status bar ---

var (
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorFgDim).
			Background(ColorBgAlt).
			Padding(0, 1)

	StatusKey = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)
)

// --- Input ---

var (
	InputPrompt = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	InputPlaceholder = lipgloss.NewStyle().
				Foreground(ColorFgDim)

	FieldLabel = lipgloss.NewStyle().Bold(true)

	FieldLabelFocused = lipgloss.NewStyle().
				Foreground(ColorInfo).
				Bold(true)
)

// --- Wizard styles ---

var (
	WizardTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Padding(0, 0, 1, 0)

	WizardStepActive = lipgloss.NewStyle().
				Foreground(ColorInfo).
				Bold(true)

	WizardStepDone = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WizardStepPending = lipgloss.NewStyle().
				Foreground(ColorMuted)

	ProgressFull = lipgloss.NewStyle().
			Foreground(ColorInfo)

	ProgressEmpty = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// --- Dashboard styles ---

var (
	Chip = lipgloss.NewStyle().
		Foreground(ColorInfo).
		Background(ColorCodeBg).
		Padding(0, 1)

	StatValue = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	StatLabel = lipgloss.NewStyle().
			Foreground(ColorMuted)

	TabActive = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true).
			Underline(true).
			Padding(0, 2)

	TabNormal = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Padding(0, 2)
)

// MaxContentWidth is the recommended max width for readable text content.
const MaxContentWidth = 100

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarkdownStyle is the glamour style for rendered markdown: "auto", "dark",
// "light" or "notty".
var MarkdownStyle = "auto"

// SetMarkdownStyle selects the markdown style. Unknown names fall back to auto.
func SetMarkdownStyle(name string) {
	switch name {
	case "dark", "light", "notty":
		MarkdownStyle = name
	default:
		MarkdownStyle = "auto"
	}
}
