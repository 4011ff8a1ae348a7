package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success   string
	Error     string
	Warning   string
	Info      string
	ArrowR    string
	Bullet    string
	Ellipsis  string
	Checked   string
	Unchecked string
	Disabled  string
	Cursor    string
}

var unicodeSymbols = SymbolSet{
	Success:   "\u2713", // ✓
	Error:     "\u2717", // ✗
	Warning:   "\u26A0", // ⚠
	Info:      "\u25CF", // ●
	ArrowR:    "\u2192", // →
	Bullet:    "\u2022", // •
	Ellipsis:  "\u2026", // …
	Checked:   "\u2611", // ☑
	Unchecked: "\u2610", // ☐
	Disabled:  "\u2298", // ⊘
	Cursor:    "\u203A", // ›
}

var asciiSymbols = SymbolSet{
	Success:   "[OK]",
	Error:     "[ERR]",
	Warning:   "[!]",
	Info:      "[i]",
	ArrowR:    "->",
	Bullet:    "*",
	Ellipsis:  "...",
	Checked:   "[x]",
	Unchecked: "[ ]",
	Disabled:  "[-]",
	Cursor:    ">",
}

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// Priority: PLANE_ASCII_SYMBOLS env (explicit override) > locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("PLANE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode; default to true.
	return true
}

// UseASCII forces the ASCII symbol set, e.g. from the ui.ascii config flag.
func UseASCII(ascii bool) {
	if ascii {
		apply(asciiSymbols)
		return
	}
	InitSymbols()
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called automatically by init(), but can be called again
// if the environment changes (e.g., in tests).
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}
	apply(set)
}

func apply(set SymbolSet) {
	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolChecked = set.Checked
	SymbolUnchecked = set.Unchecked
	SymbolDisabled = set.Disabled
	SymbolCursor = set.Cursor
}

func init() {
	InitSymbols()
}
