package models

import "strings"

// ProviderName extracts the provider from a command line: the last word,
// with shell quoting removed, so "env -u CLAUDECODE claude" is "claude".
func ProviderName(command string) string {
	words := splitWords(command)
	if len(words) == 0 {
		return command
	}
	return words[len(words)-1]
}

// splitWords splits on unquoted whitespace and honours single quotes,
// double quotes and backslash escapes.
func splitWords(s string) []string {
	var (
		words  []string
		cur    strings.Builder
		inWord bool
		quote  rune
		escape bool
	)
	for _, r := range s {
		switch {
		case escape:
			cur.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}
