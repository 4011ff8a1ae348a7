// Package uxerror translates raw errors into user-friendly messages with
// recovery hints for the terminal.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/infra/config"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Session Expired"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError as a block with its hints.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(theme.TextError.Render(theme.SymbolError + " " + fe.Title))
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

// Line is the one-line form used in status notices.
func (fe FriendlyError) Line() string {
	if fe.Message == "" {
		return fe.Title
	}
	return fe.Title + ": " + fe.Message
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Sentinels first so errors.Is works through wrapping.
	{
		match: isErr(domain.ErrNoActiveSession),
		produce: constantError("Session Expired",
			"The setup session this prompt belonged to is gone.",
			[]string{"Press f to start fresh or c to cancel"}),
	},
	{
		match: isErr(domain.ErrCorrelationMismatch),
		produce: constantError("Stale Prompt",
			"The answer does not match the prompt the backend is waiting for.",
			[]string{"Answer the prompt currently on screen"}),
	},
	{
		match:   isErr(domain.ErrNoPendingAction),
		produce: constantError("Nothing To Answer", "The session is not waiting for input.", nil),
	},
	{
		match: isErr(domain.ErrCommandNotAllowed),
		produce: constantError("Command Blocked",
			"The setup agent tried to run a command outside the allowlist.",
			[]string{"Add the command to setup.allowed_commands", "Run the command yourself and retry"}),
	},
	{
		match: isErr(domain.ErrPathNotAllowed),
		produce: constantError("Write Blocked",
			"The setup agent tried to write outside the allowed locations.",
			[]string{"Extend setup.allowed_write_prefixes", "Write the file yourself and retry"}),
	},
	{
		match: isErr(domain.ErrInvalidAgentTurn),
		produce: constantError("Unexpected Agent Output",
			"The setup agent answered with something that is not a valid turn.",
			[]string{"Retry the session", "Switch to setup.planner: guided"}),
	},
	{
		match: isErr(domain.ErrMaxTurns),
		produce: constantError("Turn Limit Reached",
			"Setup stopped before the agent finished.",
			[]string{"Increase setup.max_turns", "Set up one CLI at a time with 'plane setup --cli NAME'"}),
	},
	{
		match: isErr(domain.ErrCLINotInstalled),
		produce: constantError("CLI Not Installed",
			"The setup agent targeted a CLI that is not installed.",
			[]string{"Install the CLI and run setup again", "Run 'plane detect' to see what is installed"}),
	},
	{
		match:   isErr(domain.ErrSessionCancelled),
		produce: constantError("Setup Cancelled", "The setup session was cancelled.", []string{"Start a new session"}),
	},
	{
		match: isErr(domain.ErrTimeout),
		produce: constantError("Agent Timed Out", "The claude CLI did not answer in time.",
			[]string{"Increase setup.agent_timeout", "Check your network connection"}),
	},
	{
		match: isErr(domain.ErrPermissionDenied),
		produce: constantError("Unsafe Config File", "The config file is writable by other users.",
			[]string{"Run 'chmod 600' on the config file"}),
	},
	{
		match: isErr(domain.ErrConfigLoad),
		produce: constantError("Config Not Loaded", "The config file could not be read or parsed.",
			[]string{"Check the YAML syntax", "Set PLANE_CONFIG to another file"}),
	},
	{
		match: func(err error) bool {
			var ve *config.ValidationError
			return errors.As(err, &ve)
		},
		produce: func(err error) FriendlyError {
			var ve *config.ValidationError
			errors.As(err, &ve)
			return FriendlyError{
				Title:   "Invalid Configuration",
				Message: fmt.Sprintf("%d setting(s) need attention.", len(ve.Errors)),
				Hints:   ve.Errors,
				Raw:     err.Error(),
			}
		},
	},

	// Agent CLI failures (string matching on the planner's errors).
	{
		match: containsAny("failed to spawn claude", "executable file not found"),
		produce: constantError("Agent Not Available", "The claude CLI could not be started.",
			[]string{"Install it with 'npm install -g @anthropic-ai/claude-code'", "Use setup.planner: guided"}),
	},
	{
		match: containsAny("not logged in", "unauthorized", "invalid api key", "authentication"),
		produce: constantError("Not Logged In", "The provider CLI rejected its credentials.",
			[]string{"Log in with the CLI's login command", "Check the provider's API key variable"}),
	},
	{
		match:   containsAny("rate limit", "429", "too many requests"),
		produce: constantError("Rate Limited", "The provider is throttling requests.", []string{"Wait a moment before retrying"}),
	},

	// Local state.
	{
		match: containsAny("database is locked", "sqlite_busy"),
		produce: constantError("History Busy", "Another plane process holds the history database.",
			[]string{"Close other plane windows and retry"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Set PLANE_LOGGER_LEVEL=debug and check plane.log"},
		Raw:     err.Error(),
	}
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
