package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// runDetect prints the detection report.
func runDetect() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Print(renderMarkdown(detectionMarkdown(a.detector.Detect(ctx))))
	return nil
}

func detectionMarkdown(r domain.DetectionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Provider CLIs\n\nHost: `%s/%s`\n\n", r.OS.OS, r.OS.Arch)
	b.WriteString("| CLI | Installed | Version | Logged in | Wrappers |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, s := range r.Summary() {
		version := domain.Deref(s.Version, "")
		if c, ok := r.CLI(s.Name); ok && c.PreviousVersion != nil {
			version += " (was " + *c.PreviousVersion + ")"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
			s.Name, yesNo(s.Installed), orDash(version), yesNo(s.Authenticated), s.WrapperCount)
	}
	if len(r.Wrappers) > 0 {
		b.WriteString("\n## Wrappers\n\n")
		for _, w := range r.Wrappers {
			fmt.Fprintf(&b, "- `%s` runs **%s** (%s)\n", w.Name, w.TargetCLI, w.Path)
		}
	}
	return b.String()
}

// runHistory lists recent sessions, or the turns of session id.
func runHistory(id string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if id != "" {
		turns, err := a.history.Turns(ctx, domain.SessionHandle(id))
		if err != nil {
			return err
		}
		fmt.Print(renderMarkdown(turnsMarkdown(id, turns)))
		return nil
	}

	sessions, err := a.history.Recent(ctx, 20)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(theme.TextMuted.Render("No setup sessions recorded."))
		return nil
	}
	for _, s := range sessions {
		target := s.CLI
		if target == "" {
			target = "all"
		}
		fmt.Printf("%s  %s  %-8s %s %2d turns  %s\n",
			theme.Dim.Render(string(s.ID)),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			target,
			outcomeStyle(s.Outcome).Render(fmt.Sprintf("%-9s", s.Outcome)),
			s.Turns,
			s.Summary,
		)
	}
	return nil
}

func turnsMarkdown(id string, turns []domain.TurnRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Session `%s`\n\n", id)
	if len(turns) == 0 {
		b.WriteString("No turns recorded.\n")
		return b.String()
	}
	for _, t := range turns {
		fmt.Fprintf(&b, "## Turn %d (%s)\n\n```json\n%s\n```\n\n", t.Seq, t.CreatedAt.Local().Format(time.TimeOnly), t.Actions)
		if t.Feedback != "" {
			fmt.Fprintf(&b, "```\n%s\n```\n\n", t.Feedback)
		}
	}
	return b.String()
}

func outcomeStyle(o domain.SessionOutcome) lipgloss.Style {
	switch o {
	case domain.OutcomeComplete:
		return theme.TextSuccess
	case domain.OutcomeFailed:
		return theme.TextError
	case domain.OutcomeCancelled:
		return theme.TextWarning
	}
	return theme.TextMuted
}

// renderMarkdown renders md for the terminal, or returns it unchanged when
// glamour cannot.
func renderMarkdown(md string) string {
	style := glamour.WithAutoStyle()
	if theme.MarkdownStyle != "auto" {
		style = glamour.WithStandardStyle(theme.MarkdownStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return theme.SymbolSuccess
	}
	return theme.SymbolError
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
