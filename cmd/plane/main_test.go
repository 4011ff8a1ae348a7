package main

import (
	"os"
	"strings"
	"testing"
	"time"

	"oulipoly-plane/internal/adapter/detect"
	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/infra/config"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"plane"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestFlagValue(t *testing.T) {
	withArgs(t, "setup", "--cli", "codex", "--scenario=demo.yaml")
	if got := flagValue("--cli"); got != "codex" {
		t.Errorf("--cli = %q, want codex", got)
	}
	if got := flagValue("--scenario"); got != "demo.yaml" {
		t.Errorf("--scenario = %q, want demo.yaml", got)
	}
	if got := flagValue("--config"); got != "" {
		t.Errorf("--config = %q, want empty", got)
	}
}

func TestPositional(t *testing.T) {
	withArgs(t, "history", "01JABC")
	if got := positional(2); got != "01JABC" {
		t.Errorf("positional(2) = %q", got)
	}
	withArgs(t, "history", "--config", "x.yaml")
	if got := positional(2); got != "" {
		t.Errorf("flag taken as positional: %q", got)
	}
}

func TestKnownCLIs(t *testing.T) {
	known := knownCLIs([]config.KnownCLI{
		{Name: "aider", ConfigDirs: []string{".aider"}},
		{Name: "codex", AuthEnv: []string{"CODEX_TOKEN"}},
	})

	names := detect.Names(known)
	if len(names) != len(detect.DefaultKnown)+1 || names[len(names)-1] != "aider" {
		t.Fatalf("names = %v", names)
	}
	for _, k := range known {
		if k.Name == "codex" && (len(k.AuthEnv) != 1 || k.AuthEnv[0] != "CODEX_TOKEN") {
			t.Errorf("codex entry not replaced: %+v", k)
		}
	}
	// The built-in table is left alone.
	if detect.DefaultKnown[1].AuthEnv[0] != "OPENAI_API_KEY" {
		t.Error("DefaultKnown was modified")
	}
}

func TestDetectionMarkdown(t *testing.T) {
	r := domain.DetectionReport{
		CLIs: []domain.CLIInfo{
			{Name: "claude", Installed: true, Authenticated: true, Version: domain.Ptr("2.1.0"), PreviousVersion: domain.Ptr("2.0.9")},
			{Name: "gemini"},
		},
		OS:       domain.OSInfo{OS: "linux", Arch: "arm64"},
		Wrappers: []domain.WrapperInfo{{Name: "cl-fast", Path: "/home/u/.local/bin/cl-fast", TargetCLI: "claude"}},
	}
	md := detectionMarkdown(r)
	for _, want := range []string{
		"`linux/arm64`",
		"| claude |",
		"2.1.0 (was 2.0.9)",
		"| gemini |",
		"| - |",
		"`cl-fast` runs **claude**",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestTurnsMarkdown(t *testing.T) {
	md := turnsMarkdown("01J", []domain.TurnRecord{
		{Seq: 1, Actions: `[{"type":"status","message":"hi"}]`, Feedback: "Continue with the next step.", CreatedAt: time.Now()},
	})
	if !strings.Contains(md, "## Turn 1") || !strings.Contains(md, `"type":"status"`) {
		t.Errorf("unexpected markdown:\n%s", md)
	}
	if !strings.Contains(turnsMarkdown("01J", nil), "No turns recorded.") {
		t.Error("empty session not reported")
	}
}

func TestRenderMarkdownFallsBackToText(t *testing.T) {
	out := renderMarkdown("# Provider CLIs\n")
	if !strings.Contains(out, "Provider CLIs") {
		t.Errorf("rendered output lost the text: %q", out)
	}
}

func TestSetupTitle(t *testing.T) {
	if setupTitle("") != "Oulipoly Setup" || setupTitle("codex") != "Set up codex" {
		t.Error("unexpected titles")
	}
}
