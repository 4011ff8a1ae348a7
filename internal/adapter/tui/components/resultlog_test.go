package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

func TestRenderResult(t *testing.T) {
	out := RenderResult(domain.CommandOutput{Command: "claude --version", Stdout: "1.0.0\n", ExitCode: 2}, 80)
	assert.Contains(t, out, "$ claude --version")
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "Exit code: 2")

	out = RenderResult(domain.DetectionSummary{CLIs: []domain.CLISummaryItem{
		{Name: "claude", Installed: true, Version: domain.Ptr("1.0.0")},
		{Name: "gemini"},
	}}, 80)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "claude")
	assert.Contains(t, lines[1], "1.0.0")
	assert.Contains(t, lines[2], "-")

	assert.Contains(t, RenderResult(domain.TestResult{Model: "claude-opus", Success: false}, 80), "claude-opus: FAIL")
	assert.Contains(t, RenderResult(domain.ConfigWritten{Path: "~/.config/x.yaml", Description: "Model config"}, 80), "Model config")
}

func TestResultLog_KeepsOrder(t *testing.T) {
	log := NewResultLog()
	log.SetSize(80, 10)
	log.SetResults([]domain.ResultContent{
		domain.CommandOutput{Command: "cmd1"},
		domain.CommandOutput{Command: "cmd2"},
	})

	assert.Equal(t, 2, log.Len())
	view := log.content()
	assert.Less(t, strings.Index(view, "cmd1"), strings.Index(view, "cmd2"))
}

func TestResultLog_EmptyView(t *testing.T) {
	log := NewResultLog()
	assert.Empty(t, log.View())
}
