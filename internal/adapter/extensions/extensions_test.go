package extensions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func installed(names ...string) domain.DetectionReport {
	var r domain.DetectionReport
	for _, n := range names {
		r.CLIs = append(r.CLIs, domain.CLIInfo{Name: n, Installed: true})
	}
	return r
}

func TestCopySkill(t *testing.T) {
	home := t.TempDir()
	writeTestFile(t, filepath.Join(home, ".claude/skills/code-review/SKILL.md"), "# Review")
	writeTestFile(t, filepath.Join(home, ".claude/skills/code-review/scripts/run.sh"), "echo hi")
	s := New(home, nil, nil)

	require.NoError(t, s.CopySkill("claude", "codex", "code-review"))
	got, err := os.ReadFile(filepath.Join(home, ".codex/skills/code-review/scripts/run.sh"))
	require.NoError(t, err)
	assert.Equal(t, "echo hi", string(got))

	// A second sync overwrites the copy.
	writeTestFile(t, filepath.Join(home, ".claude/skills/code-review/SKILL.md"), "# Review v2")
	require.NoError(t, s.CopySkill("claude", "codex", "code-review"))
	got, err = os.ReadFile(filepath.Join(home, ".codex/skills/code-review/SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Review v2", string(got))
}

func TestCopySkill_Errors(t *testing.T) {
	s := New(t.TempDir(), nil, nil)

	tests := []struct {
		name   string
		source string
		target string
		skill  string
		want   error
		msg    string
	}{
		{"missing skill", "claude", "codex", "nope", domain.ErrNotFound, "skill 'nope' not found in claude"},
		{"source without skills", "opencode", "codex", "x", domain.ErrNotFound, "source CLI has no skills directory"},
		{"target without skills", "claude", "opencode", "x", domain.ErrInvalidInput, "target CLI has no skills directory"},
		{"unknown cli", "gemini", "codex", "x", domain.ErrNotFound, "no extension layout for gemini"},
		{"escaping name", "claude", "codex", "../secrets", domain.ErrInvalidInput, "invalid name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CopySkill(tt.source, tt.target, tt.skill)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestInstallMCP_JSON(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ".opencode/config.json")
	writeTestFile(t, path, `{"theme":"dark","mcpServers":{"old":{"command":"old"}}}`)
	s := New(home, nil, nil)

	require.NoError(t, s.InstallMCP("opencode", "firecrawl", `{"command":"npx","args":["firecrawl-mcp"]}`))

	var doc map[string]any
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "dark", doc["theme"])
	servers := doc["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "old")
	assert.Equal(t, map[string]any{"command": "npx", "args": []any{"firecrawl-mcp"}}, servers["firecrawl"])
}

func TestInstallMCP_TOMLCreatesFile(t *testing.T) {
	home := t.TempDir()
	s := New(home, nil, nil)

	require.NoError(t, s.InstallMCP("codex", "firecrawl", `{"command":"npx","args":["firecrawl-mcp"]}`))

	raw, err := os.ReadFile(filepath.Join(home, ".codex/config.toml"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, toml.Unmarshal(raw, &doc))
	servers := doc["mcp_servers"].(map[string]any)
	fc := servers["firecrawl"].(map[string]any)
	assert.Equal(t, "npx", fc["command"])
	assert.Equal(t, []any{"firecrawl-mcp"}, fc["args"])

	cfg, err := s.LookupMCP("codex", "firecrawl")
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"npx","args":["firecrawl-mcp"]}`, cfg)
}

func TestInstallMCP_KeepsOtherTOMLSettings(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, ".codex/config.toml")
	writeTestFile(t, path, "model = \"o3\"\n\n[mcp_servers.docs]\ncommand = \"docs-mcp\"\n")
	s := New(home, nil, nil)

	require.NoError(t, s.InstallMCP("codex", "firecrawl", `{"command":"npx"}`))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, toml.Unmarshal(raw, &doc))
	assert.Equal(t, "o3", doc["model"])
	assert.Len(t, doc["mcp_servers"], 2)
}

func TestInstallMCP_Rejects(t *testing.T) {
	home := t.TempDir()
	s := New(home, nil, nil)

	assert.ErrorIs(t, s.InstallMCP("codex", "x", "not json"), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.InstallMCP("codex", "x", `["a"]`), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.InstallMCP("codex", "a/b", `{}`), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.InstallMCP("gemini", "x", `{}`), domain.ErrNotFound)

	writeTestFile(t, filepath.Join(home, ".claude/.claude.json"), "{broken")
	assert.ErrorContains(t, s.InstallMCP("claude", "x", `{"command":"y"}`), "parse")
}

func TestLookupMCP_Missing(t *testing.T) {
	s := New(t.TempDir(), nil, nil)
	_, err := s.LookupMCP("claude", "firecrawl")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "MCP 'firecrawl' not found in claude")
}

func TestDiscover(t *testing.T) {
	home := t.TempDir()
	writeTestFile(t, filepath.Join(home, ".claude/skills/code-review/SKILL.md"), "x")
	writeTestFile(t, filepath.Join(home, ".claude/skills/notes.txt"), "not a skill")
	writeTestFile(t, filepath.Join(home, ".codex/skills/code-review/SKILL.md"), "x")
	writeTestFile(t, filepath.Join(home, ".claude/.claude.json"), `{"mcpServers":{"firecrawl":{"command":"npx"}}}`)
	writeTestFile(t, filepath.Join(home, ".codex/config.toml"), "[mcp.legacy]\ncommand = \"a\"\n[mcp_servers.firecrawl]\ncommand = \"npx\"\n")
	// opencode is not installed, so its config is ignored.
	writeTestFile(t, filepath.Join(home, ".opencode/config.json"), `{"mcpServers":{"hidden":{}}}`)

	report := installed("claude", "codex")
	report.CLIs = append(report.CLIs, domain.CLIInfo{Name: "opencode"})

	got := New(home, nil, nil).Discover(report)
	assert.Equal(t, []domain.Extension{
		{Name: "code-review", Kind: domain.ExtensionSkill, InstalledIn: []string{"claude", "codex"}},
		{Name: "firecrawl", Kind: domain.ExtensionMCP, InstalledIn: []string{"claude", "codex"}},
		{Name: "legacy", Kind: domain.ExtensionMCP, InstalledIn: []string{"codex"}},
	}, got)
}

func TestDiscover_SkipsBrokenConfig(t *testing.T) {
	home := t.TempDir()
	writeTestFile(t, filepath.Join(home, ".claude/.claude.json"), "{broken")
	writeTestFile(t, filepath.Join(home, ".claude/skills/a/SKILL.md"), "x")

	got := New(home, nil, nil).Discover(installed("claude"))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}
