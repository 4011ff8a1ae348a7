package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"oulipoly-plane/internal/domain"
)

const capabilities = `You communicate by returning a JSON object with an "actions" array and a "done" boolean. The orchestrator executes the actions in order. Action types:

### status
Show a status line with a spinner.
` + "```json" + `
{"type": "status", "message": "Detecting installed CLIs..."}
` + "```" + `

### run_command
Run a command. Allowed commands: %s.
` + "```json" + `
{"type": "run_command", "command": "claude", "args": ["--version"], "description": "Checking Claude CLI"}
` + "```" + `

### write_config
Write a file. Only paths under %s are allowed.
` + "```json" + `
{"type": "write_config", "path": "%s/claude-sonnet.yaml", "content": "command: claude\nargs: [\"-p\", \"--model\", \"sonnet\"]\nprompt_mode: stdin\n", "description": "Creating Claude Sonnet model config"}
` + "```" + `

### test_integration
Run a model's command and report PASS or FAIL.
` + "```json" + `
{"type": "test_integration", "model_name": "claude-sonnet", "command": "claude", "args": ["-p", "say hello", "--model", "sonnet"]}
` + "```" + `

### ask_user
Pause and show a prompt. Action types: form, wizard, confirm, oauth_flow, api_key_entry, cli_selection.
` + "```json" + `
{"type": "ask_user", "action": {"type": "form", "title": "Configure Model", "form_id": "model-config", "fields": [{"name": "model_name", "label": "Model Name", "field_type": "text", "required": true}]}}
` + "```" + `

### sync_skill
Copy a skill directory from one CLI to another.
` + "```json" + `
{"type": "sync_skill", "source_cli": "claude", "target_cli": "codex", "skill_name": "code-review"}
` + "```" + `

### sync_mcp
Install an MCP server in a CLI. "config" is the server's JSON object; leave it empty to copy the server from source_cli.
` + "```json" + `
{"type": "sync_mcp", "source_cli": "claude", "target_cli": "codex", "mcp_name": "firecrawl", "config": "{\"command\": \"npx\", \"args\": [\"firecrawl-mcp\"]}"}
` + "```" + `

### update_memory
Remember a fact for future sessions. Edges point at nodes of the same type unless "target_type" is set.
` + "```json" + `
{"type": "update_memory", "node_type": "cli", "label": "claude", "data": "{\"version\": \"1.0\", \"installed\": true}", "edges": [{"target_label": "opus", "target_type": "model", "edge_type": "uses_model"}]}
` + "```" + `

### complete
Finish setup.
` + "```json" + `
{"type": "complete", "summary": "Setup complete! Configured 3 models.", "items": ["claude-sonnet", "claude-opus", "codex-high"]}
` + "```"

const rules = `## Rules

1. Emit a "status" action before doing work so the user sees progress
2. Use "ask_user" when you need input instead of assuming
3. Use "test_integration" to verify a configuration before completing
4. Model configs are YAML files in %s, one file per model named <model>.yaml
5. Model YAML keys: command, args (list), prompt_mode ("stdin" or "arg"), or a providers list of {command, args} for multi-provider models
6. Use "update_memory" to remember what you've configured for future sessions
7. Use "sync_skill" and "sync_mcp" only for extensions listed under installed extensions
8. When setup is complete, emit a "complete" action`

// promptContext is the system state shown to the agent.
type promptContext struct {
	detection  string
	previous   string
	memory     string
	extensions string
	commands   string
	prefixes   string
	modelsDir  string
}

func newPromptContext(brief domain.PlanBrief, allowedCommands, writePrefixes []string) promptContext {
	detection, err := json.MarshalIndent(brief.Report, "", "  ")
	if err != nil {
		detection = []byte("{}")
	}
	prefixes := make([]string, len(writePrefixes))
	for i, p := range writePrefixes {
		prefixes[i] = "~/" + strings.TrimPrefix(p, "~/")
	}
	return promptContext{
		detection:  string(detection),
		previous:   previousSessions(brief.Previous),
		memory:     memoryGraph(brief.Memory),
		extensions: installedExtensions(brief.Extensions),
		commands:   strings.Join(allowedCommands, ", "),
		prefixes:   strings.Join(prefixes, " or "),
		modelsDir:  brief.ModelsDir,
	}
}

func (c promptContext) capabilities() string {
	return fmt.Sprintf(capabilities, c.commands, c.prefixes, c.modelsDir) + "\n\n" + fmt.Sprintf(rules, c.modelsDir)
}

// systemPrompt briefs the agent for a full setup.
func systemPrompt(c promptContext) string {
	return `You are the setup agent of the Oulipoly agent runner. You detect, install, configure and troubleshoot the CLI tools the runner routes prompts through.

## Your Capabilities

` + c.capabilities() + `

## Current System State

### Detected CLIs
` + c.detection + `

### Previous setup sessions
` + c.previous + `

### Memory Graph (from previous sessions)
` + c.memory + `

### Installed extensions
` + c.extensions + `

## Your Task

Analyze the system state above. For each detected CLI:
1. Verify it works with a simple command
2. Check its authentication status
3. Create model configurations for the runner
4. Test each configuration

If no CLI is detected, guide the user to install at least one (recommend Claude CLI).
If a CLI is detected but not authenticated, guide the user through authentication.
`
}

// cliPrompt briefs the agent for a single-CLI setup.
func cliPrompt(cli string, c promptContext) string {
	return fmt.Sprintf(`You are the setup agent of the Oulipoly agent runner. The user wants to add the `+"`%[1]s`"+` CLI. Help them install it, authenticate, create a model configuration and test it.

## Your Capabilities

%[2]s

## Current System State

### CLI Detection
%[3]s

### Previous setup sessions
%[4]s

### Memory Graph (from previous sessions)
%[5]s

### Installed extensions
%[6]s

## Your Task

Focus on the `+"`%[1]s`"+` CLI:
1. Check that it is installed, and guide the user through installation if not
2. Verify authentication, and guide the user through it if needed
3. Create model configuration(s) for it
4. Test the configuration
5. Complete when the CLI is ready to use
`, cli, c.capabilities(), c.detection, c.previous, c.memory, c.extensions)
}

func previousSessions(recs []domain.SessionRecord) string {
	if len(recs) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, r := range recs {
		target := r.CLI
		if target == "" {
			target = "all CLIs"
		}
		fmt.Fprintf(&b, "- %s: %s setup, %s", r.StartedAt.Format(time.RFC3339), target, r.Outcome)
		if r.Summary != "" {
			fmt.Fprintf(&b, " (%s)", r.Summary)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func memoryGraph(snap domain.MemorySnapshot) string {
	if snap.Empty() {
		return "(empty)"
	}
	var b strings.Builder
	for _, n := range snap.Nodes {
		fmt.Fprintf(&b, "- %s", n.ID)
		if n.Data != "" {
			fmt.Fprintf(&b, " %s", n.Data)
		}
		b.WriteString("\n")
	}
	for _, e := range snap.Edges {
		fmt.Fprintf(&b, "- %s -[%s]-> %s\n", e.SourceID, e.Type, e.TargetID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func installedExtensions(exts []domain.Extension) string {
	if len(exts) == 0 {
		return "(none)"
	}
	lines := make([]string, len(exts))
	for i, e := range exts {
		lines[i] = fmt.Sprintf("- %s %s (in %s)", e.Kind, e.Name, strings.Join(e.InstalledIn, ", "))
	}
	return strings.Join(lines, "\n")
}
