package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonschema"

	"oulipoly-plane/internal/domain"
)

// TurnSchema constrains the JSON an agent returns for one turn.
const TurnSchema = `{
  "type": "object",
  "properties": {
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": { "type": "string", "enum": [
            "status", "run_command", "write_config", "test_integration", "ask_user",
            "sync_skill", "sync_mcp", "update_memory", "complete"
          ]},
          "message": { "type": "string" },
          "command": { "type": "string" },
          "args": { "type": "array", "items": { "type": "string" } },
          "description": { "type": "string" },
          "path": { "type": "string" },
          "content": { "type": "string" },
          "model_name": { "type": "string" },
          "action": { "type": "object" },
          "source_cli": { "type": "string" },
          "target_cli": { "type": "string" },
          "skill_name": { "type": "string" },
          "mcp_name": { "type": "string" },
          "config": { "type": "string" },
          "node_type": { "type": "string" },
          "label": { "type": "string" },
          "data": { "type": "string" },
          "edges": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "target_label": { "type": "string" },
                "edge_type": { "type": "string" },
                "target_type": { "type": "string" }
              },
              "required": ["target_label", "edge_type"]
            }
          },
          "summary": { "type": "string" },
          "items": { "type": "array", "items": { "type": "string" } }
        },
        "required": ["type"]
      }
    },
    "done": { "type": "boolean" }
  },
  "required": ["actions", "done"]
}`

var turnSchema = mustCompile(TurnSchema)

func mustCompile(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("compile turn schema: %v", err))
	}
	return schema
}

// ParseTurn validates raw against TurnSchema and decodes it. Markdown code
// fences around the JSON are tolerated.
func ParseTurn(raw string) (domain.AgentTurn, error) {
	raw = stripCodeFences(raw)
	if raw == "" {
		return domain.AgentTurn{}, domain.NewDomainError("planner.ParseTurn", domain.ErrInvalidAgentTurn, "empty output")
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.AgentTurn{}, domain.NewDomainError("planner.ParseTurn", domain.ErrInvalidAgentTurn,
			fmt.Sprintf("invalid JSON: %v (raw output: %s)", err, truncate(raw, 200)))
	}
	if result := turnSchema.Validate(parsed); !result.IsValid() {
		return domain.AgentTurn{}, domain.NewDomainError("planner.ParseTurn", domain.ErrInvalidAgentTurn,
			fmt.Sprintf("schema: %s", result.Error()))
	}

	var turn domain.AgentTurn
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		return domain.AgentTurn{}, err
	}
	return turn, nil
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// truncate shortens s to maxLen bytes on a rune boundary.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	end := 0
	for i := range s {
		if i > maxLen {
			break
		}
		end = i
	}
	return s[:end] + "..."
}
