package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// AgentActionKind discriminates the steps a planner can ask the setup
// flow to execute.
type AgentActionKind string

const (
	AgentStatus          AgentActionKind = "status"
	AgentRunCommand      AgentActionKind = "run_command"
	AgentWriteConfig     AgentActionKind = "write_config"
	AgentTestIntegration AgentActionKind = "test_integration"
	AgentAskUser         AgentActionKind = "ask_user"
	AgentSyncSkill       AgentActionKind = "sync_skill"
	AgentSyncMCP         AgentActionKind = "sync_mcp"
	AgentUpdateMemory    AgentActionKind = "update_memory"
	AgentComplete        AgentActionKind = "complete"
)

// AgentAction is one step of a planner turn. Only the fields of its Type
// are meaningful.
type AgentAction struct {
	Type        AgentActionKind  `json:"type"`
	Message     string           `json:"message,omitempty"`
	Command     string           `json:"command,omitempty"`
	Args        []string         `json:"args,omitempty"`
	Description string           `json:"description,omitempty"`
	Path        string           `json:"path,omitempty"`
	Content     string           `json:"content,omitempty"`
	ModelName   string           `json:"model_name,omitempty"`
	Ask         Action           `json:"-"`
	SourceCLI   string           `json:"source_cli,omitempty"`
	TargetCLI   string           `json:"target_cli,omitempty"`
	SkillName   string           `json:"skill_name,omitempty"`
	MCPName     string           `json:"mcp_name,omitempty"`
	Config      string           `json:"config,omitempty"`
	NodeType    string           `json:"node_type,omitempty"`
	Label       string           `json:"label,omitempty"`
	Data        string           `json:"data,omitempty"`
	Edges       []MemoryEdgeSpec `json:"edges,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Items       []string         `json:"items,omitempty"`
}

type agentActionWire struct {
	Type        AgentActionKind  `json:"type"`
	Message     string           `json:"message,omitempty"`
	Command     string           `json:"command,omitempty"`
	Args        []string         `json:"args,omitempty"`
	Description string           `json:"description,omitempty"`
	Path        string           `json:"path,omitempty"`
	Content     string           `json:"content,omitempty"`
	ModelName   string           `json:"model_name,omitempty"`
	Action      json.RawMessage  `json:"action,omitempty"`
	SourceCLI   string           `json:"source_cli,omitempty"`
	TargetCLI   string           `json:"target_cli,omitempty"`
	SkillName   string           `json:"skill_name,omitempty"`
	MCPName     string           `json:"mcp_name,omitempty"`
	Config      string           `json:"config,omitempty"`
	NodeType    string           `json:"node_type,omitempty"`
	Label       string           `json:"label,omitempty"`
	Data        string           `json:"data,omitempty"`
	Edges       []MemoryEdgeSpec `json:"edges,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Items       []string         `json:"items,omitempty"`
}

// UnmarshalJSON decodes an action and, for ask_user, its nested Action.
func (a *AgentAction) UnmarshalJSON(data []byte) error {
	var w agentActionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = AgentAction{
		Type:        w.Type,
		Message:     w.Message,
		Command:     w.Command,
		Args:        w.Args,
		Description: w.Description,
		Path:        w.Path,
		Content:     w.Content,
		ModelName:   w.ModelName,
		SourceCLI:   w.SourceCLI,
		TargetCLI:   w.TargetCLI,
		SkillName:   w.SkillName,
		MCPName:     w.MCPName,
		Config:      w.Config,
		NodeType:    w.NodeType,
		Label:       w.Label,
		Data:        w.Data,
		Edges:       w.Edges,
		Summary:     w.Summary,
		Items:       w.Items,
	}
	switch w.Type {
	case AgentStatus, AgentRunCommand, AgentWriteConfig, AgentTestIntegration, AgentComplete:
	case AgentSyncSkill:
		if w.TargetCLI == "" || w.SkillName == "" {
			return NewDomainError("AgentAction", ErrInvalidAgentTurn, "sync_skill needs target_cli and skill_name")
		}
	case AgentSyncMCP:
		if w.TargetCLI == "" || w.MCPName == "" {
			return NewDomainError("AgentAction", ErrInvalidAgentTurn, "sync_mcp needs target_cli and mcp_name")
		}
	case AgentUpdateMemory:
		if w.NodeType == "" || w.Label == "" {
			return NewDomainError("AgentAction", ErrInvalidAgentTurn, "update_memory needs node_type and label")
		}
	case AgentAskUser:
		if len(w.Action) == 0 {
			return NewDomainError("AgentAction", ErrInvalidAgentTurn, "ask_user without action")
		}
		act, err := UnmarshalAction(w.Action)
		if err != nil {
			return fmt.Errorf("ask_user: %w", err)
		}
		a.Ask = act
	default:
		return NewDomainError("AgentAction", ErrInvalidAgentTurn, fmt.Sprintf("unknown action type %q", w.Type))
	}
	return nil
}

// MarshalJSON encodes the action with its nested Action.
func (a AgentAction) MarshalJSON() ([]byte, error) {
	w := agentActionWire{
		Type:        a.Type,
		Message:     a.Message,
		Command:     a.Command,
		Args:        a.Args,
		Description: a.Description,
		Path:        a.Path,
		Content:     a.Content,
		ModelName:   a.ModelName,
		SourceCLI:   a.SourceCLI,
		TargetCLI:   a.TargetCLI,
		SkillName:   a.SkillName,
		MCPName:     a.MCPName,
		Config:      a.Config,
		NodeType:    a.NodeType,
		Label:       a.Label,
		Data:        a.Data,
		Edges:       a.Edges,
		Summary:     a.Summary,
		Items:       a.Items,
	}
	if a.Ask != nil {
		raw, err := MarshalAction(a.Ask)
		if err != nil {
			return nil, err
		}
		w.Action = raw
	}
	return json.Marshal(w)
}

// MemoryEdgeSpec links an update_memory node to another node. The target
// is "<TargetType>:<TargetLabel>", where TargetType defaults to the node's
// own type.
type MemoryEdgeSpec struct {
	TargetLabel string `json:"target_label"`
	EdgeType    string `json:"edge_type"`
	TargetType  string `json:"target_type,omitempty"`
}

// AgentTurn is a planner's answer for one turn.
type AgentTurn struct {
	Actions []AgentAction `json:"actions"`
	Done    bool          `json:"done"`
}

// PlanBrief is what a planner knows about the session it plans.
type PlanBrief struct {
	Report DetectionReport
	// CLI is set for a single-CLI setup.
	CLI string
	// ModelsDir is where model configs are written.
	ModelsDir string
	// Previous lists recent sessions, newest first.
	Previous []SessionRecord
	// Memory is what earlier sessions stored in the memory graph.
	Memory MemorySnapshot
	// Extensions are the skills and MCP servers found on the host.
	Extensions []Extension
}

// Planner decides the next actions of a setup flow. A planner instance
// serves one session.
type Planner interface {
	// NeedsCLI names a CLI the planner runs on, or "".
	NeedsCLI() string
	// Turn returns the actions for message, the feedback from the previous
	// turn or the opening instruction.
	Turn(ctx context.Context, message string) (AgentTurn, error)
}

// PlannerFactory creates a planner for one session.
type PlannerFactory func(brief PlanBrief) Planner
