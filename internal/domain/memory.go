package domain

import (
	"context"
	"time"
)

// MemoryContextTypes are the node types a planner sees from earlier
// sessions.
var MemoryContextTypes = []string{"cli", "model", "provider", "wrapper", "skill", "mcp", "preference"}

// MemoryNode is one fact in the memory graph.
type MemoryNode struct {
	ID        string
	Type      string
	Label     string
	Data      string // JSON object, may be empty
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemoryEdge is a typed relation between two nodes.
type MemoryEdge struct {
	SourceID string
	TargetID string
	Type     string
	Data     string
}

// MemorySnapshot is a subgraph of the memory.
type MemorySnapshot struct {
	Nodes []MemoryNode
	Edges []MemoryEdge
}

// Empty reports whether the snapshot holds no nodes.
func (s MemorySnapshot) Empty() bool { return len(s.Nodes) == 0 }

// MemoryNodeID is the key of the node with the given type and label.
func MemoryNodeID(nodeType, label string) string { return nodeType + ":" + label }

// MemoryStore persists the memory graph across sessions.
type MemoryStore interface {
	// UpsertNode creates or replaces the node with n's ID.
	UpsertNode(ctx context.Context, n MemoryNode) error
	// AddEdge links two nodes. An existing edge is left untouched.
	AddEdge(ctx context.Context, e MemoryEdge) error
	// Subgraph returns the nodes of the given types and the edges among them.
	Subgraph(ctx context.Context, types []string) (MemorySnapshot, error)
}

// ExtensionKind tells skills from MCP servers.
type ExtensionKind string

const (
	ExtensionSkill ExtensionKind = "skill"
	ExtensionMCP   ExtensionKind = "mcp"
)

// Extension is a skill or MCP server and the CLIs it is installed in.
type Extension struct {
	Name        string
	Kind        ExtensionKind
	InstalledIn []string
}

// ExtensionSyncer moves skills and MCP servers between CLIs.
type ExtensionSyncer interface {
	// Discover lists the extensions of every installed CLI in report.
	Discover(report DetectionReport) []Extension
	// CopySkill copies a skill directory from one CLI to another.
	CopySkill(source, target, skill string) error
	// LookupMCP returns the JSON config of an MCP server installed in cli.
	LookupMCP(cli, name string) (string, error)
	// InstallMCP adds an MCP server to target's config. config is the
	// server's JSON object.
	InstallMCP(target, name, config string) error
}
