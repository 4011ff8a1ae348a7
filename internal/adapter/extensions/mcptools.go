package extensions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"oulipoly-plane/internal/domain"
)

// mcpClient abstracts the MCP client for testability.
type mcpClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

type dialFunc func(command string, env []string, args ...string) (mcpClient, error)

func dialStdio(command string, env []string, args ...string) (mcpClient, error) {
	return mcpclient.NewStdioMCPClient(command, env, args...)
}

// stdioServer is the launch part of an MCP server config.
type stdioServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// ToolLister starts an MCP server over stdio and lists the tools it
// offers, to check that a freshly installed server actually runs.
type ToolLister struct {
	timeout time.Duration
	dial    dialFunc
	logger  *slog.Logger
}

// NewToolLister creates a lister that gives each server timeout to answer.
func NewToolLister(timeout time.Duration, logger *slog.Logger) *ToolLister {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolLister{timeout: timeout, dial: dialStdio, logger: logger}
}

// ListTools launches the server described by config, a JSON object with
// command, args and env, and returns its tool names sorted.
func (l *ToolLister) ListTools(ctx context.Context, config string) ([]string, error) {
	const op = "extensions.ListTools"
	var srv stdioServer
	if err := json.Unmarshal([]byte(config), &srv); err != nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "config must be a JSON object")
	}
	if srv.Command == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "only stdio servers with a command can be listed")
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	env := make([]string, 0, len(srv.Env))
	for k, v := range srv.Env {
		env = append(env, k+"="+v)
	}
	c, err := l.dial(srv.Command, env, srv.Args...)
	if err != nil {
		return nil, fmt.Errorf("start mcp server %s: %w", srv.Command, err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			l.logger.Debug("mcp server close error", "command", srv.Command, "error", err)
		}
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "oulipoly-plane",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return nil, l.wrap(ctx, "initialize", err)
	}
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, l.wrap(ctx, "list tools", err)
	}

	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	l.logger.Debug("mcp tools listed", "command", srv.Command, "count", len(names))
	return names, nil
}

func (l *ToolLister) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: mcp server did not answer within %s: %w", op, l.timeout, domain.ErrTimeout)
	}
	return domain.WrapOp(op, err)
}
