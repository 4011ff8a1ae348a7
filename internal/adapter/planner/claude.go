package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"oulipoly-plane/internal/domain"
)

// Runner executes a command and reports its output and exit code.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (stdout, stderr string, exitCode int, err error)
}

// ClaudeConfig tunes the agent planner.
type ClaudeConfig struct {
	Model           string
	Timeout         time.Duration
	AllowedTools    string
	AllowedCommands []string
	WritePrefixes   []string
	// TurnInterval paces agent invocations after a burst of two.
	// Zero disables pacing.
	TurnInterval time.Duration
}

// Claude plans turns by asking the claude CLI in print mode. The first
// turn carries the system prompt; later turns resume the agent session.
type Claude struct {
	runner  Runner
	cfg     ClaudeConfig
	logger  *slog.Logger
	limiter *rate.Limiter // nil when unpaced

	mu        sync.Mutex
	system    string
	sessionID string
}

// NewClaude creates a planner for one setup session.
func NewClaude(runner Runner, cfg ClaudeConfig, brief domain.PlanBrief, logger *slog.Logger) *Claude {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-6"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.AllowedTools == "" {
		cfg.AllowedTools = "Read,Bash,Glob,Grep"
	}
	if logger == nil {
		logger = slog.Default()
	}

	pc := newPromptContext(brief, cfg.AllowedCommands, cfg.WritePrefixes)
	system := systemPrompt(pc)
	if brief.CLI != "" {
		system = cliPrompt(brief.CLI, pc)
	}
	c := &Claude{runner: runner, cfg: cfg, logger: logger, system: system}
	if cfg.TurnInterval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.TurnInterval), 2)
	}
	return c
}

// NeedsCLI implements domain.Planner.
func (c *Claude) NeedsCLI() string { return "claude" }

// SessionID returns the agent session being resumed, or "".
func (c *Claude) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Turn implements domain.Planner.
func (c *Claude) Turn(ctx context.Context, message string) (domain.AgentTurn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.AgentTurn{}, fmt.Errorf("claude turn: %w", err)
		}
	}

	args := []string{
		"-p",
		"--output-format", "json",
		"--model", c.cfg.Model,
		"--allowedTools", c.cfg.AllowedTools,
		"--no-session-persistence",
		"--json-schema", TurnSchema,
	}
	prompt := message
	if c.sessionID == "" {
		prompt = c.system + "\n\n---\n\n" + message
	} else {
		args = append(args, "--resume", c.sessionID)
	}
	args = append(args, prompt)

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, code, err := c.runner.Run(runCtx, "claude", args)
	if runCtx.Err() == context.DeadlineExceeded {
		return domain.AgentTurn{}, fmt.Errorf("claude CLI timed out after %d seconds: %w", int(c.cfg.Timeout.Seconds()), domain.ErrTimeout)
	}
	if err != nil {
		return domain.AgentTurn{}, fmt.Errorf("failed to spawn claude CLI: %w", err)
	}
	if code != 0 {
		return domain.AgentTurn{}, fmt.Errorf("claude CLI failed (exit %d): %s", code, truncate(stderr, 500))
	}

	turn, sid, err := decodeOutput(stdout)
	if err != nil {
		return domain.AgentTurn{}, err
	}
	if sid == "" {
		sid = sessionFromStderr(stderr)
	}
	if sid != "" {
		c.sessionID = sid
	}

	c.logger.Debug("agent turn",
		"actions", len(turn.Actions),
		"done", turn.Done,
		"session", c.sessionID,
		"duration", time.Since(start),
	)
	return turn, nil
}

// envelope is the print-mode JSON wrapper around the agent's answer.
type envelope struct {
	Type             string          `json:"type"`
	Result           *string         `json:"result"`
	SessionID        string          `json:"session_id"`
	StructuredOutput json.RawMessage `json:"structured_output"`
	IsError          bool            `json:"is_error"`
}

// decodeOutput accepts either a bare turn or the print-mode envelope
// carrying it as structured_output or as a JSON string result.
func decodeOutput(stdout string) (domain.AgentTurn, string, error) {
	raw := stripCodeFences(stdout)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return domain.AgentTurn{}, "", domain.NewDomainError("planner.claude", domain.ErrInvalidAgentTurn,
			fmt.Sprintf("failed to parse agent response: %v (raw output: %s)", err, truncate(raw, 200)))
	}
	if _, ok := probe["actions"]; ok {
		turn, err := ParseTurn(raw)
		return turn, "", err
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return domain.AgentTurn{}, "", err
	}
	if env.IsError {
		return domain.AgentTurn{}, env.SessionID, fmt.Errorf("agent reported an error: %s", truncate(domain.Deref(env.Result, ""), 500))
	}
	switch {
	case len(env.StructuredOutput) > 0 && string(env.StructuredOutput) != "null":
		turn, err := ParseTurn(string(env.StructuredOutput))
		return turn, env.SessionID, err
	case env.Result != nil:
		turn, err := ParseTurn(*env.Result)
		return turn, env.SessionID, err
	}
	return domain.AgentTurn{}, env.SessionID, domain.NewDomainError("planner.claude", domain.ErrInvalidAgentTurn,
		"response has neither actions nor a result")
}

// sessionFromStderr finds a "Session: <id>" or "session_id: <id>" line.
func sessionFromStderr(stderr string) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"Session: ", "session_id: "} {
			if rest, ok := strings.CutPrefix(line, prefix); ok {
				return strings.TrimSpace(rest)
			}
		}
	}
	return ""
}
