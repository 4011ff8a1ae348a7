// Package setupflow is the backend side of the setup protocol: a Manager
// owns at most one live setup task, and each task runs a Flow that detects
// provider CLIs and drives a planner until the host is configured.
package setupflow

import (
	"context"
	"log/slog"
	"sync"

	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/infra/idgen"
	"oulipoly-plane/internal/infra/tracer"
)

// inputBuffer is how many responses may queue before Respond blocks.
const inputBuffer = 16

// Options tune a setup flow.
type Options struct {
	MaxTurns             int
	AllowedCommands      []string
	AllowedWritePrefixes []string // relative to Home
	Home                 string
	GOOS                 string
	ModelsDir            string
	Planner              string // recorded in the history
}

// DefaultOptions returns the stock limits for home.
func DefaultOptions(home, goos string) Options {
	return Options{
		MaxTurns: 25,
		AllowedCommands: []string{
			"which", "type", "claude", "codex", "opencode", "gemini",
			"npm", "npx", "curl", "bash",
		},
		AllowedWritePrefixes: []string{".config/oulipoly-agent-runner/", ".local/bin/"},
		Home:                 home,
		GOOS:                 goos,
	}
}

// MCPToolLister starts an MCP server from its JSON config and lists its
// tools.
type MCPToolLister interface {
	ListTools(ctx context.Context, config string) ([]string, error)
}

// Deps holds injected dependencies for the manager.
type Deps struct {
	Detector   domain.Detector
	Planners   domain.PlannerFactory
	Runner     CommandRunner
	History    domain.HistoryStore    // optional
	Memory     domain.MemoryStore     // optional
	Extensions domain.ExtensionSyncer // optional
	MCPTools   MCPToolLister          // optional
	Logger     *slog.Logger
	Options    Options
}

// Manager implements domain.SetupBackend. Starting a session replaces the
// previous one.
type Manager struct {
	deps Deps

	mu   sync.Mutex
	live *live
}

type live struct {
	id     domain.SessionHandle
	input  chan domain.UserResponse
	ctx    context.Context
	cancel context.CancelFunc
}

var _ domain.SetupBackend = (*Manager)(nil)

// NewManager creates a manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Runner == nil {
		deps.Runner = ExecRunner{}
	}
	if deps.Options.MaxTurns <= 0 {
		deps.Options.MaxTurns = 25
	}
	return &Manager{deps: deps}
}

// Start begins a full setup.
func (m *Manager) Start(ctx context.Context, sink domain.EventSink) (domain.SessionHandle, error) {
	return m.start(ctx, sink, "", func(f *Flow, ctx context.Context) { f.Run(ctx) })
}

// StartForCLI returns a start capability that sets up a single CLI.
func (m *Manager) StartForCLI(name string) func(context.Context, domain.EventSink) (domain.SessionHandle, error) {
	return func(ctx context.Context, sink domain.EventSink) (domain.SessionHandle, error) {
		return m.start(ctx, sink, name, func(f *Flow, ctx context.Context) { f.RunForCLI(ctx, name) })
	}
}

func (m *Manager) start(ctx context.Context, sink domain.EventSink, cli string, run func(*Flow, context.Context)) (domain.SessionHandle, error) {
	_, span := tracer.StartSpan(ctx, "setup.start")
	defer span.End()

	id := domain.SessionHandle(idgen.New())
	span.SetAttributes(tracer.StringAttr("session", string(id)), tracer.StringAttr("cli", cli))

	// The task outlives the start call.
	flowCtx, cancel := context.WithCancel(context.Background())
	l := &live{id: id, input: make(chan domain.UserResponse, inputBuffer), ctx: flowCtx, cancel: cancel}

	m.mu.Lock()
	if m.live != nil {
		m.live.cancel()
	}
	m.live = l
	m.mu.Unlock()

	flow := newFlow(id, &m.deps, sink, l.input)
	go func() {
		defer m.clear(id)
		run(flow, flowCtx)
	}()

	m.deps.Logger.Info("setup session started", "session", string(id), "cli", cli)
	tracer.SetOK(span)
	return id, nil
}

// Respond forwards resp to the live session.
func (m *Manager) Respond(ctx context.Context, resp domain.UserResponse) error {
	_, span := tracer.StartSpan(ctx, "setup.respond")
	defer span.End()
	if resp == nil {
		err := domain.NewDomainError("Manager.Respond", domain.ErrInvalidInput, "nil response")
		tracer.RecordError(span, err)
		return err
	}
	span.SetAttributes(tracer.StringAttr("response", string(resp.ResponseKind())))

	m.mu.Lock()
	l := m.live
	m.mu.Unlock()
	if l == nil {
		tracer.RecordError(span, domain.ErrNoActiveSession)
		return domain.ErrNoActiveSession
	}

	select {
	case l.input <- resp:
		tracer.SetOK(span)
		return nil
	case <-l.ctx.Done():
		tracer.RecordError(span, domain.ErrNoActiveSession)
		return domain.ErrNoActiveSession
	case <-ctx.Done():
		tracer.RecordError(span, ctx.Err())
		return ctx.Err()
	}
}

// Cancel stops the live session, if any.
func (m *Manager) Cancel(ctx context.Context) error {
	_, span := tracer.StartSpan(ctx, "setup.cancel")
	defer span.End()

	m.mu.Lock()
	l := m.live
	m.live = nil
	m.mu.Unlock()

	if l != nil {
		span.SetAttributes(tracer.StringAttr("session", string(l.id)))
		l.cancel()
		m.deps.Logger.Info("setup session cancelled", "session", string(l.id))
	}
	tracer.SetOK(span)
	return nil
}

// Active returns the live session handle, or "".
func (m *Manager) Active() domain.SessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return ""
	}
	return m.live.id
}

func (m *Manager) clear(id domain.SessionHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live != nil && m.live.id == id {
		m.live.cancel()
		m.live = nil
	}
}
