package setupflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

type chanSink chan domain.SetupEvent

func (c chanSink) Send(ev domain.SetupEvent) error {
	c <- ev
	return nil
}

func (c chanSink) next(t *testing.T) domain.SetupEvent {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// until skips events until one of kind arrives.
func (c chanSink) until(t *testing.T, kind domain.EventKind) domain.SetupEvent {
	t.Helper()
	for {
		if ev := c.next(t); ev.EventKind() == kind {
			return ev
		}
	}
}

type fakeDetector struct {
	mu      sync.Mutex
	reports []domain.DetectionReport
	calls   int
}

func (d *fakeDetector) Detect(context.Context) domain.DetectionReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	if i >= len(d.reports) {
		i = len(d.reports) - 1
	}
	d.calls++
	return d.reports[i]
}

func (d *fakeDetector) DetectCLI(ctx context.Context, name string) domain.CLIInfo {
	info, _ := d.Detect(ctx).CLI(name)
	info.Name = name
	return info
}

func report(installed bool) domain.DetectionReport {
	return domain.DetectionReport{
		CLIs: []domain.CLIInfo{{Name: "claude", Installed: installed, Version: domain.Ptr("1.0.0")}},
		OS:   domain.OSInfo{OS: "linux", Arch: "amd64"},
	}
}

type fakePlanner struct {
	needs string

	mu       sync.Mutex
	turns    []domain.AgentTurn
	err      error
	messages []string
}

func (p *fakePlanner) NeedsCLI() string { return p.needs }

func (p *fakePlanner) Turn(_ context.Context, message string) (domain.AgentTurn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	if p.err != nil {
		return domain.AgentTurn{}, p.err
	}
	if len(p.turns) == 0 {
		return domain.AgentTurn{}, nil
	}
	t := p.turns[0]
	p.turns = p.turns[1:]
	return t, nil
}

func (p *fakePlanner) Messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRunner) Run(_ context.Context, command string, args []string) (string, string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.TrimSpace(command+" "+strings.Join(args, " ")))
	if len(args) > 0 && args[0] == "--fail" {
		return "", "bad flag", 2, nil
	}
	return "ok output", "", 0, nil
}

type fakeHistory struct {
	mu       sync.Mutex
	sessions map[domain.SessionHandle]domain.SessionRecord
	turns    map[domain.SessionHandle][]domain.TurnRecord
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		sessions: map[domain.SessionHandle]domain.SessionRecord{},
		turns:    map[domain.SessionHandle][]domain.TurnRecord{},
	}
}

func (h *fakeHistory) CreateSession(_ context.Context, rec domain.SessionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.Outcome = domain.OutcomeRunning
	h.sessions[rec.ID] = rec
	return nil
}

func (h *fakeHistory) RecordTurn(_ context.Context, id domain.SessionHandle, turn domain.TurnRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[id] = append(h.turns[id], turn)
	return nil
}

func (h *fakeHistory) EndSession(_ context.Context, id domain.SessionHandle, outcome domain.SessionOutcome, summary string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec := h.sessions[id]
	rec.Outcome = outcome
	rec.Summary = summary
	h.sessions[id] = rec
	return nil
}

func (h *fakeHistory) Recent(context.Context, int) ([]domain.SessionRecord, error) { return nil, nil }

func (h *fakeHistory) Turns(_ context.Context, id domain.SessionHandle) ([]domain.TurnRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.turns[id], nil
}

func (h *fakeHistory) outcome(id domain.SessionHandle) domain.SessionOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id].Outcome
}

func (h *fakeHistory) summary(id domain.SessionHandle) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id].Summary
}

type fakeMemory struct {
	mu    sync.Mutex
	nodes map[string]domain.MemoryNode
	edges []domain.MemoryEdge
}

func newFakeMemory() *fakeMemory { return &fakeMemory{nodes: map[string]domain.MemoryNode{}} }

func (m *fakeMemory) UpsertNode(_ context.Context, n domain.MemoryNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
	return nil
}

func (m *fakeMemory) AddEdge(_ context.Context, e domain.MemoryEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, e)
	return nil
}

func (m *fakeMemory) Subgraph(context.Context, []string) (domain.MemorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var snap domain.MemorySnapshot
	for _, n := range m.nodes {
		snap.Nodes = append(snap.Nodes, n)
	}
	snap.Edges = append(snap.Edges, m.edges...)
	return snap, nil
}

type fakeSyncer struct {
	mu      sync.Mutex
	calls   []string
	servers map[string]string // "cli/name" -> JSON config
}

func (s *fakeSyncer) Discover(domain.DetectionReport) []domain.Extension {
	return []domain.Extension{{Name: "code-review", Kind: domain.ExtensionSkill, InstalledIn: []string{"claude"}}}
}

func (s *fakeSyncer) CopySkill(source, target, skill string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "skill "+source+">"+target+" "+skill)
	return nil
}

func (s *fakeSyncer) LookupMCP(cli, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.servers[cli+"/"+name]
	if !ok {
		return "", domain.NewDomainError("LookupMCP", domain.ErrNotFound, name)
	}
	return cfg, nil
}

func (s *fakeSyncer) InstallMCP(target, name, config string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "mcp "+target+" "+name+" "+config)
	return nil
}

func (s *fakeSyncer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type fakeTools struct{ tools []string }

func (l fakeTools) ListTools(context.Context, string) ([]string, error) { return l.tools, nil }

type fixture struct {
	manager  *Manager
	planner  *fakePlanner
	detector *fakeDetector
	runner   *fakeRunner
	history  *fakeHistory
	memory   *fakeMemory
	syncer   *fakeSyncer
	sink     chanSink
	home     string
}

func newFixture(t *testing.T, planner *fakePlanner, reports ...domain.DetectionReport) *fixture {
	t.Helper()
	f := &fixture{
		planner:  planner,
		detector: &fakeDetector{reports: reports},
		runner:   &fakeRunner{},
		history:  newFakeHistory(),
		memory:   newFakeMemory(),
		syncer:   &fakeSyncer{servers: map[string]string{}},
		sink:     make(chanSink, 128),
		home:     t.TempDir(),
	}
	opts := DefaultOptions(f.home, "linux")
	opts.Planner = "fake"
	f.manager = NewManager(Deps{
		Detector:   f.detector,
		Planners:   func(domain.PlanBrief) domain.Planner { return planner },
		Runner:     f.runner,
		History:    f.history,
		Memory:     f.memory,
		Extensions: f.syncer,
		Options:    opts,
	})
	return f
}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return f.manager.Active() == "" }, 2*time.Second, 5*time.Millisecond)
}

func TestFlow_FullRun(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentStatus, Message: "Checking claude"},
			{Type: domain.AgentRunCommand, Command: "claude", Args: []string{"--version"}, Description: "Check version"},
			{Type: domain.AgentWriteConfig, Path: "~/.config/oulipoly-agent-runner/models/fast.yaml", Content: "command: claude -p\n", Description: "Write model"},
			{Type: domain.AgentTestIntegration, ModelName: "fast", Command: "claude", Args: []string{"--fail"}},
		}},
		{Actions: []domain.AgentAction{
			{Type: domain.AgentAskUser, Ask: domain.ConfirmAction{Title: "Keep?", Message: "Keep config", ConfirmID: "keep"}},
		}},
		{Actions: []domain.AgentAction{
			{Type: domain.AgentComplete, Summary: "Configured fast", Items: []string{"fast"}},
		}},
	}}
	f := newFixture(t, planner, report(true))
	ctx := context.Background()

	id, err := f.manager.Start(ctx, f.sink)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, f.manager.Active())

	assert.Equal(t, domain.StatusEvent{Message: msgDetecting}, f.sink.next(t))
	summary := f.sink.next(t).(domain.ShowResultEvent).Content.(domain.DetectionSummary)
	require.Len(t, summary.CLIs, 1)
	assert.True(t, summary.CLIs[0].Installed)

	progress := f.sink.until(t, domain.EventProgress).(domain.ProgressEvent)
	assert.Equal(t, "Agent turn 1/25...", progress.Message)

	out := f.sink.until(t, domain.EventShowResult).(domain.ShowResultEvent).Content.(domain.CommandOutput)
	assert.Equal(t, "claude --version", out.Command)
	assert.Equal(t, 0, out.ExitCode)

	written := f.sink.until(t, domain.EventShowResult).(domain.ShowResultEvent).Content.(domain.ConfigWritten)
	assert.Equal(t, filepath.Join(f.home, ".config/oulipoly-agent-runner/models/fast.yaml"), written.Path)
	data, err := os.ReadFile(written.Path)
	require.NoError(t, err)
	assert.Equal(t, "command: claude -p\n", string(data))

	test := f.sink.until(t, domain.EventShowResult).(domain.ShowResultEvent).Content.(domain.TestResult)
	assert.False(t, test.Success)
	assert.Equal(t, "bad flag", test.Output)

	ask := f.sink.until(t, domain.EventNeedInput).(domain.NeedInputEvent)
	assert.Equal(t, "keep", ask.Action.CorrelationID())
	require.NoError(t, f.manager.Respond(ctx, domain.ConfirmResponse{ConfirmID: "keep", Confirmed: true}))

	done := f.sink.until(t, domain.EventComplete).(domain.CompleteEvent)
	assert.Equal(t, "Configured fast", done.Summary)
	assert.Equal(t, []string{"fast"}, done.ItemsConfigured)

	f.waitIdle(t)
	assert.Equal(t, domain.OutcomeComplete, f.history.outcome(id))

	msgs := planner.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, openingFull, msgs[0])
	assert.Contains(t, msgs[1], "Command `claude --version` completed (exit 0).")
	assert.Contains(t, msgs[1], "Config written: ~/.config/oulipoly-agent-runner/models/fast.yaml")
	assert.Contains(t, msgs[1], "Test for fast: FAIL (exit 2). Output: bad flag")
	assert.Contains(t, msgs[2], `User responded: {"type":"confirm"`)

	turns, err := f.history.Turns(ctx, id)
	require.NoError(t, err)
	assert.Len(t, turns, 3)

	assert.ErrorIs(t, f.manager.Respond(ctx, domain.SkipResponse{}), domain.ErrNoActiveSession)
}

func TestFlow_GuardRejections(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentRunCommand, Command: "rm", Args: []string{"-rf", "/"}},
			{Type: domain.AgentWriteConfig, Path: "~/.config/oulipoly-agent-runner/../../.bashrc", Content: "x"},
		}, Done: false},
		{Done: true},
	}}
	f := newFixture(t, planner, report(true))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	first := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.True(t, first.Recoverable)
	assert.Contains(t, first.Message, "command 'rm' is not in the allowlist")

	second := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.Contains(t, second.Message, "is not in allowed directories")

	f.waitIdle(t)
	assert.Empty(t, f.runner.calls)
	_, statErr := os.Stat(filepath.Join(f.home, ".bashrc"))
	assert.True(t, os.IsNotExist(statErr))

	msgs := planner.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "Command failed:")
	assert.Contains(t, msgs[1], "Failed to write config:")
}

func TestFlow_MaxTurns(t *testing.T) {
	planner := &fakePlanner{}
	f := newFixture(t, planner, report(true))
	f.manager.deps.Options.MaxTurns = 2

	id, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	ev := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.Equal(t, msgMaxTurns, ev.Message)
	assert.False(t, ev.Recoverable)

	f.waitIdle(t)
	assert.Equal(t, domain.OutcomeFailed, f.history.outcome(id))
	assert.Equal(t, []string{openingFull, continueMessage}, planner.Messages())
}

func TestFlow_PlannerError(t *testing.T) {
	f := newFixture(t, &fakePlanner{err: errors.New("boom")}, report(true))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	ev := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.Equal(t, "Agent error: boom", ev.Message)
	assert.True(t, ev.Recoverable)
	f.waitIdle(t)
}

func TestFlow_BootstrapStillMissing(t *testing.T) {
	f := newFixture(t, &fakePlanner{needs: "claude"}, report(false))

	id, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	ask := f.sink.until(t, domain.EventNeedInput).(domain.NeedInputEvent)
	oauth := ask.Action.(domain.OAuthFlowAction)
	assert.Equal(t, "claude login", oauth.LoginCommand)
	assert.Contains(t, oauth.Instructions, "install.sh")

	require.NoError(t, f.manager.Respond(context.Background(), domain.OAuthComplete{Provider: "claude", Success: true}))
	assert.Equal(t, domain.StatusEvent{Message: msgVerifying}, f.sink.until(t, domain.EventStatus))

	ev := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.Equal(t, msgStillMissing, ev.Message)
	assert.False(t, ev.Recoverable)

	f.waitIdle(t)
	assert.Equal(t, domain.OutcomeFailed, f.history.outcome(id))
}

func TestFlow_BootstrapThenRun(t *testing.T) {
	planner := &fakePlanner{needs: "claude", turns: []domain.AgentTurn{{Done: true}}}
	f := newFixture(t, planner, report(false), report(true))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	f.sink.until(t, domain.EventNeedInput)
	require.NoError(t, f.manager.Respond(context.Background(), domain.OAuthComplete{Provider: "claude", Success: true}))
	f.sink.until(t, domain.EventProgress)
	f.waitIdle(t)
	assert.Equal(t, []string{openingFull}, planner.Messages())
}

func TestFlow_CancelDuringAsk(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentAskUser, Ask: domain.ConfirmAction{Title: "Go?", ConfirmID: "go"}},
		}},
	}}
	f := newFixture(t, planner, report(true))

	id, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)
	f.sink.until(t, domain.EventNeedInput)

	require.NoError(t, f.manager.Cancel(context.Background()))
	assert.Empty(t, f.manager.Active())
	assert.ErrorIs(t, f.manager.Respond(context.Background(), domain.SkipResponse{}), domain.ErrNoActiveSession)

	require.Eventually(t, func() bool {
		return f.history.outcome(id) == domain.OutcomeCancelled
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ErrSessionCancelled.Error(), f.history.summary(id))
}

func TestFlow_CancelResponse(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentAskUser, Ask: domain.ConfirmAction{Title: "Go?", ConfirmID: "go"}},
		}},
	}}
	f := newFixture(t, planner, report(true))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)
	f.sink.until(t, domain.EventNeedInput)

	require.NoError(t, f.manager.Respond(context.Background(), domain.CancelResponse{}))
	ev := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.Equal(t, msgUserCancelled, ev.Message)
	assert.False(t, ev.Recoverable)
	f.waitIdle(t)
}

func TestFlow_RunForCLI(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{{Done: true}}}
	f := newFixture(t, planner, report(true))

	_, err := f.manager.StartForCLI("claude")(context.Background(), f.sink)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEvent{Message: "Detecting claude CLI..."}, f.sink.next(t))
	f.waitIdle(t)
	assert.Equal(t, []string{"Help set up the claude CLI."}, planner.Messages())
}

func reportWith(names ...string) domain.DetectionReport {
	r := domain.DetectionReport{OS: domain.OSInfo{OS: "linux", Arch: "amd64"}}
	for _, n := range names {
		r.CLIs = append(r.CLIs, domain.CLIInfo{Name: n, Installed: true})
	}
	return r
}

func TestFlow_SyncAndMemory(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentSyncSkill, SourceCLI: "claude", TargetCLI: "codex", SkillName: "code-review"},
			{Type: domain.AgentSyncMCP, SourceCLI: "claude", TargetCLI: "codex", MCPName: "firecrawl", Config: `{"command":"npx"}`},
			{Type: domain.AgentSyncMCP, SourceCLI: "claude", TargetCLI: "codex", MCPName: "docs"},
			{Type: domain.AgentSyncSkill, SourceCLI: "claude", TargetCLI: "opencode", SkillName: "code-review"},
			{Type: domain.AgentUpdateMemory, NodeType: "cli", Label: "codex", Data: `{"skills":1}`, Edges: []domain.MemoryEdgeSpec{
				{TargetLabel: "claude", EdgeType: "synced_from"},
				{TargetLabel: "code-review", TargetType: "skill", EdgeType: "has_skill"},
			}},
		}},
		{Done: true},
	}}
	f := newFixture(t, planner, reportWith("claude", "codex"))
	f.syncer.servers["claude/docs"] = `{"command":"docs-mcp"}`
	f.manager.deps.MCPTools = fakeTools{tools: []string{"crawl", "scrape"}}

	id, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)

	failed := f.sink.until(t, domain.EventError).(domain.ErrorEvent)
	assert.True(t, failed.Recoverable)
	assert.Contains(t, failed.Message, "opencode")
	f.waitIdle(t)

	assert.Equal(t, []string{
		"skill claude>codex code-review",
		`mcp codex firecrawl {"command":"npx"}`,
		`mcp codex docs {"command":"docs-mcp"}`,
	}, f.syncer.Calls())

	msgs := planner.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "Skill 'code-review' synced to codex")
	assert.Contains(t, msgs[1], "MCP 'firecrawl' installed in codex (tools: crawl, scrape)")
	assert.Contains(t, msgs[1], "MCP 'docs' installed in codex")
	assert.Contains(t, msgs[1], "Failed to sync skill: sync_skill: opencode: "+domain.ErrCLINotInstalled.Error())
	assert.NotContains(t, msgs[1], "memory")

	snap, err := f.memory.Subgraph(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 1)
	assert.Equal(t, domain.MemoryNode{ID: "cli:codex", Type: "cli", Label: "codex", Data: `{"skills":1}`}, snap.Nodes[0])
	assert.Equal(t, []domain.MemoryEdge{
		{SourceID: "cli:codex", TargetID: "cli:claude", Type: "synced_from"},
		{SourceID: "cli:codex", TargetID: "skill:code-review", Type: "has_skill"},
	}, snap.Edges)
	assert.Equal(t, domain.OutcomeComplete, f.history.outcome(id))
}

func TestFlow_SyncMCPUnknownSource(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentSyncMCP, SourceCLI: "claude", TargetCLI: "codex", MCPName: "ghost"},
		}},
		{Done: true},
	}}
	f := newFixture(t, planner, reportWith("claude", "codex"))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)
	f.waitIdle(t)

	assert.Empty(t, f.syncer.Calls())
	msgs := planner.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "Failed to sync MCP:")
	assert.Contains(t, msgs[1], domain.ErrNotFound.Error())
}

func TestFlow_BriefCarriesMemoryAndExtensions(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{{Done: true}}}
	f := newFixture(t, planner, reportWith("claude"))
	require.NoError(t, f.memory.UpsertNode(context.Background(), domain.MemoryNode{ID: "model:fast", Type: "model", Label: "fast"}))

	briefs := make(chan domain.PlanBrief, 1)
	f.manager.deps.Planners = func(b domain.PlanBrief) domain.Planner {
		briefs <- b
		return planner
	}

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)
	f.waitIdle(t)

	b := <-briefs
	require.Len(t, b.Memory.Nodes, 1)
	assert.Equal(t, "model:fast", b.Memory.Nodes[0].ID)
	require.Len(t, b.Extensions, 1)
	assert.Equal(t, "code-review", b.Extensions[0].Name)
}

func TestManager_RespondNilResponse(t *testing.T) {
	planner := &fakePlanner{turns: []domain.AgentTurn{
		{Actions: []domain.AgentAction{
			{Type: domain.AgentAskUser, Ask: domain.ConfirmAction{Title: "Go?", ConfirmID: "go"}},
		}},
	}}
	f := newFixture(t, planner, report(true))

	_, err := f.manager.Start(context.Background(), f.sink)
	require.NoError(t, err)
	f.sink.until(t, domain.EventNeedInput)

	err = f.manager.Respond(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Manager.Respond", de.Op)

	// The session is still waiting for a real answer.
	require.NoError(t, f.manager.Respond(context.Background(), domain.CancelResponse{}))
	f.waitIdle(t)
}

func TestManager_RespondWithoutSession(t *testing.T) {
	m := NewManager(Deps{})
	assert.ErrorIs(t, m.Respond(context.Background(), domain.SkipResponse{}), domain.ErrNoActiveSession)
	assert.NoError(t, m.Cancel(context.Background()))
}

func TestGuard_Resolve(t *testing.T) {
	g := newGuard([]string{"claude"}, []string{".config/app/"}, "/home/u")

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"~/.config/app/models.yaml", "/home/u/.config/app/models.yaml", true},
		{"/home/u/.config/app/a/b.yaml", "/home/u/.config/app/a/b.yaml", true},
		{"~/.config/app/../other", "", false},
		{"~/.config/app", "", false},
		{"/etc/passwd", "", false},
		{"~/.config/application/x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := g.resolve(tt.path)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrPathNotAllowed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.NoError(t, g.checkCommand("claude"))
	assert.ErrorIs(t, g.checkCommand("rm"), domain.ErrCommandNotAllowed)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefghij", 5))
	assert.Equal(t, "日...", truncate("日本語", 4))
}

func TestExecRunner(t *testing.T) {
	r := ExecRunner{Timeout: 5 * time.Second}

	stdout, _, code, err := r.Run(context.Background(), "sh", []string{"-c", "echo hi; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
	assert.Equal(t, 3, code)

	_, _, code, err = r.Run(context.Background(), "definitely-not-a-command-xyz", nil)
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.Contains(t, err.Error(), "failed to execute 'definitely-not-a-command-xyz'")
}
