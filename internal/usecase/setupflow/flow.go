package setupflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/infra/tracer"
)

// Messages shown by the flow.
const (
	msgDetecting     = "Detecting installed CLIs..."
	msgVerifying     = "Verifying Claude CLI installation..."
	msgThinking      = "Thinking..."
	msgCancelled     = "Setup cancelled."
	msgUserCancelled = "Setup cancelled by user."
	msgStillMissing  = "Claude CLI still not detected. Please install it and try again."
	msgMaxTurns      = "Setup agent exceeded maximum turns. Please retry or configure manually."

	openingFull      = "Analyze the system state and begin setup."
	openingCLIFormat = "Help set up the %s CLI."
	continueMessage  = "Continue with the next step."
)

// Flow is one backend setup session: it detects the host, then alternates
// planner turns with executing their actions, pausing on ask_user until a
// response arrives on input.
type Flow struct {
	id     domain.SessionHandle
	deps   *Deps
	sink   domain.EventSink
	input  <-chan domain.UserResponse
	guard  guard
	logger *slog.Logger
	// report is the latest full detection, used to check sync targets.
	report domain.DetectionReport
}

// outcome records how a flow ended.
type outcome struct {
	kind    domain.SessionOutcome
	summary string
}

var cancelledOutcome = outcome{kind: domain.OutcomeCancelled, summary: domain.ErrSessionCancelled.Error()}

func newFlow(id domain.SessionHandle, deps *Deps, sink domain.EventSink, input <-chan domain.UserResponse) *Flow {
	return &Flow{
		id:     id,
		deps:   deps,
		sink:   sink,
		input:  input,
		guard:  newGuard(deps.Options.AllowedCommands, deps.Options.AllowedWritePrefixes, deps.Options.Home),
		logger: deps.Logger.With("session", string(id)),
	}
}

// Run performs a full setup.
func (f *Flow) Run(ctx context.Context) {
	f.record(ctx, "")

	f.send(domain.StatusEvent{Message: msgDetecting})
	report := f.deps.Detector.Detect(ctx)
	f.report = report
	f.send(domain.ShowResultEvent{Content: domain.DetectionSummary{CLIs: report.Summary()}})

	brief := f.brief(ctx, report, "")
	planner := f.deps.Planners(brief)

	if need := planner.NeedsCLI(); need != "" {
		if info, _ := report.CLI(need); !info.Installed {
			var ok bool
			if report, ok = f.bootstrap(ctx, need); !ok {
				return
			}
			f.report = report
			brief = f.brief(ctx, report, "")
			planner = f.deps.Planners(brief)
		}
	}

	f.finish(ctx, f.loop(ctx, planner, openingFull))
}

// RunForCLI performs setup for a single CLI.
func (f *Flow) RunForCLI(ctx context.Context, name string) {
	f.record(ctx, name)

	f.send(domain.StatusEvent{Message: fmt.Sprintf("Detecting %s CLI...", name)})
	info := f.deps.Detector.DetectCLI(ctx, name)
	f.report = f.deps.Detector.Detect(ctx)
	report := domain.DetectionReport{
		CLIs:     []domain.CLIInfo{info},
		OS:       f.report.OS,
		Wrappers: []domain.WrapperInfo{},
	}
	f.send(domain.ShowResultEvent{Content: domain.DetectionSummary{CLIs: report.Summary()}})

	planner := f.deps.Planners(f.brief(ctx, report, name))
	f.finish(ctx, f.loop(ctx, planner, fmt.Sprintf(openingCLIFormat, name)))
}

// recentSessions is how many past sessions a planner is told about.
const recentSessions = 5

func (f *Flow) brief(ctx context.Context, report domain.DetectionReport, cli string) domain.PlanBrief {
	b := domain.PlanBrief{Report: report, CLI: cli, ModelsDir: f.deps.Options.ModelsDir}
	if f.deps.Memory != nil {
		snap, err := f.deps.Memory.Subgraph(ctx, domain.MemoryContextTypes)
		if err != nil {
			f.logger.Warn("load memory graph failed", "error", err)
		} else {
			b.Memory = snap
		}
	}
	if f.deps.Extensions != nil {
		b.Extensions = f.deps.Extensions.Discover(f.report)
	}
	if f.deps.History == nil {
		return b
	}
	recent, err := f.deps.History.Recent(ctx, recentSessions+1)
	if err != nil {
		f.logger.Warn("load setup history failed", "error", err)
		return b
	}
	for _, r := range recent {
		if r.ID != f.id && len(b.Previous) < recentSessions {
			b.Previous = append(b.Previous, r)
		}
	}
	return b
}

// bootstrap asks the user to install cli and re-detects. It returns false
// when the flow ended.
func (f *Flow) bootstrap(ctx context.Context, cli string) (domain.DetectionReport, bool) {
	f.send(domain.NeedInputEvent{Action: domain.OAuthFlowAction{
		Provider:     cli,
		LoginCommand: cli + " login",
		Instructions: installInstructions(f.deps.Options.GOOS),
	}})

	resp, ok := f.await(ctx)
	if !ok {
		resp = domain.CancelResponse{}
	}
	switch r := resp.(type) {
	case domain.CancelResponse:
		f.send(domain.ErrorEvent{Message: msgCancelled, Recoverable: false})
		f.finish(ctx, cancelledOutcome)
		return domain.DetectionReport{}, false
	case domain.OAuthComplete:
		if !r.Success {
			break
		}
		f.send(domain.StatusEvent{Message: msgVerifying})
		report := f.deps.Detector.Detect(ctx)
		if info, _ := report.CLI(cli); !info.Installed {
			f.send(domain.ErrorEvent{Message: msgStillMissing, Recoverable: false})
			f.finish(ctx, outcome{kind: domain.OutcomeFailed, summary: "failed_bootstrap"})
			return domain.DetectionReport{}, false
		}
		return report, true
	}
	// Skipped: continue and let the planner cope with the missing CLI.
	return f.deps.Detector.Detect(ctx), true
}

// loop runs planner turns until completion, failure or cancellation.
func (f *Flow) loop(ctx context.Context, planner domain.Planner, opening string) outcome {
	maxTurns := f.deps.Options.MaxTurns
	next := opening

	for turn := 1; ; turn++ {
		if turn > maxTurns {
			f.send(domain.ErrorEvent{Message: msgMaxTurns, Recoverable: false})
			return outcome{kind: domain.OutcomeFailed, summary: domain.ErrMaxTurns.Error()}
		}

		pct := float64(turn) / float64(maxTurns) * 100
		if pct > 100 {
			pct = 100
		}
		f.send(domain.ProgressEvent{
			Message: fmt.Sprintf("Agent turn %d/%d...", turn, maxTurns),
			Percent: &pct,
		})
		f.send(domain.StatusEvent{Message: msgThinking})

		turnCtx, span := tracer.StartSpan(ctx, "setup.turn")
		span.SetAttributes(tracer.StringAttr("session", string(f.id)), tracer.IntAttr("turn", turn))
		result, err := planner.Turn(turnCtx, next)
		if err != nil {
			tracer.RecordError(span, err)
			span.End()
			f.logger.Warn("planner turn failed", "turn", turn, "error", err)
			f.send(domain.ErrorEvent{Message: "Agent error: " + err.Error(), Recoverable: true})
			return outcome{kind: domain.OutcomeFailed, summary: "agent_error"}
		}
		tracer.SetOK(span)
		span.End()

		var feedback []string
		end, done := f.execute(ctx, result.Actions, &feedback)
		f.recordTurn(ctx, turn, result.Actions, feedback)
		if done {
			return end
		}
		if result.Done {
			return outcome{kind: domain.OutcomeComplete, summary: "done"}
		}

		if len(feedback) == 0 {
			next = continueMessage
		} else {
			next = "Results from previous actions:\n\n" + strings.Join(feedback, "\n\n")
		}
	}
}

// execute runs the actions of one turn in order. It returns done when an
// action ended the flow.
func (f *Flow) execute(ctx context.Context, actions []domain.AgentAction, feedback *[]string) (outcome, bool) {
	for _, a := range actions {
		switch a.Type {
		case domain.AgentStatus:
			f.send(domain.StatusEvent{Message: a.Message})

		case domain.AgentRunCommand:
			f.status(a.Description)
			cmdline := strings.TrimSpace(a.Command + " " + strings.Join(a.Args, " "))
			stdout, stderr, code, err := f.run(ctx, a.Command, a.Args)
			if err != nil {
				*feedback = append(*feedback, "Command failed: "+err.Error())
				f.send(domain.ErrorEvent{Message: err.Error(), Recoverable: true})
				continue
			}
			f.send(domain.ShowResultEvent{Content: domain.CommandOutput{
				Command: cmdline, Stdout: stdout, Stderr: stderr, ExitCode: code,
			}})
			*feedback = append(*feedback, fmt.Sprintf("Command `%s` completed (exit %d).\nstdout: %s\nstderr: %s",
				cmdline, code, truncate(stdout, 500), truncate(stderr, 200)))

		case domain.AgentWriteConfig:
			f.status(a.Description)
			resolved, err := f.guard.write(a.Path, a.Content)
			if err != nil {
				*feedback = append(*feedback, "Failed to write config: "+err.Error())
				f.send(domain.ErrorEvent{Message: err.Error(), Recoverable: true})
				continue
			}
			f.send(domain.ShowResultEvent{Content: domain.ConfigWritten{Path: resolved, Description: a.Description}})
			*feedback = append(*feedback, "Config written: "+a.Path)

		case domain.AgentTestIntegration:
			f.send(domain.StatusEvent{Message: fmt.Sprintf("Testing %s...", a.ModelName)})
			stdout, stderr, code, err := f.run(ctx, a.Command, a.Args)
			if err != nil {
				*feedback = append(*feedback, fmt.Sprintf("Test for %s failed: %v", a.ModelName, err))
				continue
			}
			success := code == 0
			output, verdict := stdout, "PASS"
			if !success {
				output, verdict = stderr, "FAIL"
			}
			f.send(domain.ShowResultEvent{Content: domain.TestResult{Model: a.ModelName, Success: success, Output: output}})
			*feedback = append(*feedback, fmt.Sprintf("Test for %s: %s (exit %d). Output: %s",
				a.ModelName, verdict, code, truncate(output, 300)))

		case domain.AgentAskUser:
			f.send(domain.NeedInputEvent{Action: a.Ask})
			resp, ok := f.await(ctx)
			if !ok {
				return cancelledOutcome, true
			}
			if resp.ResponseKind() == domain.ResponseCancel {
				f.send(domain.ErrorEvent{Message: msgUserCancelled, Recoverable: false})
				return cancelledOutcome, true
			}
			raw, err := domain.MarshalUserResponse(resp)
			if err != nil {
				raw = []byte("{}")
			}
			*feedback = append(*feedback, "User responded: "+string(raw))

		case domain.AgentSyncSkill:
			f.send(domain.StatusEvent{Message: fmt.Sprintf("Syncing skill '%s' to %s...", a.SkillName, a.TargetCLI)})
			if err := f.syncSkill(a); err != nil {
				*feedback = append(*feedback, fmt.Sprintf("Failed to sync skill: %v", err))
				f.send(domain.ErrorEvent{Message: err.Error(), Recoverable: true})
				continue
			}
			*feedback = append(*feedback, fmt.Sprintf("Skill '%s' synced to %s", a.SkillName, a.TargetCLI))

		case domain.AgentSyncMCP:
			f.send(domain.StatusEvent{Message: fmt.Sprintf("Syncing MCP '%s' to %s...", a.MCPName, a.TargetCLI)})
			note, err := f.syncMCP(ctx, a)
			if err != nil {
				*feedback = append(*feedback, fmt.Sprintf("Failed to sync MCP: %v", err))
				f.send(domain.ErrorEvent{Message: err.Error(), Recoverable: true})
				continue
			}
			*feedback = append(*feedback, fmt.Sprintf("MCP '%s' installed in %s", a.MCPName, a.TargetCLI)+note)

		case domain.AgentUpdateMemory:
			if err := f.remember(ctx, a); err != nil {
				f.logger.Warn("update memory failed", "node", domain.MemoryNodeID(a.NodeType, a.Label), "error", err)
				*feedback = append(*feedback, "Failed to update memory: "+err.Error())
			}

		case domain.AgentComplete:
			items := a.Items
			if items == nil {
				items = []string{}
			}
			f.send(domain.CompleteEvent{Summary: a.Summary, ItemsConfigured: items})
			return outcome{kind: domain.OutcomeComplete, summary: a.Summary}, true
		}
	}
	return outcome{}, false
}

// syncTarget checks that cli is installed according to the latest
// detection.
func (f *Flow) syncTarget(op, cli string) error {
	if f.deps.Extensions == nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "extension sync is not available")
	}
	if info, ok := f.report.CLI(cli); !ok || !info.Installed {
		return domain.NewDomainError(op, domain.ErrCLINotInstalled, cli)
	}
	return nil
}

func (f *Flow) syncSkill(a domain.AgentAction) error {
	if err := f.syncTarget("sync_skill", a.TargetCLI); err != nil {
		return err
	}
	return f.deps.Extensions.CopySkill(a.SourceCLI, a.TargetCLI, a.SkillName)
}

// syncMCP installs the server and returns a note on the tools it offers.
// Without an inline config the server is copied from the source CLI.
func (f *Flow) syncMCP(ctx context.Context, a domain.AgentAction) (string, error) {
	if err := f.syncTarget("sync_mcp", a.TargetCLI); err != nil {
		return "", err
	}
	config := a.Config
	if config == "" {
		var err error
		if config, err = f.deps.Extensions.LookupMCP(a.SourceCLI, a.MCPName); err != nil {
			return "", err
		}
	}
	if err := f.deps.Extensions.InstallMCP(a.TargetCLI, a.MCPName, config); err != nil {
		return "", err
	}
	if f.deps.MCPTools == nil {
		return "", nil
	}
	tools, err := f.deps.MCPTools.ListTools(ctx, config)
	if err != nil {
		f.logger.Warn("list mcp tools failed", "mcp", a.MCPName, "error", err)
		return fmt.Sprintf(" (the server did not start: %v)", err), nil
	}
	return fmt.Sprintf(" (tools: %s)", strings.Join(tools, ", ")), nil
}

// remember stores a node and its edges in the memory graph. Edge targets
// default to the node's own type.
func (f *Flow) remember(ctx context.Context, a domain.AgentAction) error {
	if f.deps.Memory == nil {
		f.logger.Debug("memory update dropped, no store", "node", domain.MemoryNodeID(a.NodeType, a.Label))
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	id := domain.MemoryNodeID(a.NodeType, a.Label)
	node := domain.MemoryNode{ID: id, Type: a.NodeType, Label: a.Label, Data: a.Data}
	if err := f.deps.Memory.UpsertNode(ctx, node); err != nil {
		return err
	}
	for _, e := range a.Edges {
		targetType := e.TargetType
		if targetType == "" {
			targetType = a.NodeType
		}
		edge := domain.MemoryEdge{SourceID: id, TargetID: domain.MemoryNodeID(targetType, e.TargetLabel), Type: e.EdgeType}
		if err := f.deps.Memory.AddEdge(ctx, edge); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) run(ctx context.Context, command string, args []string) (string, string, int, error) {
	if err := f.guard.checkCommand(command); err != nil {
		return "", "", -1, err
	}
	return f.deps.Runner.Run(ctx, command, args)
}

// await blocks for the next response. It returns false when the session
// was cancelled.
func (f *Flow) await(ctx context.Context) (domain.UserResponse, bool) {
	select {
	case resp := <-f.input:
		return resp, true
	case <-ctx.Done():
		return nil, false
	}
}

func (f *Flow) status(msg string) {
	if msg != "" {
		f.send(domain.StatusEvent{Message: msg})
	}
}

func (f *Flow) send(ev domain.SetupEvent) {
	if err := f.sink.Send(ev); err != nil {
		f.logger.Debug("setup event dropped", "event", string(ev.EventKind()), "error", err)
	}
}

func (f *Flow) record(ctx context.Context, cli string) {
	if f.deps.History == nil {
		return
	}
	rec := domain.SessionRecord{ID: f.id, CLI: cli, Planner: f.deps.Options.Planner}
	if err := f.deps.History.CreateSession(context.WithoutCancel(ctx), rec); err != nil {
		f.logger.Warn("record setup session failed", "error", err)
	}
}

func (f *Flow) recordTurn(ctx context.Context, turn int, actions []domain.AgentAction, feedback []string) {
	if f.deps.History == nil {
		return
	}
	raw, err := json.Marshal(actions)
	if err != nil {
		raw = []byte("[]")
	}
	rec := domain.TurnRecord{Seq: turn, Actions: string(raw), Feedback: strings.Join(feedback, "\n\n")}
	if err := f.deps.History.RecordTurn(context.WithoutCancel(ctx), f.id, rec); err != nil {
		f.logger.Warn("record setup turn failed", "turn", turn, "error", err)
	}
}

func (f *Flow) finish(ctx context.Context, o outcome) {
	f.logger.Info("setup flow ended", "outcome", string(o.kind))
	if f.deps.History == nil {
		return
	}
	if err := f.deps.History.EndSession(context.WithoutCancel(ctx), f.id, o.kind, o.summary); err != nil {
		f.logger.Warn("record setup outcome failed", "error", err)
	}
}
