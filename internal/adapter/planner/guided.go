package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"oulipoly-plane/internal/adapter/models"
	"oulipoly-plane/internal/domain"
)

// GuidedFormID correlates the model naming form.
const GuidedFormID = "guided-models"

// defaultArgs are the non-interactive flags of each known CLI.
var defaultArgs = map[string][]string{
	"claude":   {"-p"},
	"codex":    {"exec"},
	"opencode": {"run"},
	"gemini":   {"-p"},
}

type guidedStage int

const (
	stageSelect guidedStage = iota
	stageNames
	stageWrite
	stageDone
)

// Guided is an offline planner that walks the user through picking CLIs
// and naming one model per CLI. It needs no agent.
type Guided struct {
	brief domain.PlanBrief

	mu       sync.Mutex
	stage    guidedStage
	selected []string
}

// NewGuided creates a guided planner for one session.
func NewGuided(brief domain.PlanBrief) *Guided {
	g := &Guided{brief: brief}
	if brief.CLI != "" {
		g.selected = []string{brief.CLI}
	}
	return g
}

// NeedsCLI implements domain.Planner.
func (g *Guided) NeedsCLI() string { return "" }

// Turn implements domain.Planner.
func (g *Guided) Turn(_ context.Context, message string) (domain.AgentTurn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.stage {
	case stageSelect:
		if len(g.selected) > 0 {
			return g.checkAndName(), nil
		}
		g.stage = stageNames
		return g.selectCLIs(), nil

	case stageNames:
		resp, ok := lastResponse(message)
		sel, isSel := resp.(domain.CLISelectionResponse)
		if !ok || !isSel || len(sel.Selected) == 0 {
			g.stage = stageDone
			return finish("No CLIs selected.", nil), nil
		}
		g.selected = sel.Selected
		return g.checkAndName(), nil

	case stageWrite:
		return g.write(message), nil
	}
	return domain.AgentTurn{Done: true}, nil
}

func (g *Guided) selectCLIs() domain.AgentTurn {
	var opts []domain.CLIOption
	for _, c := range g.brief.Report.CLIs {
		desc := "not installed"
		if c.Installed {
			desc = domain.Deref(c.Version, "installed")
		}
		opts = append(opts, domain.CLIOption{Name: c.Name, Installed: c.Installed, Description: desc})
	}
	return domain.AgentTurn{Actions: []domain.AgentAction{
		{Type: domain.AgentStatus, Message: "Reviewing detected CLIs..."},
		{Type: domain.AgentAskUser, Ask: domain.CLISelectionAction{
			Available: opts,
			Message:   "Select the CLIs to configure",
		}},
	}}
}

// checkAndName probes every selected CLI and asks for model names.
func (g *Guided) checkAndName() domain.AgentTurn {
	g.stage = stageWrite
	actions := make([]domain.AgentAction, 0, len(g.selected)+1)
	fields := make([]domain.FormField, 0, len(g.selected))
	for _, cli := range g.selected {
		actions = append(actions, domain.AgentAction{
			Type:        domain.AgentRunCommand,
			Command:     cli,
			Args:        []string{"--version"},
			Description: fmt.Sprintf("Checking %s...", cli),
		})
		fields = append(fields, domain.FormField{
			Name:         cli,
			Label:        fmt.Sprintf("Model name for %s", cli),
			FieldType:    domain.FieldText,
			Required:     true,
			DefaultValue: domain.Ptr(cli),
			HelpText:     domain.Ptr("Saved as " + filepath.Join(g.brief.ModelsDir, cli+".yaml")),
		})
	}
	actions = append(actions, domain.AgentAction{Type: domain.AgentAskUser, Ask: domain.FormAction{
		Title:       "Name your models",
		Description: domain.Ptr("One model is created per CLI."),
		Fields:      fields,
		FormID:      GuidedFormID,
		SubmitLabel: domain.Ptr("Create models"),
	}})
	return domain.AgentTurn{Actions: actions}
}

// write creates one model per named CLI, tests it, remembers it and
// completes.
func (g *Guided) write(message string) domain.AgentTurn {
	g.stage = stageDone

	resp, ok := lastResponse(message)
	form, isForm := resp.(domain.FormSubmit)
	if !ok || !isForm {
		return finish("No models configured.", nil)
	}

	var actions []domain.AgentAction
	var items []string
	for _, cli := range g.selected {
		name := strings.TrimSpace(form.Values[cli])
		if name == "" {
			name = cli
		}
		args, known := defaultArgs[cli]
		if !known {
			args = []string{}
		}
		cfg := domain.ModelConfig{
			Name:       name,
			PromptMode: domain.PromptModeStdin,
			Providers:  []domain.ProviderConfig{{Command: cli, Args: args}},
		}
		content, err := models.Encode(cfg)
		if err != nil {
			continue
		}
		actions = append(actions,
			domain.AgentAction{
				Type:        domain.AgentWriteConfig,
				Path:        filepath.Join(g.brief.ModelsDir, name+".yaml"),
				Content:     string(content),
				Description: fmt.Sprintf("Writing model %s", name),
			},
			domain.AgentAction{
				Type:      domain.AgentTestIntegration,
				ModelName: name,
				Command:   cli,
				Args:      []string{"--version"},
			},
			rememberModel(name, cli),
		)
		items = append(items, name)
	}
	turn := finish(fmt.Sprintf("Configured %d model(s).", len(items)), items)
	turn.Actions = append(actions, turn.Actions...)
	return turn
}

func rememberModel(name, cli string) domain.AgentAction {
	data, _ := json.Marshal(map[string]string{"cli": cli, "prompt_mode": string(domain.PromptModeStdin)})
	return domain.AgentAction{
		Type:     domain.AgentUpdateMemory,
		NodeType: "model",
		Label:    name,
		Data:     string(data),
		Edges:    []domain.MemoryEdgeSpec{{TargetLabel: cli, TargetType: "cli", EdgeType: "runs_on"}},
	}
}

func finish(summary string, items []string) domain.AgentTurn {
	if items == nil {
		items = []string{}
	}
	return domain.AgentTurn{
		Actions: []domain.AgentAction{{Type: domain.AgentComplete, Summary: summary, Items: items}},
		Done:    true,
	}
}

// lastResponse decodes the last "User responded: <json>" line of message.
func lastResponse(message string) (domain.UserResponse, bool) {
	const marker = "User responded: "
	i := strings.LastIndex(message, marker)
	if i < 0 {
		return nil, false
	}
	raw := message[i+len(marker):]
	if j := strings.IndexByte(raw, '\n'); j >= 0 {
		raw = raw[:j]
	}
	resp, err := domain.UnmarshalUserResponse([]byte(raw))
	if err != nil {
		return nil, false
	}
	return resp, true
}
