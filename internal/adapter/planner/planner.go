// Package planner provides the turn planners of the setup flow: an offline
// guided planner and an agent planner backed by the claude CLI.
package planner

import (
	"fmt"
	"log/slog"

	"oulipoly-plane/internal/domain"
)

// Planner kinds accepted by NewFactory.
const (
	KindGuided = "guided"
	KindClaude = "claude"
)

// NewFactory returns the planner factory for kind.
func NewFactory(kind string, runner Runner, cfg ClaudeConfig, logger *slog.Logger) (domain.PlannerFactory, error) {
	switch kind {
	case KindGuided, "":
		return func(brief domain.PlanBrief) domain.Planner { return NewGuided(brief) }, nil
	case KindClaude:
		return func(brief domain.PlanBrief) domain.Planner { return NewClaude(runner, cfg, brief, logger) }, nil
	}
	return nil, domain.NewDomainError("planner.NewFactory", domain.ErrInvalidInput, fmt.Sprintf("unknown planner %q", kind))
}
