package domain

import (
	"context"
	"strings"
)

// PromptMode selects how a provider receives its prompt.
type PromptMode string

const (
	PromptModeStdin PromptMode = "stdin"
	PromptModeArg   PromptMode = "arg"
)

// ProviderConfig is one command that can serve a model.
type ProviderConfig struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args" json:"args"`
}

// ModelConfig is a named model served by one or more providers.
type ModelConfig struct {
	Name       string           `yaml:"-" json:"name"`
	PromptMode PromptMode       `yaml:"prompt_mode" json:"prompt_mode"`
	Providers  []ProviderConfig `yaml:"providers" json:"providers"`
}

// Validate checks the invariants every stored model must hold.
func (m ModelConfig) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return NewDomainError("ModelConfig.Validate", ErrInvalidInput, "model name is required")
	}
	if len(m.Providers) == 0 {
		return NewDomainError("ModelConfig.Validate", ErrInvalidInput, "model "+m.Name+" has no providers")
	}
	for _, p := range m.Providers {
		if strings.TrimSpace(p.Command) == "" {
			return NewDomainError("ModelConfig.Validate", ErrInvalidInput, "model "+m.Name+" has a provider without a command")
		}
	}
	switch m.PromptMode {
	case PromptModeStdin, PromptModeArg:
	default:
		return NewDomainError("ModelConfig.Validate", ErrInvalidInput, "unknown prompt mode "+string(m.PromptMode))
	}
	return nil
}

// Pool is the set of models sharing the same provider commands.
type Pool struct {
	Commands   []string
	ModelNames []string
}

// ModelStore persists model configs.
type ModelStore interface {
	List(ctx context.Context) ([]ModelConfig, error)
	Get(ctx context.Context, name string) (ModelConfig, error)
	Save(ctx context.Context, m ModelConfig) error
	Delete(ctx context.Context, name string) error
}
