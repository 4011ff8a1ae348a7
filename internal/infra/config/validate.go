package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validatePaths(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateSetup(cfg, ve)
	validateUI(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validatePaths(cfg *Config, ve *ValidationError) {
	if cfg.Paths.StateDir == "" {
		ve.Add("paths.state_dir is required")
	}
	if cfg.Paths.ModelsDir == "" {
		ve.Add("paths.models_dir is required")
	}
	if cfg.Paths.HistoryDB == "" {
		ve.Add("paths.history_db is required")
	}
}

func validateLogger(cfg *Config, ve *ValidationError) {
	switch strings.ToLower(cfg.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		ve.Add("logger.level %q is invalid (want debug, info, warn or error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want text or json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want noop or stdout)", cfg.Tracer.Exporter)
	}
}

func validateSetup(cfg *Config, ve *ValidationError) {
	s := cfg.Setup
	switch s.Planner {
	case "guided", "claude":
	default:
		ve.Add("setup.planner %q is invalid (want guided or claude)", s.Planner)
	}
	if s.MaxTurns < 1 {
		ve.Add("setup.max_turns must be at least 1, got %d", s.MaxTurns)
	}
	if s.AgentTimeout < 0 {
		ve.Add("setup.agent_timeout must not be negative")
	}
	if s.MCPCheckTimeout < 0 {
		ve.Add("setup.mcp_check_timeout must not be negative")
	}
	if s.Planner == "claude" && s.AgentModel == "" {
		ve.Add("setup.agent_model is required for the claude planner")
	}
	for i, c := range s.AllowedCommands {
		if c == "" || strings.ContainsAny(c, "/ \t") {
			ve.Add("setup.allowed_commands[%d] %q must be a bare command name", i, c)
		}
	}
	for i, p := range s.AllowedWritePrefixes {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			ve.Add("setup.allowed_write_prefixes[%d] %q must be relative to the home directory", i, p)
		}
	}
	seen := make(map[string]bool, len(s.KnownCLIs))
	for i, k := range s.KnownCLIs {
		switch {
		case k.Name == "":
			ve.Add("setup.known_clis[%d].name is required", i)
		case seen[k.Name]:
			ve.Add("setup.known_clis[%d]: duplicate name %q", i, k.Name)
		}
		seen[k.Name] = true
	}
}

func validateUI(cfg *Config, ve *ValidationError) {
	switch cfg.UI.Theme {
	case "", "auto", "dark", "light", "notty":
	default:
		ve.Add("ui.theme %q is invalid (want auto, dark, light or notty)", cfg.UI.Theme)
	}
}
