package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"state dir", func(c *Config) { c.Paths.StateDir = "" }, "paths.state_dir is required"},
		{"models dir", func(c *Config) { c.Paths.ModelsDir = "" }, "paths.models_dir is required"},
		{"log level", func(c *Config) { c.Logger.Level = "loud" }, "logger.level"},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"exporter", func(c *Config) { c.Tracer.Exporter = "jaeger" }, "tracer.exporter"},
		{"planner", func(c *Config) { c.Setup.Planner = "" }, "setup.planner"},
		{"max turns", func(c *Config) { c.Setup.MaxTurns = 0 }, "setup.max_turns must be at least 1"},
		{"agent model", func(c *Config) {
			c.Setup.Planner = "claude"
			c.Setup.AgentModel = ""
		}, "setup.agent_model is required"},
		{"command path", func(c *Config) { c.Setup.AllowedCommands = []string{"/bin/sh"} }, "bare command name"},
		{"absolute prefix", func(c *Config) { c.Setup.AllowedWritePrefixes = []string{"/etc/"} }, "relative to the home directory"},
		{"escaping prefix", func(c *Config) { c.Setup.AllowedWritePrefixes = []string{"../x/"} }, "relative to the home directory"},
		{"unnamed cli", func(c *Config) { c.Setup.KnownCLIs = []KnownCLI{{}} }, "known_clis[0].name is required"},
		{"duplicate cli", func(c *Config) {
			c.Setup.KnownCLIs = []KnownCLI{{Name: "aider"}, {Name: "aider"}}
		}, "duplicate name"},
		{"theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertContains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Setup.MaxTurns = -1
	cfg.UI.Theme = "neon"

	var ve *ValidationError
	if !errors.As(Validate(cfg), &ve) {
		t.Fatal("expected *ValidationError")
	}
	if len(ve.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(ve.Errors), ve.Errors)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
