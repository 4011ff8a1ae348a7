package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"oulipoly-plane/internal/adapter/detect"
	"oulipoly-plane/internal/adapter/extensions"
	"oulipoly-plane/internal/adapter/models"
	"oulipoly-plane/internal/adapter/planner"
	"oulipoly-plane/internal/adapter/store"
	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/infra/config"
	"oulipoly-plane/internal/infra/logger"
	"oulipoly-plane/internal/infra/tracer"
	"oulipoly-plane/internal/usecase/setupflow"
)

// agentTurnInterval paces claude planner invocations.
const agentTurnInterval = time.Second

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	cfgPath string
	log     *slog.Logger

	history  *store.SQLiteStore
	models   *models.FileStore
	detector *detect.Detector

	cleanup []func()
}

func configPath() string {
	if p := flagValue("--config"); p != "" {
		return config.ExpandHome(p)
	}
	return config.DefaultPath()
}

// newApp loads config and opens logging, tracing and the history store.
func newApp(ctx context.Context) (*app, error) {
	a := &app{cfgPath: configPath()}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	theme.UseASCII(cfg.UI.ASCII)
	theme.SetMarkdownStyle(cfg.UI.Theme)

	if err := os.MkdirAll(cfg.Paths.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.onClose(func() { _ = logCloser() })

	// Spans go to a file next to the log; the terminal belongs to the TUI.
	var traces io.Writer
	if cfg.Tracer.Enabled && cfg.Tracer.Exporter == "stdout" {
		f, err := os.OpenFile(cfg.StatePath("traces.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("trace output: %w", err)
		}
		a.onClose(func() { _ = f.Close() })
		traces = f
	}
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer, traces)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	})

	history, err := store.Open(cfg.Paths.HistoryDB)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.history = history
	a.onClose(func() { _ = history.Close() })

	a.models = models.NewFileStore(cfg.Paths.ModelsDir)
	a.detector = detect.New(detect.Options{
		Known:   knownCLIs(cfg.Setup.KnownCLIs),
		Tracker: history,
		Logger:  log,
	})

	log.Debug("plane started", "config", a.cfgPath, "state_dir", cfg.Paths.StateDir)
	return a, nil
}

func (a *app) onClose(fn func()) { a.cleanup = append(a.cleanup, fn) }

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

// manager builds the in-process setup backend.
func (a *app) manager() (*setupflow.Manager, error) {
	s := a.cfg.Setup
	runner := setupflow.ExecRunner{}
	factory, err := planner.NewFactory(s.Planner, runner, planner.ClaudeConfig{
		Model:           s.AgentModel,
		Timeout:         s.AgentTimeout,
		AllowedCommands: s.AllowedCommands,
		WritePrefixes:   s.AllowedWritePrefixes,
		TurnInterval:    agentTurnInterval,
	}, a.log)
	if err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	opts := setupflow.DefaultOptions(home, runtime.GOOS)
	opts.MaxTurns = s.MaxTurns
	opts.AllowedCommands = s.AllowedCommands
	opts.AllowedWritePrefixes = s.AllowedWritePrefixes
	opts.ModelsDir = a.cfg.Paths.ModelsDir
	opts.Planner = s.Planner

	var tools setupflow.MCPToolLister
	if s.MCPCheckTimeout > 0 {
		tools = extensions.NewToolLister(s.MCPCheckTimeout, a.log)
	}

	return setupflow.NewManager(setupflow.Deps{
		Detector:   a.detector,
		Planners:   factory,
		Runner:     runner,
		History:    a.history,
		Memory:     a.history,
		Extensions: extensions.New(home, nil, a.log),
		MCPTools:   tools,
		Logger:     a.log,
		Options:    opts,
	}), nil
}

// knownCLIs overlays configured CLIs on the built-in table. An entry with
// a built-in name replaces it.
func knownCLIs(extra []config.KnownCLI) []detect.Known {
	out := append([]detect.Known(nil), detect.DefaultKnown...)
	for _, k := range extra {
		entry := detect.Known{
			Name:       k.Name,
			ConfigDirs: k.ConfigDirs,
			AuthFiles:  k.AuthFiles,
			AuthEnv:    k.AuthEnv,
		}
		replaced := false
		for i := range out {
			if out[i].Name == k.Name {
				out[i] = entry
				replaced = true
			}
		}
		if !replaced {
			out = append(out, entry)
		}
	}
	return out
}
