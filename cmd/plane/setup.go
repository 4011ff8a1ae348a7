package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/adapter/scenario"
	"oulipoly-plane/internal/adapter/tui/dashboard"
	tuisetup "oulipoly-plane/internal/adapter/tui/setup"
	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/infra/config"
	"oulipoly-plane/internal/usecase/session"
	"oulipoly-plane/internal/usecase/setupflow"
)

// runDefault opens the dashboard, or the full setup when no model is
// configured yet.
func runDefault() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	needed, err := a.models.SetupNeeded(ctx)
	a.Close()
	if err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if needed {
		fmt.Println("No models configured yet. Starting setup" + theme.SymbolEllipsis)
		return runSetup("", "")
	}
	return runDashboard()
}

func setupTitle(cli string) string {
	if cli == "" {
		return "Oulipoly Setup"
	}
	return fmt.Sprintf("Set up %s", cli)
}

// runSetup hosts one setup session full screen. With scenarioPath the
// session replays a script instead of touching the machine.
func runSetup(cli, scenarioPath string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		backend session.Backend
		start   session.StartFunc
	)
	if scenarioPath != "" {
		script, err := scenario.Load(config.ExpandHome(scenarioPath))
		if err != nil {
			return err
		}
		b := scenario.New(script, a.log)
		backend, start = b, b.Start
	} else {
		mgr, err := a.manager()
		if err != nil {
			return err
		}
		backend, start = mgr, mgr.Start
		if cli != "" {
			start = mgr.StartForCLI(cli)
		}
	}

	bridge := tuisetup.NewBridge()
	tag, hooks := bridge.Attach()
	engine := session.NewEngine(session.EngineDeps{
		Backend: backend,
		Start:   start,
		Hooks:   hooks,
		Logger:  a.log,
	})
	defer func() {
		engine.Close()
		_ = backend.Cancel(context.Background())
	}()

	p := tea.NewProgram(tuisetup.NewScreenModel(engine, setupTitle(cli)).Tagged(tag), tea.WithAltScreen())
	bridge.Bind(p.Send)

	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("setup screen: %w", err)
	}

	screen, ok := result.(tuisetup.ScreenModel)
	if !ok {
		return fmt.Errorf("unexpected setup result type %T", result)
	}
	switch {
	case screen.Completed():
		summary, items := screen.Summary()
		fmt.Println(theme.TextSuccess.Render(theme.SymbolSuccess+" "+tuisetup.CompleteTitle) + " " + summary)
		if len(items) > 0 {
			fmt.Println("  " + strings.Join(items, ", "))
		}
	case screen.Cancelled():
		fmt.Println("Setup cancelled.")
	}
	return nil
}

// runDashboard hosts the pool dashboard; setup sessions run inside it.
func runDashboard() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.manager()
	if err != nil {
		return err
	}

	effective, err := config.Encode(a.cfg)
	if err != nil {
		return err
	}

	bridge := tuisetup.NewBridge()
	launch := func(cli string) (tuisetup.ScreenModel, func()) {
		start := session.StartFunc(mgr.Start)
		if cli != "" {
			start = mgr.StartForCLI(cli)
		}
		tag, hooks := bridge.Attach()
		engine := session.NewEngine(session.EngineDeps{
			Backend: mgr,
			Start:   start,
			Hooks:   hooks,
			Logger:  a.log,
		})
		release := func() {
			engine.Close()
			_ = mgr.Cancel(context.Background())
		}
		return tuisetup.NewScreenModel(engine, setupTitle(cli)).Tagged(tag), release
	}

	model := dashboard.New(dashboard.Deps{
		Pools:        a.models,
		Editor:       a.models,
		History:      a.history,
		Config:       effective,
		ConfigSource: a.cfgPath,
		Launch:       launch,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Bind(p.Send)

	_, err = p.Run()
	return err
}
