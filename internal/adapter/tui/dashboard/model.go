package dashboard

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"oulipoly-plane/internal/adapter/tui/components"
	"oulipoly-plane/internal/adapter/tui/dashboard/tabs"
	"oulipoly-plane/internal/adapter/tui/setup"
	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Tab identifies which tab is active.
type Tab int

const (
	TabPools Tab = iota
	TabHistory
	TabConfig
)

// SetupLauncher creates a setup screen for cli, or for every CLI when cli
// is empty. release is called once the screen is closed.
type SetupLauncher func(cli string) (screen setup.ScreenModel, release func())

// Deps are dependencies for the dashboard.
type Deps struct {
	Pools        PoolSource
	Editor       PoolEditor          // optional
	History      domain.HistoryStore // optional
	Config       string              // YAML for the config tab
	ConfigSource string
	Launch       SetupLauncher
}

// Model is the root Bubble Tea model of the dashboard.
type Model struct {
	deps Deps

	activeTab Tab
	tabBar    components.TabBarModel
	status    components.StatusBarModel

	pools   tabs.PoolsModel
	history tabs.HistoryModel
	config  tabs.ConfigModel

	// setup is the hosted session while one runs.
	setup   *setup.ScreenModel
	release func()
	notice  string

	// edit holds the command set being edited; editFrom is the original.
	edit     *textinput.Model
	editFrom []string

	width  int
	height int
}

// New creates the dashboard model.
func New(deps Deps) *Model {
	m := &Model{
		deps: deps,
		tabBar: components.NewTabBar([]components.Tab{
			{ID: "pools", Label: "Pools"},
			{ID: "history", Label: "History"},
			{ID: "config", Label: "Config"},
		}),
		status:  components.NewStatusBar(),
		pools:   tabs.NewPools(),
		history: tabs.NewHistory(),
		config:  tabs.NewConfig(deps.ConfigSource),
	}
	m.config.SetContent(deps.Config)
	return m
}

// ActiveTab returns the visible tab.
func (m *Model) ActiveTab() Tab { return m.activeTab }

// InSetup reports whether a setup session is hosted.
func (m *Model) InSetup() bool { return m.setup != nil }

// Editing reports whether a pool edit is in progress.
func (m *Model) Editing() bool { return m.edit != nil }

// Notice returns the last message shown to the user.
func (m *Model) Notice() string { return m.notice }

// Init loads pools and history.
func (m *Model) Init() tea.Cmd {
	return m.reload()
}

func (m *Model) reload() tea.Cmd {
	var cmds []tea.Cmd
	if m.deps.Pools != nil {
		cmds = append(cmds, loadPoolsCmd(m.deps.Pools))
	}
	if m.deps.History != nil {
		cmds = append(cmds, loadHistoryCmd(m.deps.History))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		m.layout()
	}

	if m.setup != nil {
		return m.updateSetup(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m, nil

	case PoolsLoadedMsg:
		if msg.Err != nil {
			m.pools.SetError(msg.Err.Error())
			return m, nil
		}
		m.tabBar.SetCount("pools", len(msg.Pools))
		return m, m.pools.SetPools(msg.Pools)

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.history.SetError(msg.Err.Error())
			return m, nil
		}
		m.tabBar.SetCount("history", len(msg.Sessions))
		m.history.SetSessions(msg.Sessions)
		return m, nil

	case PoolUpdatedMsg:
		if msg.Err != nil {
			m.notice = theme.SymbolError + " " + msg.Err.Error()
			return m, nil
		}
		m.notice = theme.SymbolSuccess + " Pool now uses " + strings.Join(msg.Commands, " + ")
		return m, m.reload()

	case setup.StateMsg, setup.CompletedMsg, setup.CancelledMsg, setup.FinishedMsg:
		// Late messages from a closed session.
		return m, nil

	case tea.KeyMsg:
		if m.edit != nil {
			return m, m.editKey(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabPools:
		m.pools, cmd = m.pools.Update(msg)
	case TabHistory:
		m.history, cmd = m.history.Update(msg)
	case TabConfig:
		m.config, cmd = m.config.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit, true
	}
	if m.activeTab == TabPools && m.pools.Filtering() {
		return nil, false
	}

	switch msg.String() {
	case "tab":
		m.tabBar.Next()
		m.activeTab = Tab(m.tabBar.Active)
	case "shift+tab":
		m.tabBar.Prev()
		m.activeTab = Tab(m.tabBar.Active)
	case "1", "2", "3":
		m.setTab(Tab(msg.String()[0] - '1'))
	case "q":
		return tea.Quit, true
	case "r":
		m.notice = ""
		return m.reload(), true
	case "s":
		return m.startSetup(""), true
	case "a":
		if m.activeTab != TabPools {
			return nil, false
		}
		pool, ok := m.pools.Selected()
		if !ok || len(pool.Commands) == 0 {
			m.notice = "Select a pool first."
			return nil, true
		}
		return m.startSetup(pool.Commands[0]), true
	case "e":
		if m.activeTab != TabPools {
			return nil, false
		}
		return m.startEdit(), true
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) startEdit() tea.Cmd {
	if m.deps.Editor == nil {
		m.notice = "Pool editing is not available."
		return nil
	}
	pool, ok := m.pools.Selected()
	if !ok {
		m.notice = "Select a pool first."
		return nil
	}
	ti := textinput.New()
	ti.Prompt = "Commands: "
	ti.SetValue(strings.Join(pool.Commands, " "))
	ti.CursorEnd()
	m.edit = &ti
	m.editFrom = pool.Commands
	m.notice = ""
	return ti.Focus()
}

// editKey drives the pool edit line: enter saves, esc discards.
func (m *Model) editKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.edit = nil
		return nil
	case tea.KeyEnter:
		to := strings.Fields(m.edit.Value())
		from := m.editFrom
		m.edit = nil
		return updatePoolCmd(m.deps.Editor, from, to)
	case tea.KeyCtrlC:
		return tea.Quit
	}
	next, cmd := m.edit.Update(msg)
	m.edit = &next
	return cmd
}

func (m *Model) startSetup(cli string) tea.Cmd {
	if m.deps.Launch == nil {
		m.notice = "Setup is not available."
		return nil
	}
	screen, release := m.deps.Launch(cli)
	screen = screen.Embedded()
	if m.width > 0 {
		next, _ := screen.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		screen = next.(setup.ScreenModel)
	}
	m.setup = &screen
	m.release = release
	m.notice = ""
	return screen.Init()
}

func (m *Model) updateSetup(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(setup.FinishedMsg); ok {
		if m.release != nil {
			m.release()
		}
		m.setup = nil
		m.release = nil
		if done.Completed {
			m.notice = theme.SymbolSuccess + " Setup complete"
		} else {
			m.notice = "Setup cancelled"
		}
		return m, m.reload()
	}

	next, cmd := m.setup.Update(msg)
	screen := next.(setup.ScreenModel)
	m.setup = &screen
	return m, cmd
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.setup != nil {
		return m.setup.View()
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	var content string
	switch m.activeTab {
	case TabPools:
		content = m.pools.View()
	case TabHistory:
		content = m.history.View()
	case TabConfig:
		content = m.config.View()
	}

	m.status.Hints = []components.KeyHint{
		{Key: "s", Desc: "Setup"},
		{Key: "a", Desc: "Add CLI"},
		{Key: "e", Desc: "Edit pool"},
		{Key: "r", Desc: "Reload"},
		{Key: "Tab", Desc: "Switch"},
		{Key: "q", Desc: "Quit"},
	}
	if m.edit != nil {
		m.status.Hints = []components.KeyHint{{Key: "enter", Desc: "Save"}, {Key: "esc", Desc: "Discard"}}
		content = lipgloss.JoinVertical(lipgloss.Left, content, m.edit.View())
	}
	m.status.Extra = m.notice

	return lipgloss.JoinVertical(lipgloss.Left,
		m.tabBar.View(),
		content,
		m.status.View(),
	)
}

func (m *Model) layout() {
	contentH := m.height - 2
	if contentH < 5 {
		contentH = 5
	}
	m.tabBar.SetWidth(m.width)
	m.status.SetWidth(m.width)
	m.pools.SetSize(m.width, contentH)
	m.history.SetSize(m.width, contentH)
	m.config.SetSize(m.width, contentH)
}

func (m *Model) setTab(tab Tab) {
	m.activeTab = tab
	m.tabBar.SetActive(int(tab))
}
