package setup

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/adapter/scenario"
	"oulipoly-plane/internal/usecase/session"
)

const staleScript = `
name: stale after answer
reject_responses: true
steps:
  - event: {event: status, data: {message: "Detecting installed CLIs..."}}
  - event:
      event: need_input
      data:
        action: {type: confirm, title: "Install wrapper?", message: "Proceed", confirm_id: c1, confirm_label: null, cancel_label: null}
    await_response: true
`

// liveSession wires a real engine over a scenario backend to a tagged
// screen through a Bridge, the way the setup command does.
type liveSession struct {
	engine *session.Engine
	inbox  chan tea.Msg
	screen ScreenModel
	states []StateMsg
}

func newLiveSession(t *testing.T, src string) *liveSession {
	t.Helper()
	script, err := scenario.Parse([]byte(src))
	require.NoError(t, err)
	backend := scenario.New(script, nil)

	ls := &liveSession{inbox: make(chan tea.Msg, 256)}
	bridge := NewBridge()
	bridge.Bind(func(msg tea.Msg) { ls.inbox <- msg })
	tag, hooks := bridge.Attach()

	ls.engine = session.NewEngine(session.EngineDeps{
		Backend: backend,
		Start:   backend.Start,
		Hooks:   hooks,
	})
	t.Cleanup(func() {
		ls.engine.Close()
		_ = backend.Cancel(context.Background())
	})

	ls.screen = NewScreenModel(ls.engine, "Setup").Tagged(tag)
	next, _ := ls.screen.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	ls.screen = next.(ScreenModel)
	return ls
}

// feed applies msg and runs any command it returns, queueing the results.
func (ls *liveSession) feed(msg tea.Msg) {
	if s, ok := msg.(StateMsg); ok {
		ls.states = append(ls.states, s)
	}
	next, cmd := ls.screen.Update(msg)
	ls.screen = next.(ScreenModel)
	if cmd == nil {
		return
	}
	go func() {
		out := cmd()
		if batch, ok := out.(tea.BatchMsg); ok {
			for _, c := range batch {
				if c != nil {
					ls.inbox <- c()
				}
			}
			return
		}
		if out != nil {
			ls.inbox <- out
		}
	}()
}

// pumpUntil drains the inbox into the screen until cond holds.
func (ls *liveSession) pumpUntil(t *testing.T, cond func(ScreenModel) bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond(ls.screen) {
		select {
		case msg := <-ls.inbox:
			ls.feed(msg)
		case <-deadline:
			t.Fatalf("screen never reached the expected state; last view:\n%s", ls.screen.View())
		}
	}
}

func TestLiveSession_RejectedAnswerShowsStalePanel(t *testing.T) {
	ls := newLiveSession(t, staleScript)
	ls.engine.Start(context.Background())

	ls.pumpUntil(t, func(m ScreenModel) bool { return m.Session().Prompt() != nil })
	assert.Contains(t, ls.screen.View(), "Install wrapper?")
	assert.NotContains(t, ls.screen.View(), StaleMessage)

	ls.feed(key("y"))
	ls.pumpUntil(t, func(m ScreenModel) bool { return m.Session().State().Phase == session.PhaseStale })

	view := ls.screen.View()
	assert.Contains(t, view, StaleMessage)
	assert.Contains(t, view, StartFreshLabel)
	assert.Contains(t, view, CancelLabel)
	assert.NotContains(t, view, RetryLabel)
	assert.NotContains(t, view, session.ProcessingMessage)
	assert.Nil(t, ls.screen.Session().Prompt())
}

func TestLiveSession_SnapshotsApplyInVersionOrder(t *testing.T) {
	ls := newLiveSession(t, staleScript)
	ls.engine.Start(context.Background())
	ls.pumpUntil(t, func(m ScreenModel) bool { return m.Session().Prompt() != nil })
	ls.feed(key("y"))
	ls.pumpUntil(t, func(m ScreenModel) bool { return m.Session().State().Phase == session.PhaseStale })

	states := append([]StateMsg(nil), ls.states...)
	require.GreaterOrEqual(t, len(states), 3)
	want := ls.screen.View()
	latest := ls.screen.Session().State().Version

	// Replaying the same snapshots newest first leaves the newest in place.
	replay := NewScreenModel(&fakeEngine{}, "Setup").Tagged(states[0].Tag)
	next, _ := replay.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	replay = next.(ScreenModel)
	for i := len(states) - 1; i >= 0; i-- {
		next, _ = replay.Update(states[i])
		replay = next.(ScreenModel)
	}
	assert.Equal(t, latest, replay.Session().State().Version)
	assert.Equal(t, session.PhaseStale, replay.Session().State().Phase)
	assert.Equal(t, want, replay.View())
	assert.Nil(t, replay.Session().Prompt())

	// An out-of-order prompt snapshot arriving late is dropped.
	var prompted StateMsg
	for _, s := range states {
		if s.State.Pending != nil {
			prompted = s
		}
	}
	require.NotNil(t, prompted.State.Pending)
	next, _ = ls.screen.Update(prompted)
	assert.Equal(t, want, next.(ScreenModel).View())
	assert.NotContains(t, next.(ScreenModel).View(), "Install wrapper?")
}
