package setup

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/usecase/session"
)

// Bridge forwards engine callbacks into a running Bubble Tea program.
// Messages sent before Bind are dropped; the session view re-reads the
// engine snapshot on start.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
	last Tag
}

// NewBridge creates an unbound bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Bind sets the program sender, usually (*tea.Program).Send.
func (b *Bridge) Bind(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Send forwards msg when bound.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// Attach allocates a tag for a new engine and returns hooks that post
// StateMsg, CompletedMsg and CancelledMsg stamped with it. Pass the tag to
// ScreenModel.Tagged so the view only listens to that engine.
func (b *Bridge) Attach() (Tag, session.Hooks) {
	b.mu.Lock()
	b.last++
	tag := b.last
	b.mu.Unlock()

	return tag, session.Hooks{
		OnChange: func(s session.State) { b.Send(StateMsg{State: s, Tag: tag}) },
		OnComplete: func(summary string, items []string) {
			b.Send(CompletedMsg{Summary: summary, Items: items, Tag: tag})
		},
		OnCancel: func() { b.Send(CancelledMsg{Tag: tag}) },
	}
}
