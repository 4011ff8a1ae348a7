package setup

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/usecase/session"
)

// Engine is the part of *session.Engine the view drives.
type Engine interface {
	Start(ctx context.Context)
	Retry(ctx context.Context)
	FreshStart(ctx context.Context)
	Respond(ctx context.Context, resp domain.UserResponse) error
	Cancel()
	Snapshot() session.State
}

// startCmd runs a start-like engine operation off the update loop and
// reports the resulting snapshot.
func startCmd(op func(context.Context), snapshot func() session.State, tag Tag) tea.Cmd {
	return func() tea.Msg {
		op(context.Background())
		return StateMsg{State: snapshot(), Tag: tag}
	}
}

// respondCmd forwards resp. Backend rejections arrive as state changes;
// only a refused response comes back as a message.
func respondCmd(e Engine, resp domain.UserResponse, tag Tag) tea.Cmd {
	return func() tea.Msg {
		if err := e.Respond(context.Background(), resp); err != nil {
			return respondFailedMsg{Err: err}
		}
		return StateMsg{State: e.Snapshot(), Tag: tag}
	}
}

// cancelCmd cancels the session and reports the cancelled snapshot. The
// view learns about the cancellation from the phase, so a host whose
// bridge also posts CancelledMsg sees it once either way.
func cancelCmd(e Engine, tag Tag) tea.Cmd {
	return func() tea.Msg {
		e.Cancel()
		return StateMsg{State: e.Snapshot(), Tag: tag}
	}
}
