// Package session implements the client side of the setup protocol: it
// starts a backend task, turns pushed events into session state, forwards
// user responses and recovers from failed or stale sessions.
package session

import (
	"context"
	"log/slog"
	"sync"

	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/usecase/eventchan"
)

// StartFunc begins a backend setup task that pushes events into sink.
type StartFunc func(ctx context.Context, sink domain.EventSink) (domain.SessionHandle, error)

// Backend is the response half of a setup backend.
type Backend interface {
	Respond(ctx context.Context, resp domain.UserResponse) error
	Cancel(ctx context.Context) error
}

// Hooks are host callbacks. All are optional and are invoked without the
// engine lock held.
type Hooks struct {
	OnComplete func(summary string, items []string)
	OnCancel   func()
	OnChange   func(State)
}

// EngineDeps holds injected dependencies for the engine.
type EngineDeps struct {
	Backend Backend
	Start   StartFunc // optional, nil = Backend.Start when Backend is a domain.SetupBackend
	Hooks   Hooks
	Logger  *slog.Logger
}

// Engine drives one setup surface. All transitions are serialised by mu.
type Engine struct {
	deps EngineDeps

	mu    sync.Mutex
	state State
	sub   *eventchan.Subscription
}

// NewEngine creates an idle engine.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Start == nil {
		if b, ok := deps.Backend.(domain.SetupBackend); ok {
			deps.Start = b.Start
		}
	}
	return &Engine{deps: deps}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Start resets the session, binds a fresh channel and invokes the start
// capability. It blocks until the backend accepts or rejects the start;
// events may be dispatched while it waits. A start failure is recorded as
// a non-recoverable error.
func (e *Engine) Start(ctx context.Context) {
	ch := eventchan.New(e.deps.Logger)

	e.mu.Lock()
	if e.sub != nil {
		e.sub.Cancel()
	}
	attempt := e.state.Attempt + 1
	e.state = State{
		Version: e.state.Version,
		Attempt: attempt,
		Phase:   PhaseRunning,
	}
	sub, err := ch.Subscribe(func(ev domain.SetupEvent) { e.dispatch(attempt, ev) })
	if err != nil {
		e.mu.Unlock()
		e.startFailed(attempt, ch, err.Error())
		return
	}
	e.sub = sub
	snap := e.commit()
	e.mu.Unlock()
	e.notify(snap)

	if e.deps.Start == nil {
		e.startFailed(attempt, ch, "no setup backend configured")
		return
	}

	handle, err := e.deps.Start(ctx, ch)
	if err != nil {
		e.deps.Logger.Warn("setup start failed", "attempt", attempt, "error", err)
		e.startFailed(attempt, ch, err.Error())
		return
	}

	e.mu.Lock()
	if e.state.Attempt != attempt {
		e.mu.Unlock()
		return
	}
	e.state.Handle = handle
	snap = e.commit()
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Engine) startFailed(attempt uint64, ch *eventchan.Channel, cause string) {
	ch.Close()

	e.mu.Lock()
	if e.state.Attempt != attempt {
		e.mu.Unlock()
		return
	}
	e.state.Status = nil
	e.state.Progress = nil
	e.state.Pending = nil
	e.state.Error = &ErrorBanner{Message: StartFailedPrefix + cause}
	e.state.Phase = PhaseFailed
	snap := e.commit()
	e.mu.Unlock()
	e.notify(snap)
}

// Dispatch applies ev to the current attempt.
func (e *Engine) Dispatch(ev domain.SetupEvent) {
	e.mu.Lock()
	attempt := e.state.Attempt
	e.mu.Unlock()
	e.dispatch(attempt, ev)
}

func (e *Engine) dispatch(attempt uint64, ev domain.SetupEvent) {
	e.mu.Lock()
	if attempt != e.state.Attempt {
		e.mu.Unlock()
		e.deps.Logger.Debug("dropped event from superseded attempt",
			"event", string(ev.EventKind()), "attempt", attempt)
		return
	}
	if e.state.Terminal() {
		e.mu.Unlock()
		e.deps.Logger.Debug("dropped event after session ended",
			"event", string(ev.EventKind()), "phase", e.state.Phase.String())
		return
	}
	e.deps.Logger.Debug("setup event", "event", string(ev.EventKind()), "attempt", attempt)

	var completed *Completion
	switch v := ev.(type) {
	case domain.StatusEvent:
		e.state.Status = &StatusLine{Message: v.Message}
	case domain.ProgressEvent:
		e.state.Progress = &Progress{Message: v.Message, Percent: v.Percent, Detail: v.Detail}
	case domain.NeedInputEvent:
		if !e.live() {
			e.mu.Unlock()
			e.deps.Logger.Debug("ignored need_input while session is not live", "phase", e.state.Phase.String())
			return
		}
		e.state.Status = nil
		e.state.Pending = v.Action
		e.state.PendingSince = e.state.Version + 1
		e.state.Phase = PhaseAwaitingInput
	case domain.ShowResultEvent:
		e.state.Results = append(e.state.Results, v.Content)
	case domain.CompleteEvent:
		e.state.Status = nil
		e.state.Progress = nil
		e.state.Pending = nil
		e.state.Phase = PhaseComplete
		completed = &Completion{Summary: v.Summary, Items: append([]string(nil), v.ItemsConfigured...)}
		e.state.Completion = completed
		e.detach()
	case domain.ErrorEvent:
		e.state.Error = &ErrorBanner{Message: v.Message, Recoverable: v.Recoverable}
		if !v.Recoverable {
			e.state.Status = nil
			e.state.Progress = nil
			e.state.Pending = nil
			e.state.Phase = PhaseFailed
		}
	}
	snap := e.commit()
	e.mu.Unlock()

	e.notify(snap)
	if completed != nil && e.deps.Hooks.OnComplete != nil {
		e.deps.Hooks.OnComplete(completed.Summary, completed.Items)
	}
}

// Respond forwards resp to the backend. The pending action is cleared and
// "Processing..." shown before the backend is called. A rejected response
// moves the session to PhaseStale. Respond returns an error only when resp
// cannot answer the pending action; the session is then left unchanged.
func (e *Engine) Respond(ctx context.Context, resp domain.UserResponse) error {
	e.mu.Lock()
	if err := domain.Answers(e.state.Pending, resp); err != nil {
		e.mu.Unlock()
		return domain.WrapOp("Engine.Respond", err)
	}
	attempt := e.state.Attempt
	e.state.Pending = nil
	e.state.Status = &StatusLine{Message: ProcessingMessage}
	e.state.Phase = PhaseRunning
	snap := e.commit()
	e.mu.Unlock()
	e.notify(snap)

	if e.deps.Backend == nil {
		e.markStale(attempt, domain.ErrNoActiveSession)
		return nil
	}
	if err := e.deps.Backend.Respond(ctx, resp); err != nil {
		e.markStale(attempt, err)
	}
	return nil
}

func (e *Engine) markStale(attempt uint64, cause error) {
	e.mu.Lock()
	if e.state.Attempt != attempt || e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.deps.Logger.Warn("setup response rejected; session is stale", "attempt", attempt, "error", cause)
	e.state.Status = nil
	e.state.Phase = PhaseStale
	snap := e.commit()
	e.mu.Unlock()
	e.notify(snap)
}

// Retry restarts the session after a failure.
func (e *Engine) Retry(ctx context.Context) {
	e.Start(ctx)
}

// FreshStart cancels the backend session, ignoring any error, then starts
// again.
func (e *Engine) FreshStart(ctx context.Context) {
	if e.deps.Backend != nil {
		if err := e.deps.Backend.Cancel(ctx); err != nil {
			e.deps.Logger.Debug("cancel before fresh start failed", "error", err)
		}
	}
	e.Start(ctx)
}

// Cancel ends the session from the user's side and hands control back to
// the host. The backend is not contacted.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.detach()
	e.state.Status = nil
	e.state.Progress = nil
	e.state.Pending = nil
	e.state.Phase = PhaseCancelled
	snap := e.commit()
	e.mu.Unlock()

	e.notify(snap)
	if e.deps.Hooks.OnCancel != nil {
		e.deps.Hooks.OnCancel()
	}
}

// Close detaches the engine from its channel. Use it when the host view
// goes away.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detach()
}

func (e *Engine) live() bool {
	return e.state.Phase == PhaseRunning || e.state.Phase == PhaseAwaitingInput
}

// detach must be called with mu held.
func (e *Engine) detach() {
	if e.sub != nil {
		e.sub.Cancel()
		e.sub = nil
	}
}

// commit must be called with mu held.
func (e *Engine) commit() State {
	e.state.Version++
	return e.state.clone()
}

func (e *Engine) notify(s State) {
	if e.deps.Hooks.OnChange != nil {
		e.deps.Hooks.OnChange(s)
	}
}
