package session

import "oulipoly-plane/internal/domain"

// Phase is the engine's lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseAwaitingInput
	// PhaseFailed follows a start failure or non-recoverable error and
	// offers Retry and Cancel.
	PhaseFailed
	// PhaseStale follows a rejected response and offers Start Fresh and Cancel.
	PhaseStale
	PhaseComplete
	PhaseCancelled
)

var phaseNames = [...]string{"idle", "running", "awaiting_input", "failed", "stale", "complete", "cancelled"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// StatusLine is the transient status display.
type StatusLine struct {
	Message string
}

// Progress is the progress display.
type Progress struct {
	Message string
	Percent *float64
	Detail  *string
}

// ErrorBanner is the error display.
type ErrorBanner struct {
	Message     string
	Recoverable bool
}

// Completion is the payload of a terminal complete event.
type Completion struct {
	Summary string
	Items   []string
}

// ProcessingMessage is shown while a response is in flight.
const ProcessingMessage = "Processing..."

// StartFailedPrefix prefixes the error shown when a backend refuses to start.
const StartFailedPrefix = "Setup failed: "

// State is an immutable snapshot of a session. Version increases with
// every transition so observers can discard out-of-order snapshots.
type State struct {
	Version    uint64
	Attempt    uint64
	Phase      Phase
	Handle     domain.SessionHandle
	Status     *StatusLine
	Progress   *Progress
	Pending    domain.Action
	Results    []domain.ResultContent
	Error      *ErrorBanner
	Completion *Completion

	// PendingSince is the Version at which Pending was delivered. Two
	// consecutive need_input events always differ here.
	PendingSince uint64
}

// ShowRetry reports whether the Retry and Cancel controls are offered.
func (s State) ShowRetry() bool { return s.Phase == PhaseFailed }

// ShowStale reports whether the stale-session panel is offered.
func (s State) ShowStale() bool { return s.Phase == PhaseStale }

// Terminal reports whether the session has no pending backend work.
func (s State) Terminal() bool {
	switch s.Phase {
	case PhaseIdle, PhaseComplete, PhaseCancelled:
		return true
	}
	return false
}

func (s State) clone() State {
	out := s
	out.Results = append([]domain.ResultContent(nil), s.Results...)
	if s.Status != nil {
		v := *s.Status
		out.Status = &v
	}
	if s.Progress != nil {
		v := *s.Progress
		out.Progress = &v
	}
	if s.Error != nil {
		v := *s.Error
		out.Error = &v
	}
	if s.Completion != nil {
		v := *s.Completion
		v.Items = append([]string(nil), s.Completion.Items...)
		out.Completion = &v
	}
	return out
}
