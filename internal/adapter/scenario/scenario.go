// Package scenario implements a setup backend that replays a scripted
// event sequence from YAML. It drives demos and end-to-end tests of the
// session engine without touching the host.
package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"oulipoly-plane/internal/domain"
	"oulipoly-plane/internal/infra/idgen"
)

// CancelledMessage is sent when the user answers with a cancel response.
const CancelledMessage = "Setup cancelled by user."

// Step is one scripted event.
type Step struct {
	// Event is a wire event written as a YAML mapping.
	Event map[string]any `yaml:"event"`
	Delay time.Duration  `yaml:"delay"`
	// AwaitResponse blocks playback until Respond is called.
	AwaitResponse bool `yaml:"await_response"`

	decoded domain.SetupEvent
}

// Script is a parsed scenario file.
type Script struct {
	Name string `yaml:"name"`
	// FailStart makes Start reject with this message.
	FailStart string `yaml:"fail_start"`
	// RejectResponses makes every Respond fail as if the session died.
	RejectResponses bool   `yaml:"reject_responses"`
	Steps           []Step `yaml:"steps"`
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	for i := range s.Steps {
		raw, err := json.Marshal(s.Steps[i].Event)
		if err != nil {
			return nil, fmt.Errorf("scenario step %d: %w", i+1, err)
		}
		ev, err := domain.UnmarshalSetupEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("scenario step %d: %w", i+1, err)
		}
		if s.Steps[i].AwaitResponse && ev.EventKind() != domain.EventNeedInput {
			return nil, fmt.Errorf("scenario step %d: await_response needs a need_input event: %w", i+1, domain.ErrInvalidInput)
		}
		s.Steps[i].decoded = ev
	}
	return &s, nil
}

// Load reads a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Compile-time interface check.
var _ domain.SetupBackend = (*Backend)(nil)

// Backend replays a Script for every Start.
type Backend struct {
	script *Script
	logger *slog.Logger

	mu        sync.Mutex
	run       *run
	responses []domain.UserResponse
}

type run struct {
	id     domain.SessionHandle
	input  chan domain.UserResponse
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a backend for script.
func New(script *Script, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{script: script, logger: logger}
}

// Start begins playback into sink, replacing any previous run.
func (b *Backend) Start(_ context.Context, sink domain.EventSink) (domain.SessionHandle, error) {
	if b.script.FailStart != "" {
		return "", fmt.Errorf("%s", b.script.FailStart)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     domain.SessionHandle(idgen.New()),
		input:  make(chan domain.UserResponse, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.run != nil {
		b.run.cancel()
	}
	b.run = r
	b.mu.Unlock()

	go b.play(ctx, r, sink)
	return r.id, nil
}

func (b *Backend) play(ctx context.Context, r *run, sink domain.EventSink) {
	defer close(r.done)
	defer b.finish(r)

	for i, st := range b.script.Steps {
		if st.Delay > 0 {
			select {
			case <-time.After(st.Delay):
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := sink.Send(st.decoded); err != nil {
			b.logger.Debug("scenario sink closed", "session", r.id, "step", i+1, "error", err)
			return
		}
		if !st.AwaitResponse {
			continue
		}
		select {
		case resp := <-r.input:
			if resp.ResponseKind() == domain.ResponseCancel {
				_ = sink.Send(domain.ErrorEvent{Message: CancelledMessage, Recoverable: false})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *Backend) finish(r *run) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == r {
		b.run = nil
	}
}

// Respond delivers resp to the paused step of the live run.
func (b *Backend) Respond(_ context.Context, resp domain.UserResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil || b.script.RejectResponses {
		return domain.ErrNoActiveSession
	}
	b.responses = append(b.responses, resp)
	select {
	case b.run.input <- resp:
		return nil
	default:
		return domain.NewDomainError("scenario.Respond", domain.ErrLimitReached, "response queue full")
	}
}

// Cancel stops the live run, if any.
func (b *Backend) Cancel(context.Context) error {
	b.mu.Lock()
	r := b.run
	b.run = nil
	b.mu.Unlock()
	if r != nil {
		r.cancel()
	}
	return nil
}

// Responses returns every accepted response in order.
func (b *Backend) Responses() []domain.UserResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.UserResponse(nil), b.responses...)
}
