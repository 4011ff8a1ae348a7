package scenario

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oulipoly-plane/internal/domain"
)

const confirmScript = `
name: confirm demo
steps:
  - event: {event: status, data: {message: "Working..."}}
  - event: {event: progress, data: {message: "Step 1", percent: 25, detail: null}}
  - event:
      event: need_input
      data:
        action: {type: confirm, title: "Install?", message: "Proceed", confirm_id: c1, confirm_label: null, cancel_label: null}
    await_response: true
  - event: {event: complete, data: {summary: "Done", items_configured: [claude]}}
    delay: 1ms
`

type recorder struct {
	mu     sync.Mutex
	events []domain.SetupEvent
}

func (r *recorder) Send(ev domain.SetupEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventKind())
	}
	return out
}

func (r *recorder) waitLen(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.kinds()) >= n }, 2*time.Second, time.Millisecond)
}

func mustParse(t *testing.T, src string) *Script {
	t.Helper()
	s, err := Parse([]byte(src))
	require.NoError(t, err)
	return s
}

func TestPlayback(t *testing.T) {
	b := New(mustParse(t, confirmScript), nil)
	rec := &recorder{}
	ctx := context.Background()

	handle, err := b.Start(ctx, rec)
	require.NoError(t, err)
	assert.Len(t, string(handle), 26)

	rec.waitLen(t, 3)
	// Paused on the prompt.
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, rec.kinds(), 3)

	require.NoError(t, b.Respond(ctx, domain.ConfirmResponse{ConfirmID: "c1", Confirmed: true}))
	rec.waitLen(t, 4)
	assert.Equal(t, []domain.EventKind{
		domain.EventStatus, domain.EventProgress, domain.EventNeedInput, domain.EventComplete,
	}, rec.kinds())

	done := rec.events[3].(domain.CompleteEvent)
	assert.Equal(t, []string{"claude"}, done.ItemsConfigured)
	assert.Len(t, b.Responses(), 1)

	// The run has ended.
	require.Eventually(t, func() bool {
		return b.Respond(ctx, domain.SkipResponse{}) == domain.ErrNoActiveSession
	}, time.Second, time.Millisecond)
}

func TestRespondWithoutRun(t *testing.T) {
	b := New(mustParse(t, confirmScript), nil)
	err := b.Respond(context.Background(), domain.SkipResponse{})
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
	assert.EqualError(t, err, "No active setup session")
}

func TestFailStart(t *testing.T) {
	b := New(mustParse(t, "fail_start: backend offline\n"), nil)
	_, err := b.Start(context.Background(), &recorder{})
	assert.EqualError(t, err, "backend offline")
}

func TestRejectResponses(t *testing.T) {
	s := mustParse(t, confirmScript)
	s.RejectResponses = true
	b := New(s, nil)
	rec := &recorder{}

	_, err := b.Start(context.Background(), rec)
	require.NoError(t, err)
	rec.waitLen(t, 3)

	err = b.Respond(context.Background(), domain.ConfirmResponse{ConfirmID: "c1"})
	assert.ErrorIs(t, err, domain.ErrNoActiveSession)
}

func TestCancelResponseEndsRun(t *testing.T) {
	b := New(mustParse(t, confirmScript), nil)
	rec := &recorder{}
	_, err := b.Start(context.Background(), rec)
	require.NoError(t, err)
	rec.waitLen(t, 3)

	require.NoError(t, b.Respond(context.Background(), domain.CancelResponse{}))
	rec.waitLen(t, 4)
	last := rec.events[3].(domain.ErrorEvent)
	assert.Equal(t, CancelledMessage, last.Message)
	assert.False(t, last.Recoverable)
}

func TestCancelStopsPlayback(t *testing.T) {
	b := New(mustParse(t, confirmScript), nil)
	rec := &recorder{}
	_, err := b.Start(context.Background(), rec)
	require.NoError(t, err)
	rec.waitLen(t, 3)

	require.NoError(t, b.Cancel(context.Background()))
	assert.ErrorIs(t, b.Respond(context.Background(), domain.SkipResponse{}), domain.ErrNoActiveSession)
	time.Sleep(5 * time.Millisecond)
	assert.Len(t, rec.kinds(), 3)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unknown event":  "steps:\n  - event: {event: bogus, data: {}}\n",
		"await non-need": "steps:\n  - event: {event: status, data: {message: hi}}\n    await_response: true\n",
		"bad yaml":       "steps: [",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadDemoScenario(t *testing.T) {
	s, err := Load("../../../testdata/scenarios/demo.yaml")
	require.NoError(t, err)
	assert.Equal(t, "demo setup", s.Name)
	require.Len(t, s.Steps, 10)
	assert.Equal(t, domain.EventComplete, s.Steps[9].decoded.EventKind())

	ev, ok := s.Steps[3].decoded.(domain.NeedInputEvent)
	require.True(t, ok)
	oauth, ok := ev.Action.(domain.OAuthFlowAction)
	require.True(t, ok)
	assert.Contains(t, oauth.Instructions, "'codex login'")
	assert.NotContains(t, oauth.Instructions, "`")
}
