package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Flow.RunCommand", ErrCommandNotAllowed, "rm")
	want := "Flow.RunCommand: rm: command not in allowlist"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Flow.Run", ErrMaxTurns, "")
	want := "Flow.Run: setup reached max agent turns"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Flow.WriteConfig", ErrPathNotAllowed, "/etc/passwd")
	if !errors.Is(err, ErrPathNotAllowed) {
		t.Error("errors.Is should match ErrPathNotAllowed")
	}
}

func TestNoActiveSessionText(t *testing.T) {
	assert.Equal(t, "No active setup session", ErrNoActiveSession.Error())
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	err := WrapOp("Manager.Respond", ErrNoActiveSession)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, "Manager.Respond: No active setup session", err.Error())
}

func TestErrorCodeOf(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
	assert.Equal(t, CodeNoActiveSession, ErrorCodeOf(ErrNoActiveSession))
	assert.Equal(t, CodeCommandNotAllowed, ErrorCodeOf(NewDomainError("x", ErrCommandNotAllowed, "")))
	assert.Equal(t, CodeChannelClosed, ErrorCodeOf(fmt.Errorf("send: %w", ErrChannelClosed)))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("other")))
	assert.Equal(t, CodeMaxTurns, NewDomainError("x", ErrMaxTurns, "").Code())
}
