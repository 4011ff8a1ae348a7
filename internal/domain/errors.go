package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLimitReached     = fmt.Errorf("limit reached")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrInvalidInput     = fmt.Errorf("invalid input")
)

// Sentinel errors for the setup protocol.
var (
	// ErrNoActiveSession is returned by a backend when a response or cancel
	// arrives after its session has gone away. The text is user visible.
	ErrNoActiveSession     = fmt.Errorf("No active setup session")
	ErrNoPendingAction     = fmt.Errorf("no pending action to respond to")
	ErrCorrelationMismatch = fmt.Errorf("response does not match pending action")
	ErrSessionCancelled    = fmt.Errorf("setup session cancelled")

	// Channel errors.
	ErrChannelClosed     = fmt.Errorf("channel closed")
	ErrAlreadySubscribed = fmt.Errorf("channel already has a subscriber")

	// Flow errors.
	ErrCommandNotAllowed = fmt.Errorf("command not in allowlist")
	ErrPathNotAllowed    = fmt.Errorf("path is outside allowed write locations")
	ErrInvalidAgentTurn  = fmt.Errorf("agent turn failed validation")
	ErrMaxTurns          = fmt.Errorf("setup reached max agent turns")
	ErrCLINotInstalled   = fmt.Errorf("cli not installed")

	ErrConfigLoad = fmt.Errorf("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Manager.Respond")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for logs.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeLimitReached      ErrorCode = "LIMIT_REACHED"
	CodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeNoActiveSession   ErrorCode = "NO_ACTIVE_SESSION"
	CodeNoPendingAction   ErrorCode = "NO_PENDING_ACTION"
	CodeCorrelation       ErrorCode = "CORRELATION_MISMATCH"
	CodeSessionCancelled  ErrorCode = "SESSION_CANCELLED"
	CodeChannelClosed     ErrorCode = "CHANNEL_CLOSED"
	CodeAlreadySubscribed ErrorCode = "ALREADY_SUBSCRIBED"
	CodeCommandNotAllowed ErrorCode = "COMMAND_NOT_ALLOWED"
	CodePathNotAllowed    ErrorCode = "PATH_NOT_ALLOWED"
	CodeInvalidAgentTurn  ErrorCode = "INVALID_AGENT_TURN"
	CodeMaxTurns          ErrorCode = "MAX_TURNS"
	CodeCLINotInstalled   ErrorCode = "CLI_NOT_INSTALLED"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:            CodeNotFound,
	ErrTimeout:             CodeTimeout,
	ErrLimitReached:        CodeLimitReached,
	ErrPermissionDenied:    CodePermissionDenied,
	ErrInvalidInput:        CodeInvalidInput,
	ErrNoActiveSession:     CodeNoActiveSession,
	ErrNoPendingAction:     CodeNoPendingAction,
	ErrCorrelationMismatch: CodeCorrelation,
	ErrSessionCancelled:    CodeSessionCancelled,
	ErrChannelClosed:       CodeChannelClosed,
	ErrAlreadySubscribed:   CodeAlreadySubscribed,
	ErrCommandNotAllowed:   CodeCommandNotAllowed,
	ErrPathNotAllowed:      CodePathNotAllowed,
	ErrInvalidAgentTurn:    CodeInvalidAgentTurn,
	ErrMaxTurns:            CodeMaxTurns,
	ErrCLINotInstalled:     CodeCLINotInstalled,
	ErrConfigLoad:          CodeConfigLoad,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
