package domain

import (
	"context"
	"time"
)

// SessionOutcome is how a recorded setup session ended.
type SessionOutcome string

const (
	OutcomeRunning   SessionOutcome = "running"
	OutcomeComplete  SessionOutcome = "complete"
	OutcomeFailed    SessionOutcome = "failed"
	OutcomeCancelled SessionOutcome = "cancelled"
)

// SessionRecord is one backend setup session in the history.
type SessionRecord struct {
	ID        SessionHandle
	CLI       string // empty for a full setup
	Planner   string
	Outcome   SessionOutcome
	Summary   string
	StartedAt time.Time
	EndedAt   *time.Time
	Turns     int
}

// TurnRecord is one planner turn of a session.
type TurnRecord struct {
	Seq       int
	Actions   string // JSON array of the turn's actions
	Feedback  string
	CreatedAt time.Time
}

// HistoryStore persists setup sessions.
type HistoryStore interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	RecordTurn(ctx context.Context, id SessionHandle, turn TurnRecord) error
	EndSession(ctx context.Context, id SessionHandle, outcome SessionOutcome, summary string) error
	Recent(ctx context.Context, limit int) ([]SessionRecord, error)
	Turns(ctx context.Context, id SessionHandle) ([]TurnRecord, error)
}
