// Package setup implements the Bubble Tea host for a setup session: the
// live session view and the first-run setup screen around it.
package setup

import "oulipoly-plane/internal/usecase/session"

// Tag identifies the engine a message came from. One Bridge can serve
// several engines over a program's lifetime, so views drop messages whose
// tag is not their own. The zero Tag belongs to untagged views.
type Tag uint64

// StateMsg carries a session snapshot from the engine.
type StateMsg struct {
	State session.State
	Tag   Tag
}

// CompletedMsg signals that the session reached complete.
type CompletedMsg struct {
	Summary string
	Items   []string
	Tag     Tag
}

// CancelledMsg signals that the user cancelled the session.
type CancelledMsg struct {
	Tag Tag
}

// FinishedMsg is emitted by an embedded screen when the user leaves it.
type FinishedMsg struct {
	Completed bool
}

// respondFailedMsg reports a response the engine refused to forward.
type respondFailedMsg struct {
	Err error
}
