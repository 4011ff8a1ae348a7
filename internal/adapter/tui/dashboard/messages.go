// Package dashboard implements the pool management dashboard. It lists
// model pools and setup history, and hosts setup sessions started from it.
package dashboard

import "oulipoly-plane/internal/domain"

// PoolsLoadedMsg carries the result of loading pools.
type PoolsLoadedMsg struct {
	Pools []domain.Pool
	Err   error
}

// HistoryLoadedMsg carries the result of loading recent sessions.
type HistoryLoadedMsg struct {
	Sessions []domain.SessionRecord
	Err      error
}

// PoolUpdatedMsg reports the result of editing a pool.
type PoolUpdatedMsg struct {
	Commands []string
	Err      error
}
