package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/domain"
)

// historyLimit is how many sessions the history tab shows.
const historyLimit = 50

// PoolSource lists model pools.
type PoolSource interface {
	Pools(ctx context.Context) ([]domain.Pool, error)
}

// PoolEditor changes the command set of a pool.
type PoolEditor interface {
	UpdatePool(ctx context.Context, from, to []string) error
}

func updatePoolCmd(e PoolEditor, from, to []string) tea.Cmd {
	return func() tea.Msg {
		return PoolUpdatedMsg{Commands: to, Err: e.UpdatePool(context.Background(), from, to)}
	}
}

func loadPoolsCmd(src PoolSource) tea.Cmd {
	return func() tea.Msg {
		pools, err := src.Pools(context.Background())
		return PoolsLoadedMsg{Pools: pools, Err: err}
	}
}

func loadHistoryCmd(h domain.HistoryStore) tea.Cmd {
	return func() tea.Msg {
		recs, err := h.Recent(context.Background(), historyLimit)
		return HistoryLoadedMsg{Sessions: recs, Err: err}
	}
}
