// Package tabs provides the tab models of the dashboard.
package tabs

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"oulipoly-plane/internal/adapter/tui/theme"
	"oulipoly-plane/internal/domain"
)

// poolItem adapts a pool to the list delegate.
type poolItem struct {
	pool domain.Pool
}

func (i poolItem) Title() string { return strings.Join(i.pool.Commands, " + ") }

func (i poolItem) Description() string {
	return fmt.Sprintf("%d model(s): %s", len(i.pool.ModelNames), strings.Join(i.pool.ModelNames, ", "))
}

func (i poolItem) FilterValue() string {
	return i.Title() + " " + strings.Join(i.pool.ModelNames, " ")
}

// PoolsModel lists model pools, grouped by provider command set.
type PoolsModel struct {
	List   list.Model
	err    string
	loaded bool
}

// NewPools creates the pools tab.
func NewPools() PoolsModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Pools"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.DisableQuitKeybindings()
	return PoolsModel{List: l}
}

// SetSize sets dimensions.
func (m *PoolsModel) SetSize(w, h int) {
	m.List.SetSize(w, h)
}

// SetPools replaces the listed pools.
func (m *PoolsModel) SetPools(pools []domain.Pool) tea.Cmd {
	m.loaded = true
	m.err = ""
	items := make([]list.Item, len(pools))
	for i, p := range pools {
		items[i] = poolItem{pool: p}
	}
	return m.List.SetItems(items)
}

// SetError shows a load failure.
func (m *PoolsModel) SetError(msg string) {
	m.loaded = true
	m.err = msg
}

// Len returns the number of pools.
func (m PoolsModel) Len() int { return len(m.List.Items()) }

// Selected returns the highlighted pool.
func (m PoolsModel) Selected() (domain.Pool, bool) {
	item, ok := m.List.SelectedItem().(poolItem)
	if !ok {
		return domain.Pool{}, false
	}
	return item.pool, true
}

// Filtering reports whether the list is capturing keys for its filter.
func (m PoolsModel) Filtering() bool {
	return m.List.FilterState() == list.Filtering
}

// Update handles list navigation.
func (m PoolsModel) Update(msg tea.Msg) (PoolsModel, tea.Cmd) {
	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

// View renders the pools tab.
func (m PoolsModel) View() string {
	switch {
	case m.err != "":
		return theme.TextError.Render("  " + theme.SymbolError + " " + m.err)
	case !m.loaded:
		return theme.TextMuted.Render("  Loading pools" + theme.SymbolEllipsis)
	case m.Len() == 0:
		return theme.TextMuted.Render("  No models configured. Press s to run setup.")
	}
	return m.List.View()
}
