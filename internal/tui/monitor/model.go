// Package monitor is the live sync view behind `tp sync watch`: the sync
// state, the pending change queue and the push/pull history, refreshed on a
// timer.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gzn7264/ai-travel-planner/internal/queue"
	tpsync "github.com/gzn7264/ai-travel-planner/internal/sync"
)

// Panel represents which panel is active
type Panel int

const (
	PanelQueue Panel = iota
	PanelHistory
)

const panelCount = 2

// Model is the Bubble Tea model of the sync monitor
type Model struct {
	Source Source

	// Window dimensions
	Width  int
	Height int

	// Panel data
	State   tpsync.State
	Pending []queue.Change
	History []tpsync.HistoryEntry

	// UI state
	ActivePanel  Panel
	ScrollOffset map[Panel]int
	ShowHelp     bool
	LastRefresh  time.Time
	Err          error

	RefreshInterval time.Duration

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 12

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	State     tpsync.State
	Pending   []queue.Change
	History   []tpsync.HistoryEntry
	Err       error
	Timestamp time.Time
}

type keyMap struct {
	Quit    key.Binding
	Sync    key.Binding
	Refresh key.Binding
	Next    key.Binding
	Down    key.Binding
	Up      key.Binding
	Help    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Sync, k.Refresh, k.Next, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Sync, k.Refresh},
		{k.Next, k.Down, k.Up},
		{k.Help, k.Quit},
	}
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Sync:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sync now")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Next:    key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch panel")),
		Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "scroll down")),
		Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "scroll up")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// NewModel creates a new monitor model
func NewModel(src Source, interval time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = syncingStyle
	return Model{
		Source:          src,
		RefreshInterval: interval,
		ScrollOffset:    make(map[Panel]int),
		ActivePanel:     PanelQueue,
		spinner:         sp,
		help:            help.New(),
		keys:            defaultKeys(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
		m.spinner.Tick,
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.State = msg.State
		m.Pending = msg.Pending
		m.History = msg.History
		m.Err = msg.Err
		m.LastRefresh = msg.Timestamp
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Next):
		m.ActivePanel = (m.ActivePanel + 1) % panelCount
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.ScrollOffset[m.ActivePanel]++
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.ScrollOffset[m.ActivePanel] > 0 {
			m.ScrollOffset[m.ActivePanel]--
		}
		return m, nil

	case key.Matches(msg, m.keys.Sync):
		m.Source.TriggerSync()
		m.State.Status = tpsync.StatusSyncing
		return m, m.fetchData()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchData()

	case key.Matches(msg, m.keys.Help):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that reads the source and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	src := m.Source
	return func() tea.Msg {
		return FetchData(src, historyLimit)
	}
}
