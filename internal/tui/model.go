// Package tui is the terminal dashboard: bucket bars, the daily history,
// the oldest tab, and suggested groups.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/runnerr0/tabage/internal/registry"
)

const refreshInterval = 5 * time.Second

// Source supplies the registry and settings. *tracker.Tracker satisfies it.
type Source interface {
	State(ctx context.Context) (registry.State, error)
	Settings(ctx context.Context) (registry.Settings, error)
}

type view int

const (
	viewOverview view = iota
	viewTabs
	viewGroups
)

var viewNames = []string{"Overview", "Tabs", "Groups"}

type snapshot struct {
	state    registry.State
	settings registry.Settings
}

type snapshotMsg struct {
	snap snapshot
	err  error
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard.
type Model struct {
	src Source
	now func() time.Time

	snap   snapshot
	loaded bool
	err    error

	view      view
	cursor    int
	estimated bool
	width     int
	height    int
}

// New creates a dashboard reading from src.
func New(src Source, now func() time.Time) Model {
	return Model{src: src, now: now, width: 80}
}

// Run starts the dashboard in the alternate screen and blocks until the
// user quits.
func Run(src Source) error {
	_, err := tea.NewProgram(New(src, time.Now), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func (m Model) load() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		state, err := src.State(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		settings, err := src.Settings(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{snap: snapshot{state: state, settings: settings}}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case snapshotMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.snap = msg.snap
		m.loaded = true
		if n := len(m.snap.state.Registry.Tabs); m.cursor >= n {
			m.cursor = max(0, n-1)
		}

	case tickMsg:
		return m, tea.Batch(m.load(), tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "tab", "right", "l":
			m.view = (m.view + 1) % view(len(viewNames))
			m.cursor = 0

		case "shift+tab", "left", "h":
			m.view = (m.view + view(len(viewNames)) - 1) % view(len(viewNames))
			m.cursor = 0

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.snap.state.Registry.Tabs)-1 {
				m.cursor++
			}

		case "e":
			m.estimated = !m.estimated

		case "r":
			return m, m.load()
		}
	}

	return m, nil
}
