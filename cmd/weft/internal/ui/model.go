// Package ui implements the bubbletea model behind `weft monitor`.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recera/weft/pkg/fiber"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// StatsFunc supplies the per-scheduler snapshots rendered by the monitor.
type StatsFunc func() []fiber.Stats

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the monitor TUI.
type Model struct {
	stats StatsFunc
	spin  spinner.Model
	tbl   table.Model
	start time.Time
	now   time.Time
}

// NewModel creates a monitor model polling stats.
func NewModel(stats StatsFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	columns := []table.Column{
		{Title: "SCHED", Width: 6},
		{Title: "LIVE", Width: 6},
		{Title: "SPAWNED", Width: 9},
		{Title: "DONE", Width: 9},
		{Title: "YIELDS", Width: 9},
		{Title: "PARKS", Width: 9},
		{Title: "WAKES", Width: 9},
		{Title: "TIMERS", Width: 8},
		{Title: "STEALS", Width: 8},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithHeight(10),
		table.WithFocused(false),
	)
	now := time.Now()
	return Model{stats: stats, spin: sp, tbl: tbl, start: now, now: now}
}

// Init starts the spinner and the poll ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, tick())
}

// Update handles key presses, poll ticks and spinner frames.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		m.tbl.SetRows(m.rows())
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) rows() []table.Row {
	snaps := m.stats()
	rows := make([]table.Row, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", s.Scheduler),
			fmt.Sprintf("%d", s.Live),
			fmt.Sprintf("%d", s.Spawned),
			fmt.Sprintf("%d", s.Completed),
			fmt.Sprintf("%d", s.Yields),
			fmt.Sprintf("%d", s.Parks),
			fmt.Sprintf("%d", s.Wakes),
			fmt.Sprintf("%d", s.TimerWakes),
			fmt.Sprintf("%d", s.Steals),
		})
	}
	return rows
}

// View renders the monitor.
func (m Model) View() string {
	header := titleStyle.Render(fmt.Sprintf("%s weft scheduler monitor", m.spin.View()))
	uptime := m.now.Sub(m.start).Round(time.Second)
	status := fmt.Sprintf("uptime %s · %d schedulers", uptime, len(m.stats()))
	help := helpStyle.Render("q quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		status,
		tableStyle.Render(m.tbl.View()),
		help,
	)
}
