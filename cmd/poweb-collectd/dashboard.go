package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// collectedMsg reports one more parcel collected and acknowledged.
type collectedMsg struct {
	deliveryID string
	bytes      int
}

// reconnectedMsg reports a keep-alive session reconnect.
type reconnectedMsg struct{}

// failedMsg reports the collection stream ending with an error.
type failedMsg struct{ err error }

// dashboardModel is the live status view shown while poweb-collectd drains a
// parcel collection session in the foreground.
type dashboardModel struct {
	gatewayHost string
	spinner     spinner.Model
	collected   int
	bytesTotal  int
	reconnects  int
	lastErr     error
	lastID      string
}

func newDashboardModel(gatewayHost string) dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return dashboardModel{gatewayHost: gatewayHost, spinner: s}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case collectedMsg:
		m.collected++
		m.bytesTotal += msg.bytes
		m.lastID = msg.deliveryID
		return m, nil

	case reconnectedMsg:
		m.reconnects++
		return m, nil

	case failedMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m dashboardModel) View() string {
	header := titleStyle.Render(fmt.Sprintf("poweb-collectd — %s", m.gatewayHost))
	body := fmt.Sprintf(
		"%s collecting\n\n  parcels collected : %d\n  bytes collected   : %d\n  reconnects        : %d\n  last delivery id  : %s\n",
		m.spinner.View(), m.collected, m.bytesTotal, m.reconnects, m.lastID,
	)
	footer := dimStyle.Render("press q to quit")
	if m.lastErr != nil {
		footer = errorStyle.Render("error: "+m.lastErr.Error()) + "\n" + footer
	}
	return header + "\n\n" + body + "\n" + footer + "\n"
}
