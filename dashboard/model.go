package dashboard

import (
	"fmt"
	"strings"
	"time"

	"listingwatch/orchestrator"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	pollInterval = time.Second
	maxLogLines  = 12
)

// statusMsg carries one poll result
type statusMsg struct {
	Status *orchestrator.StatusResponse
	Err    error
}

type tickMsg time.Time

// triggerMsg reports the outcome of a manual trigger
type triggerMsg struct {
	Test bool
	Err  error
}

// Model is a polling view over a remote runner
type Model struct {
	client *Client
	url    string

	status    *orchestrator.StatusResponse
	connected bool
	err       error
	notice    string
}

func NewModel(serverURL string) Model {
	return Model{
		client: NewClient(serverURL),
		url:    serverURL,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(pollStatus(m.client), tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.notice = "Triggering run..."
			return m, triggerRun(m.client, false)
		case "t":
			m.notice = "Triggering test alert..."
			return m, triggerRun(m.client, true)
		}
	case tickMsg:
		return m, tea.Batch(pollStatus(m.client), tickCmd())
	case statusMsg:
		if msg.Err != nil {
			m.connected = false
			m.err = msg.Err
			return m, nil
		}
		m.connected = true
		m.err = nil
		m.status = msg.Status
	case triggerMsg:
		switch {
		case msg.Err != nil:
			m.notice = "Trigger failed: " + msg.Err.Error()
		case msg.Test:
			m.notice = "Test alert started"
		default:
			m.notice = "Run started"
		}
		return m, pollStatus(m.client)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("用友港股上市 · listingwatch"))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render("Server: " + m.url))
	b.WriteString("\n\n")

	if !m.connected {
		b.WriteString(errorStyle.Render("Not connected"))
		if m.err != nil {
			b.WriteString(errorStyle.Render(": " + m.err.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString(infoStyle.Render("Press 'q' to quit"))
		return b.String()
	}

	b.WriteString(m.stateText())
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf("Ledger size: %d", m.status.LedgerSize)))
	b.WriteString("\n\n")

	if last := m.status.LastRun; last != nil {
		b.WriteString(boxStyle.Render(formatSummary(last)))
		b.WriteString("\n\n")
	}

	if len(m.status.Logs) > 0 {
		b.WriteString(infoStyle.Render("Recent activity:"))
		b.WriteString("\n")
		logs := m.status.Logs
		if len(logs) > maxLogLines {
			logs = logs[len(logs)-maxLogLines:]
		}
		for _, l := range logs {
			b.WriteString(infoStyle.Render(fmt.Sprintf("  %s %s", l.Timestamp.Format("15:04:05"), l.Message)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString(highlightStyle.Render(m.notice))
		b.WriteString("\n\n")
	}

	b.WriteString(infoStyle.Render("'r' run now | 't' test alert | 'q' quit"))
	return b.String()
}

func (m Model) stateText() string {
	s := m.status
	switch {
	case s.State == orchestrator.StateError:
		return errorStyle.Render("Error: " + s.Error)
	case s.Running && s.Source != "":
		return statusStyle.Render(fmt.Sprintf("Running (%s): %s", s.State, s.Source))
	case s.Running:
		return statusStyle.Render(fmt.Sprintf("Running (%s)", s.State))
	default:
		return statusStyle.Render(fmt.Sprintf("Idle (%s)", s.State))
	}
}

func formatSummary(s *orchestrator.RunSummary) string {
	var b strings.Builder
	kind := "Last run"
	if s.Test {
		kind = "Last test run"
	}
	fmt.Fprintf(&b, "%s %s\n", kind, s.RunID)
	fmt.Fprintf(&b, "Finished: %s\n", s.FinishedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Events: %d | Delivered: %d | Failed: %d", len(s.Events), s.Delivered, s.Failed)
	for _, e := range s.Events {
		fmt.Fprintf(&b, "\n  • [%s] %s", e.EventType.DisplayName(), e.Title)
	}
	for src, msg := range s.SourceErrors {
		fmt.Fprintf(&b, "\n  ! %s: %s", src, msg)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", s.Error)
	}
	return b.String()
}

func pollStatus(client *Client) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus()
		return statusMsg{Status: status, Err: err}
	}
}

func triggerRun(client *Client, test bool) tea.Cmd {
	return func() tea.Msg {
		return triggerMsg{Test: test, Err: client.TriggerRun(test)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
