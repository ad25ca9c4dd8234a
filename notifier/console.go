package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"

	"listingwatch/types"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
const (
	colorPrimary = "#7D56F4"
	colorTest    = "#626262"
	colorBorder  = "#874BFD"
)

var (
	consoleTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorPrimary))

	consoleTestTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color(colorTest))

	consoleBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)
)

// Console prints alerts to a terminal
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Notify(_ context.Context, event types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := consoleTitleStyle.Render(event.Title)
	if event.Importance == types.ImportanceTest {
		title = consoleTestTitleStyle.Render(event.Title)
	}
	_, err := fmt.Fprintln(c.out, consoleBoxStyle.Render(title+"\n\n"+FormatMessage(event)))
	return err
}
