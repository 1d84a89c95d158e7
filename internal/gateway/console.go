package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/rahul/seeker/internal/agent"
	"golang.org/x/term"
)

var (
	bannerColor = color.New(color.FgHiCyan, color.Bold)
	statusColor = color.New(color.FgHiBlack)
	planColor   = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	failColor   = color.New(color.FgRed, color.Bold)
	reportColor = color.New(color.FgHiWhite, color.Bold)
)

func termWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// PrintBanner writes the centred startup banner.
func PrintBanner(out io.Writer) {
	banner := `
   ____  ____  ____  _  __ ____  ____
  / ___\/  __\/  __\/ |/ //  __\/  __\
  |    \|  \  |  \  |   / |  \  |  \/|
  \___ ||  /_ |  /_ |   \ |  /_ |    /
  \____/\____\\____\\_|\_\\____\\_/\_\

        >> plan. research. report. <<
`
	width := termWidth(out)
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		bannerColor.Fprintln(out, strings.Repeat(" ", padding)+l)
	}
}

// Console renders a run's events for a terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	// Quiet hides status lines and step results.
	Quiet bool
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) rule() string {
	w := termWidth(c.out)
	if w > 80 {
		w = 80
	}
	return strings.Repeat("─", w)
}

func (c *Console) Sink() agent.Sink {
	return func(e agent.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch ev := e.(type) {
		case agent.StatusEvent:
			if !c.Quiet {
				statusColor.Fprintf(c.out, "· %s\n", ev.Message)
			}
		case agent.PlanReadyEvent:
			planColor.Fprintf(c.out, "\n📋 Plan\n%s\n\n", strings.TrimSpace(ev.Plan))
		case agent.StepResultEvent:
			okColor.Fprintf(c.out, "✓ step %d\n", ev.Ordinal)
			if !c.Quiet {
				fmt.Fprintf(c.out, "%s\n\n", strings.TrimSpace(ev.Text))
			}
		case agent.StepErrorEvent:
			warnColor.Fprintf(c.out, "⚠️  step %d failed: %s\n", ev.Ordinal, ev.Message)
		case agent.FinalReportEvent:
			reportColor.Fprintf(c.out, "\n%s\nReport\n%s\n", c.rule(), c.rule())
			fmt.Fprintf(c.out, "%s\n", strings.TrimSpace(ev.Report))
		}
		return nil
	}
}

func (c *Console) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	failColor.Fprintf(c.out, "\n%s\n", FormatFailure(err))
}

// JSONLines writes one flattened event per line.
func JSONLines(out io.Writer) agent.Sink {
	enc := json.NewEncoder(out)
	return func(e agent.Event) error {
		return enc.Encode(agent.Flatten(e))
	}
}
