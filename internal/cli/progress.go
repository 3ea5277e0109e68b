package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chazuruo/ledupdater/internal/events"
)

var (
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// follow prints job events from bus to w until the returned func is called
// and the job has finished. Tool output is only shown when verbose is set.
func follow(bus *events.Bus, w io.Writer, verbose bool) (wait func()) {
	ch := make(chan events.Event, 256)
	unsub := bus.Forward(ch)
	done := make(chan struct{})

	go func() {
		defer close(done)
		lastBucket := -1
		for ev := range ch {
			switch e := ev.(type) {
			case events.Status:
				lastBucket = -1
				fmt.Fprintf(w, "%s %s\n", stageStyle.Render(string(e.Stage)), e.Message)
			case events.Progress:
				pct := e.Percent()
				if pct >= 0 && pct/25 != lastBucket {
					lastBucket = pct / 25
					fmt.Fprintf(w, "  %3d%%\n", pct)
				}
			case events.Output:
				if verbose {
					fmt.Fprintln(w, outputStyle.Render("  "+e.Line))
				}
			case events.Finished:
				return
			}
		}
	}()

	return func() {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		unsub()
	}
}
