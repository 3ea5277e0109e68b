// Package tui provides the Bubble Tea updater for ledupdater.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/flash"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/selection"
)

// Actions is what the updater needs from the app.
type Actions interface {
	Refresh(ctx context.Context) (releases.Catalog, error)
	Flash(ctx context.Context, sel *selection.Selection, port string) (*flash.Result, error)
	InstallDriver(ctx context.Context) error
	Ports() ([]string, error)
	DriverSupported() bool
}

const maxOutputLines = 6

type column int

const (
	versionsColumn column = iota
	layoutsColumn
)

type (
	catalogMsg struct {
		cat releases.Catalog
		err error
	}
	flashDoneMsg struct {
		res *flash.Result
		err error
	}
	driverDoneMsg struct{ err error }
	portsMsg      struct {
		ports []string
		err   error
	}
	busMsg struct{ ev events.Event }
)

// Model is the updater screen: versions on the left, the layouts of the
// highlighted version on the right.
type Model struct {
	ctx     context.Context
	initial context.Context
	actions Actions
	events  <-chan events.Event

	sel   *selection.Selection
	focus column

	ports   []string
	portIdx int
	port    string

	busy    bool
	cancel  context.CancelFunc
	spinner spinner.Model

	status   string
	failed   bool
	progress int
	output   []string

	// Quit indicates whether the user asked to leave.
	Quit bool

	titleStyle    lipgloss.Style
	columnStyle   lipgloss.Style
	focusedStyle  lipgloss.Style
	normalStyle   lipgloss.Style
	selectedStyle lipgloss.Style
	errorStyle    lipgloss.Style
	okStyle       lipgloss.Style
	dimStyle      lipgloss.Style
}

// New creates the updater model. evs may be nil when no bus is attached.
func New(ctx context.Context, actions Actions, evs <-chan events.Event, port string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	column := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(32)

	m := Model{
		ctx:      ctx,
		actions:  actions,
		events:   evs,
		sel:      selection.New(releases.Catalog{}),
		port:     port,
		spinner:  sp,
		progress: -1,

		titleStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		columnStyle:   column,
		focusedStyle:  column.BorderForeground(lipgloss.Color("205")),
		normalStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		selectedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true),
		errorStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		okStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
	m.initial = m.start("Fetching releases")
	return m
}

// Selection returns the current version/layout selection.
func (m Model) Selection() *selection.Selection { return m.sel }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd(m.initial), m.portsCmd(), m.waitForEvent())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case catalogMsg:
		m.finish()
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.sel.Reset(msg.cat)
		m.setOK(fmt.Sprintf("Found %d releases", msg.cat.Len()))
		return m, nil

	case portsMsg:
		if msg.err == nil {
			m.ports = msg.ports
			m.portIdx = indexOf(m.ports, m.port)
			if m.port == "" && len(m.ports) > 0 {
				m.portIdx = 0
				m.port = m.ports[0]
			}
		}
		return m, nil

	case flashDoneMsg:
		m.finish()
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setOK(fmt.Sprintf("Flashed %s in %s", releases.DisplayName(m.sel.Layout()), msg.res.Duration.Round(100*time.Millisecond)))
		return m, nil

	case driverDoneMsg:
		m.finish()
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.setOK("Driver installer finished")
		return m, nil

	case busMsg:
		m.applyEvent(msg.ev)
		return m, m.waitForEvent()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.cancel != nil {
			m.cancel()
		}
		m.Quit = true
		return m, tea.Quit

	case "esc":
		if m.busy && m.cancel != nil {
			m.cancel()
			m.status = "Cancelling..."
		}
		return m, nil
	}

	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case "left", "h", "shift+tab":
		m.focus = versionsColumn
	case "right", "l", "tab":
		m.focus = layoutsColumn
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "p":
		if len(m.ports) > 0 {
			m.portIdx = (m.portIdx + 1) % len(m.ports)
			m.port = m.ports[m.portIdx]
		}
	case "r":
		ctx := m.start("Fetching releases")
		return m, tea.Batch(m.spinner.Tick, m.refreshCmd(ctx), m.portsCmd())
	case "f":
		if !m.sel.Ready() {
			m.setError(lerrors.E("flash", lerrors.ErrInvalid, m.sel.Version(), fmt.Errorf("select a version and a layout first")))
			return m, nil
		}
		ctx := m.start("Flashing " + releases.DisplayName(m.sel.Layout()))
		return m, tea.Batch(m.spinner.Tick, m.flashCmd(ctx))
	case "d":
		if !m.actions.DriverSupported() {
			m.setError(lerrors.E("install driver", lerrors.ErrUnsupported, "", fmt.Errorf("the CH340 driver is only needed on Windows")))
			return m, nil
		}
		ctx := m.start("Installing driver")
		return m, tea.Batch(m.spinner.Tick, m.driverCmd(ctx))
	}
	return m, nil
}

// move shifts the cursor of the focused column. Moving through versions
// re-populates the layouts.
func (m *Model) move(delta int) {
	switch m.focus {
	case versionsColumn:
		names := m.sel.VersionNames()
		if i := indexOf(names, m.sel.Version()) + delta; i >= 0 && i < len(names) {
			_ = m.sel.SelectVersion(names[i])
		}
	case layoutsColumn:
		names := m.sel.LayoutNames()
		if i := indexOf(names, m.sel.Layout()) + delta; i >= 0 && i < len(names) {
			_ = m.sel.SelectLayout(names[i])
		}
	}
}

func (m *Model) start(task string) context.Context {
	ctx, cancel := context.WithCancel(m.ctx)
	m.busy = true
	m.cancel = cancel
	m.status = task
	m.failed = false
	m.progress = -1
	m.output = nil
	return ctx
}

func (m *Model) finish() {
	if m.cancel != nil {
		m.cancel()
	}
	m.busy = false
	m.cancel = nil
	m.progress = -1
}

func (m *Model) setError(err error) {
	m.failed = true
	m.status = fmt.Sprintf("[%s] %v", lerrors.Kind(err), err)
}

func (m *Model) setOK(msg string) {
	m.failed = false
	m.status = msg
}

func (m *Model) applyEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.Status:
		if m.busy {
			m.status = e.Message
			m.progress = -1
		}
	case events.Progress:
		m.progress = e.Percent()
	case events.Output:
		m.output = append(m.output, e.Line)
		if len(m.output) > maxOutputLines {
			m.output = m.output[len(m.output)-maxOutputLines:]
		}
	}
}

func (m Model) refreshCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		cat, err := m.actions.Refresh(ctx)
		return catalogMsg{cat: cat, err: err}
	}
}

func (m Model) portsCmd() tea.Cmd {
	return func() tea.Msg {
		ports, err := m.actions.Ports()
		return portsMsg{ports: ports, err: err}
	}
}

func (m Model) flashCmd(ctx context.Context) tea.Cmd {
	sel, port := m.sel, m.port
	return func() tea.Msg {
		res, err := m.actions.Flash(ctx, sel, port)
		return flashDoneMsg{res: res, err: err}
	}
}

func (m Model) driverCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		return driverDoneMsg{err: m.actions.InstallDriver(ctx)}
	}
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return busMsg{ev: ev}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(m.titleStyle.Render("LED Controller Updater"))
	b.WriteString("\n\n")

	versions := m.renderColumn("Version", m.sel.VersionNames(), m.sel.Version(), m.focus == versionsColumn, nil)
	layouts := m.renderColumn("Layout", m.sel.LayoutNames(), m.sel.Layout(), m.focus == layoutsColumn, releases.DisplayName)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, "  ", versions, " ", layouts))
	b.WriteString("\n\n  ")

	port := m.port
	if port == "" {
		port = "(avrdude default)"
	}
	b.WriteString(m.dimStyle.Render("Port: ") + port)
	b.WriteString("\n\n  ")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " " + m.status)
		if m.progress >= 0 {
			b.WriteString(fmt.Sprintf(" %d%%", m.progress))
		}
	case m.failed:
		b.WriteString(m.errorStyle.Render(m.status))
	case m.status != "":
		b.WriteString(m.okStyle.Render(m.status))
	}
	b.WriteString("\n")

	for _, line := range m.output {
		b.WriteString("  " + m.dimStyle.Render(line) + "\n")
	}

	b.WriteString("\n  ")
	b.WriteString(m.dimStyle.Render(m.helpText()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderColumn(title string, items []string, current string, focused bool, label func(string) string) string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render(title))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(m.dimStyle.Render("(none)"))
	}
	for i, item := range items {
		text := item
		if label != nil && item != config.Placeholder {
			text = label(item)
		}
		if item == current {
			b.WriteString(m.selectedStyle.Render("> " + text))
		} else {
			b.WriteString(m.normalStyle.Render("  " + text))
		}
		if i < len(items)-1 {
			b.WriteString("\n")
		}
	}

	style := m.columnStyle
	if focused {
		style = m.focusedStyle
	}
	return style.Render(b.String())
}

func (m Model) helpText() string {
	if m.busy {
		return "esc: cancel  q: quit"
	}
	help := "↑/↓: select  ←/→: column  p: port  f: flash  r: reload"
	if m.actions.DriverSupported() {
		help += "  d: driver"
	}
	return help + "  q: quit"
}

func indexOf(items []string, s string) int {
	for i, it := range items {
		if it == s {
			return i
		}
	}
	return -1
}
