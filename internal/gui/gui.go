// Package gui is the fyne desktop window of ledupdater.
package gui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/flash"
	"github.com/chazuruo/ledupdater/internal/logging"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/selection"
)

// Window constants
const (
	WindowTitle  = "LED Controller Updater"
	WindowWidth  = 480
	WindowHeight = 300

	defaultPort = "(avrdude default)"
)

// Actions is what the window needs from the app.
type Actions interface {
	Refresh(ctx context.Context) (releases.Catalog, error)
	Flash(ctx context.Context, sel *selection.Selection, port string) (*flash.Result, error)
	InstallDriver(ctx context.Context) error
	Ports() ([]string, error)
	DriverSupported() bool
}

// UI holds the widgets of the updater window. All fields are touched on the
// fyne main goroutine only; background work reports back through fyne.Do.
type UI struct {
	ctx     context.Context
	window  fyne.Window
	actions Actions
	sel     *selection.Selection
	port    string
	cancel  context.CancelFunc

	verSelect    *widget.Select
	layoutSelect *widget.Select
	portSelect   *widget.Select
	refreshBtn   *widget.Button
	driverBtn    *widget.Button
	flashBtn     *widget.Button
	cancelBtn    *widget.Button
	progress     *widget.ProgressBar
	statusBar    *widget.Label
	outputLine   *widget.Label
}

// New builds the updater content into window. port preselects a serial
// port; empty means the avrdude default.
func New(ctx context.Context, window fyne.Window, actions Actions, port string) *UI {
	ui := &UI{
		ctx:     ctx,
		window:  window,
		actions: actions,
		sel:     selection.New(releases.Catalog{}),
		port:    port,
	}
	ui.setupUI()
	return ui
}

func (ui *UI) setupUI() {
	ui.verSelect = widget.NewSelect(nil, ui.onVersion)
	ui.verSelect.PlaceHolder = "(Select version)"

	ui.layoutSelect = widget.NewSelect(nil, ui.onLayout)
	ui.layoutSelect.PlaceHolder = "(Select layout)"

	ui.portSelect = widget.NewSelect(nil, func(value string) {
		if value == defaultPort {
			value = ""
		}
		ui.port = value
	})
	ui.portSelect.PlaceHolder = "(Select COM port)"

	ui.refreshBtn = widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), ui.Refresh)
	ui.driverBtn = widget.NewButton("Install CH340 Driver", ui.onDriver)
	ui.flashBtn = widget.NewButtonWithIcon("Flash Firmware", theme.UploadIcon(), ui.onFlash)
	ui.flashBtn.Importance = widget.HighImportance
	ui.cancelBtn = widget.NewButtonWithIcon("", theme.CancelIcon(), ui.onCancel)
	ui.cancelBtn.Importance = widget.LowImportance

	ui.progress = widget.NewProgressBar()
	ui.progress.Hide()
	ui.statusBar = widget.NewLabel("")
	ui.statusBar.Wrapping = fyne.TextWrapWord
	ui.outputLine = widget.NewLabel("")
	ui.outputLine.TextStyle = fyne.TextStyle{Monospace: true}
	ui.outputLine.Truncation = fyne.TextTruncateEllipsis

	form := widget.NewForm(
		widget.NewFormItem("Version", ui.verSelect),
		widget.NewFormItem("Layout", ui.layoutSelect),
		widget.NewFormItem("Port", container.NewBorder(nil, nil, nil, ui.refreshBtn, ui.portSelect)),
	)
	buttons := container.NewGridWithColumns(2, ui.driverBtn, ui.flashBtn)
	status := container.NewBorder(nil, nil, nil, ui.cancelBtn, ui.statusBar)

	ui.window.SetContent(container.NewPadded(
		container.NewVBox(form, buttons, ui.progress, status, ui.outputLine),
	))
	ui.updateButtons()
}

// Selection returns the current version/layout selection.
func (ui *UI) Selection() *selection.Selection { return ui.sel }

// onVersion re-populates the layouts of the chosen version.
func (ui *UI) onVersion(value string) {
	if err := ui.sel.SelectVersion(value); err != nil {
		return
	}
	ui.layoutSelect.Options = ui.sel.LayoutNames()
	if layout := ui.sel.Layout(); layout != "" {
		ui.layoutSelect.SetSelected(layout)
	} else {
		ui.layoutSelect.ClearSelected()
	}
	ui.layoutSelect.Refresh()
	ui.updateButtons()
}

func (ui *UI) onLayout(value string) {
	_ = ui.sel.SelectLayout(value)
	ui.updateButtons()
}

// setCatalog replaces the version list and selects the first entry.
func (ui *UI) setCatalog(cat releases.Catalog) {
	ui.sel.Reset(cat)
	ui.verSelect.Options = ui.sel.VersionNames()
	ui.verSelect.Selected = ""
	if v := ui.sel.Version(); v != "" {
		ui.verSelect.SetSelected(v)
	} else {
		ui.layoutSelect.Options = nil
		ui.layoutSelect.ClearSelected()
	}
	ui.verSelect.Refresh()
	ui.updateButtons()
}

func (ui *UI) setPorts(ports []string) {
	ui.portSelect.Options = append([]string{defaultPort}, ports...)
	switch {
	case ui.port != "":
		ui.portSelect.Selected = ui.port
	case len(ports) > 0:
		ui.port = ports[0]
		ui.portSelect.Selected = ports[0]
	default:
		ui.portSelect.Selected = defaultPort
	}
	ui.portSelect.Refresh()
}

func (ui *UI) busy() bool { return ui.cancel != nil }

func (ui *UI) updateButtons() {
	enable := func(w fyne.Disableable, on bool) {
		if on {
			w.Enable()
		} else {
			w.Disable()
		}
	}
	idle := !ui.busy()
	enable(ui.verSelect, idle)
	enable(ui.layoutSelect, idle)
	enable(ui.portSelect, idle)
	enable(ui.refreshBtn, idle)
	enable(ui.flashBtn, idle && ui.sel.Ready())
	enable(ui.driverBtn, idle && ui.actions.DriverSupported())
	enable(ui.cancelBtn, !idle)
}

func (ui *UI) setStatus(msg string) {
	ui.statusBar.Importance = widget.MediumImportance
	ui.statusBar.SetText(msg)
}

func (ui *UI) setError(err error) {
	ui.statusBar.Importance = widget.DangerImportance
	ui.statusBar.SetText(fmt.Sprintf("[%s] %v", lerrors.Kind(err), err))
}

// run starts work in a goroutine under a cancelable context. The string
// work returns becomes the status on success. Only one task runs at a time.
func (ui *UI) run(task string, work func(ctx context.Context) (string, error)) {
	if ui.busy() {
		return
	}
	ctx, cancel := context.WithCancel(ui.ctx)
	ui.cancel = cancel
	ui.setStatus(task)
	ui.outputLine.SetText("")
	ui.progress.SetValue(0)
	ui.progress.Hide()
	ui.updateButtons()

	go func() {
		msg, err := work(ctx)
		fyne.Do(func() {
			cancel()
			ui.cancel = nil
			ui.progress.Hide()
			if err != nil {
				logging.For("gui").WithError(err).Debug(task + " failed")
				ui.setError(err)
			} else {
				ui.setStatus(msg)
			}
			ui.updateButtons()
		})
	}()
}

// Refresh reloads the release catalog and the serial ports.
func (ui *UI) Refresh() {
	ui.run("Fetching releases...", func(ctx context.Context) (string, error) {
		cat, err := ui.actions.Refresh(ctx)
		ports, perr := ui.actions.Ports()
		fyne.Do(func() {
			if err == nil {
				ui.setCatalog(cat)
			}
			if perr == nil {
				ui.setPorts(ports)
			}
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Found %d releases", cat.Len()), nil
	})
}

func (ui *UI) onFlash() {
	if !ui.sel.Ready() {
		ui.setError(lerrors.E("flash", lerrors.ErrInvalid, ui.sel.Version(), fmt.Errorf("select a version and a layout first")))
		return
	}
	target := ui.port
	if target == "" {
		target = "the default port"
	}
	msg := fmt.Sprintf("Flash %s (%s) to %s?", releases.DisplayName(ui.sel.Layout()), ui.sel.Version(), target)
	dialog.ShowConfirm("Flash firmware", msg, func(ok bool) {
		if ok {
			ui.flash()
		}
	}, ui.window)
}

func (ui *UI) flash() {
	sel, port := ui.sel, ui.port
	name := releases.DisplayName(sel.Layout())
	ui.run("Flashing "+name+"...", func(ctx context.Context) (string, error) {
		res, err := ui.actions.Flash(ctx, sel, port)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Done! Flashed %s in %s", name, res.Duration.Round(100*time.Millisecond)), nil
	})
}

func (ui *UI) onDriver() {
	ui.run("Installing driver...", func(ctx context.Context) (string, error) {
		if err := ui.actions.InstallDriver(ctx); err != nil {
			return "", err
		}
		return "Driver installer finished", nil
	})
}

func (ui *UI) onCancel() {
	if ui.cancel != nil {
		ui.cancel()
		ui.setStatus("Cancelling...")
	}
}

// applyEvent shows job progress from the bus. Call it on the main goroutine.
func (ui *UI) applyEvent(ev events.Event) {
	switch e := ev.(type) {
	case events.Status:
		if ui.busy() {
			ui.setStatus(e.Message)
			ui.progress.Hide()
		}
	case events.Progress:
		if pct := e.Percent(); pct >= 0 {
			ui.progress.SetValue(float64(pct) / 100)
			ui.progress.Show()
		}
	case events.Output:
		ui.outputLine.SetText(e.Line)
	}
}

// Follow applies events from ch until ctx is done.
func (ui *UI) Follow(ctx context.Context, ch <-chan events.Event) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				fyne.Do(func() { ui.applyEvent(ev) })
			}
		}
	}()
}
