package gui

import (
	"context"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/ledupdater/internal/config"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/flash"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/selection"
)

type stubActions struct {
	driver bool
}

func (stubActions) Refresh(context.Context) (releases.Catalog, error) {
	return releases.Catalog{}, nil
}

func (stubActions) Flash(context.Context, *selection.Selection, string) (*flash.Result, error) {
	return &flash.Result{}, nil
}

func (stubActions) InstallDriver(context.Context) error { return nil }
func (stubActions) Ports() ([]string, error)            { return nil, nil }
func (s stubActions) DriverSupported() bool             { return s.driver }

func catalog() releases.Catalog {
	return releases.Catalog{Versions: []releases.Version{
		{Name: "v2.1.0", Tag: "v2.1.0", Layouts: []releases.Layout{
			{Name: "radian.hex", URL: "u1"}, {Name: "timber.hex", URL: "u2"},
		}},
		{Name: "v1.0.0", Tag: "v1.0.0", Layouts: []releases.Layout{
			{Name: config.Placeholder},
		}},
	}}
}

func newTestUI(t *testing.T, actions Actions) *UI {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	w := a.NewWindow(WindowTitle)
	return New(context.Background(), w, actions, "")
}

func TestUI_VersionCascade(t *testing.T) {
	ui := newTestUI(t, stubActions{})
	ui.setCatalog(catalog())

	assert.Equal(t, []string{"v2.1.0", "v1.0.0"}, ui.verSelect.Options)
	assert.Equal(t, "v2.1.0", ui.verSelect.Selected)
	assert.Equal(t, []string{"radian.hex", "timber.hex"}, ui.layoutSelect.Options)
	assert.Equal(t, "radian.hex", ui.layoutSelect.Selected)
	assert.False(t, ui.flashBtn.Disabled())

	ui.layoutSelect.SetSelected("timber.hex")
	assert.Equal(t, "timber.hex", ui.sel.Layout())

	ui.verSelect.SetSelected("v1.0.0")
	assert.Equal(t, []string{config.Placeholder}, ui.layoutSelect.Options)
	assert.Equal(t, config.Placeholder, ui.layoutSelect.Selected)
	assert.True(t, ui.flashBtn.Disabled(), "placeholder cannot be flashed")
}

func TestUI_RefreshSelectsFirstRelease(t *testing.T) {
	ui := newTestUI(t, stubActions{})
	ui.setCatalog(catalog())
	ui.verSelect.SetSelected("v1.0.0")

	ui.setCatalog(catalog())
	assert.Equal(t, "v2.1.0", ui.verSelect.Selected)
	assert.Equal(t, "radian.hex", ui.layoutSelect.Selected)
	assert.Equal(t, "v2.1.0", ui.sel.Version())
	assert.False(t, ui.flashBtn.Disabled())
}

func TestUI_EmptyCatalog(t *testing.T) {
	ui := newTestUI(t, stubActions{})
	ui.setCatalog(catalog())
	ui.setCatalog(releases.Catalog{})

	assert.Empty(t, ui.verSelect.Options)
	assert.Empty(t, ui.layoutSelect.Options)
	assert.Empty(t, ui.layoutSelect.Selected)
	assert.True(t, ui.flashBtn.Disabled())
}

func TestUI_DriverButton(t *testing.T) {
	tests := []struct {
		name     string
		driver   bool
		disabled bool
	}{
		{"supported", true, false},
		{"unsupported", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := newTestUI(t, stubActions{driver: tt.driver})
			assert.Equal(t, tt.disabled, ui.driverBtn.Disabled())
		})
	}
}

func TestUI_Ports(t *testing.T) {
	ui := newTestUI(t, stubActions{})
	ui.setPorts([]string{"COM3", "COM4"})

	assert.Equal(t, []string{defaultPort, "COM3", "COM4"}, ui.portSelect.Options)
	assert.Equal(t, "COM3", ui.port)

	ui.portSelect.SetSelected(defaultPort)
	assert.Empty(t, ui.port)
}

func TestUI_FlashWithoutSelection(t *testing.T) {
	ui := newTestUI(t, stubActions{})
	ui.onFlash()
	require.Contains(t, ui.statusBar.Text, "[invalid]")
	assert.False(t, ui.busy())
}

func TestUI_ApplyEvent(t *testing.T) {
	ui := newTestUI(t, stubActions{})

	ui.applyEvent(events.Progress{Done: 1, Total: 4})
	assert.InDelta(t, 0.25, ui.progress.Value, 0.001)
	assert.True(t, ui.progress.Visible())

	ui.applyEvent(events.Output{Line: "avrdude: 1234 bytes of flash verified"})
	assert.Equal(t, "avrdude: 1234 bytes of flash verified", ui.outputLine.Text)

	// status from the bus only shows while a task runs
	ui.applyEvent(events.Status{Message: "Flashing"})
	assert.NotEqual(t, "Flashing", ui.statusBar.Text)
}
