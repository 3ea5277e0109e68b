// Package app ties the fetch, flash and driver steps together for the CLI,
// TUI and GUI. Every action runs as a job with its own id whose progress is
// published on the event bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazuruo/ledupdater/internal/config"
	"github.com/chazuruo/ledupdater/internal/driver"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/fetch"
	"github.com/chazuruo/ledupdater/internal/flash"
	"github.com/chazuruo/ledupdater/internal/logging"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/runner"
	"github.com/chazuruo/ledupdater/internal/selection"
	"github.com/chazuruo/ledupdater/internal/serialport"
)

// ErrBusy is returned when an action is started while another one runs.
var ErrBusy = errors.New("another task is still running")

// Ports lists serial ports and detects the bootloader baud on one.
type Ports interface {
	List() ([]string, error)
	DetectBaud(port string) (int, error)
}

// App owns the workflow components. One action runs at a time.
type App struct {
	cfg       *config.Config
	bus       *events.Bus
	client    *releases.Client
	dl        *fetch.Downloader
	flasher   *flash.Flasher
	installer *driver.Installer
	ports     Ports
	run       runner.Runner

	mu sync.Mutex
}

// Option configures an App.
type Option func(*App)

// WithRunner replaces the process runner used for avrdude and the driver
// installer.
func WithRunner(r runner.Runner) Option {
	return func(a *App) { a.run = r }
}

// WithPorts replaces the serial port backend.
func WithPorts(p Ports) Option {
	return func(a *App) { a.ports = p }
}

// New builds an App from cfg. A nil bus gets a fresh one.
func New(cfg *config.Config, bus *events.Bus, opts ...Option) *App {
	if bus == nil {
		bus = events.New()
	}
	a := &App{
		cfg:   cfg,
		bus:   bus,
		run:   runner.Local{},
		ports: serialport.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	a.client = releases.NewClient(cfg.Firmware.APIURL,
		releases.WithTimeout(timeout),
		releases.WithUserAgent(cfg.HTTP.UserAgent),
		releases.WithExtension(cfg.Firmware.Extension),
	)
	a.dl = fetch.NewDownloader(cfg.Paths.WorkDir,
		fetch.WithTimeout(timeout),
		fetch.WithUserAgent(cfg.HTTP.UserAgent),
	)
	a.flasher = flash.New(cfg, a.dl, a.run, a.ports)
	a.installer = driver.NewInstaller(cfg, a.dl, a.run)
	return a
}

// Bus returns the event bus jobs publish on.
func (a *App) Bus() *events.Bus { return a.bus }

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config { return a.cfg }

// DriverSupported reports whether the CH340 driver package applies to
// this host.
func (a *App) DriverSupported() bool { return a.installer.Supported() }

// job runs fn as a new job. Status, progress and output of the components
// are routed to the job for its duration.
func (a *App) job(name string, fn func(j *events.Job) error) error {
	if !a.mu.TryLock() {
		return lerrors.E(name, lerrors.ErrInvalid, "", ErrBusy)
	}
	defer a.mu.Unlock()

	j := a.bus.Job(uuid.NewString())
	log := logging.For("app").WithField("job", j.ID).WithField("task", name)
	log.Debug("job started")

	a.dl.SetProgressHook(j.Progress)
	a.flasher.SetStageFunc(j.Status)
	a.flasher.SetOutputFunc(j.Output)
	a.installer.SetStageFunc(j.Status)
	defer func() {
		a.dl.SetProgressHook(nil)
		a.flasher.SetStageFunc(nil)
		a.flasher.SetOutputFunc(nil)
		a.installer.SetStageFunc(nil)
	}()

	err := fn(j)
	if err != nil {
		log.WithError(err).WithField("kind", lerrors.Kind(err)).Warn("job failed")
	} else {
		log.Debug("job finished")
	}
	j.Finish(err)
	return err
}

// Refresh fetches the release catalog. On error the returned catalog is
// empty and callers should keep the one they have.
func (a *App) Refresh(ctx context.Context) (releases.Catalog, error) {
	var cat releases.Catalog
	err := a.job("refresh", func(j *events.Job) error {
		j.Status(events.StageFetch, "Fetching releases")
		c, err := a.client.FetchCatalog(ctx)
		if err != nil {
			return err
		}
		cat = c
		j.Status(events.StageDone, fmt.Sprintf("Found %d releases", c.Len()))
		return nil
	})
	return cat, err
}

// Flash writes the selected layout to the board on port. An empty port uses
// the configured one.
func (a *App) Flash(ctx context.Context, sel *selection.Selection, port string) (*flash.Result, error) {
	req := requestFrom(sel, port)
	var res *flash.Result
	err := a.job("flash", func(*events.Job) error {
		var err error
		res, err = a.flasher.Flash(ctx, req)
		return err
	})
	return res, err
}

func requestFrom(sel *selection.Selection, port string) flash.Request {
	if sel == nil {
		return flash.Request{Port: port}
	}
	if v, l, ok := sel.Current(); ok {
		return flash.RequestFor(v, l, port)
	}
	return flash.Request{Version: sel.Version(), Layout: sel.Layout(), Port: port}
}

// InstallDriver downloads and runs the CH340 driver installer.
func (a *App) InstallDriver(ctx context.Context) error {
	return a.job("driver", func(*events.Job) error {
		return a.installer.Install(ctx)
	})
}

// Ports lists the serial ports present.
func (a *App) Ports() ([]string, error) {
	return a.ports.List()
}
