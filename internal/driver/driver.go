// Package driver installs the CH340 USB-to-serial driver on Windows.
package driver

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/fetch"
	"github.com/chazuruo/ledupdater/internal/logging"
	"github.com/chazuruo/ledupdater/internal/runner"
)

// Downloader fetches release assets into the work directory.
type Downloader interface {
	Download(ctx context.Context, repo, version, filename string) (string, error)
	WorkDir() string
}

// StageFunc reports progress through the install steps.
type StageFunc func(stage events.Stage, msg string)

// Installer downloads, unpacks and runs the CH340 driver installer.
type Installer struct {
	cfg     config.DriverConfig
	repo    string
	version string
	dl      Downloader
	run     runner.Runner
	goos    string
	onStage StageFunc
}

// NewInstaller creates an Installer that fetches the driver archive from
// the tools release.
func NewInstaller(cfg *config.Config, dl Downloader, run runner.Runner) *Installer {
	return &Installer{
		cfg:     cfg.Driver,
		repo:    cfg.Tools.Repo,
		version: cfg.Tools.Version,
		dl:      dl,
		run:     run,
		goos:    runtime.GOOS,
	}
}

// SetStageFunc sets the callback for stage changes.
func (i *Installer) SetStageFunc(fn StageFunc) {
	i.onStage = fn
}

func (i *Installer) stage(s events.Stage, msg string) {
	if i.onStage != nil {
		i.onStage(s, msg)
	}
}

// Supported reports whether the driver package applies to this host.
func (i *Installer) Supported() bool {
	return i.goos == "windows"
}

// ExePath returns where the unpacked installer is expected.
func (i *Installer) ExePath() string {
	return filepath.Join(i.dl.WorkDir(), i.dirName(), i.cfg.Executable)
}

func (i *Installer) dirName() string {
	if i.cfg.Dir != "" {
		return i.cfg.Dir
	}
	return strings.TrimSuffix(i.cfg.Archive, ".zip")
}

// Install makes sure the installer is unpacked, then runs it and waits for
// it to exit.
func (i *Installer) Install(ctx context.Context) error {
	const op = "install driver"
	if !i.Supported() {
		return lerrors.E(op, lerrors.ErrUnsupported, "", fmt.Errorf("the CH340 driver package is only needed on Windows (running on %s)", i.goos))
	}
	log := logging.For("driver")

	exe, err := i.ensureExe(ctx)
	if err != nil {
		return err
	}

	i.stage(events.StageDriver, "Running "+filepath.Base(exe))
	log.WithField("exe", exe).Info("starting driver installer")
	res := i.run.Exec(ctx, runner.ExecConfig{Path: exe, Dir: filepath.Dir(exe)})
	if !res.Success {
		if ctx.Err() != nil {
			return lerrors.E(op, lerrors.ErrCanceled, exe, ctx.Err())
		}
		return &lerrors.ProcessError{Op: op, Cmd: res.Command, ExitCode: res.ExitCode, Err: res.Error}
	}
	i.stage(events.StageDone, "Driver installer finished")
	return nil
}

func (i *Installer) ensureExe(ctx context.Context) (string, error) {
	exe := i.ExePath()
	if _, err := os.Stat(exe); err == nil {
		return exe, nil
	}
	// some archives nest the installer one level down
	if found := findFile(filepath.Dir(exe), i.cfg.Executable); found != "" {
		return found, nil
	}

	i.stage(events.StageDownload, "Downloading "+i.cfg.Archive)
	archive, err := i.dl.Download(ctx, i.repo, i.version, i.cfg.Archive)
	if err != nil {
		return "", err
	}

	i.stage(events.StageUnpack, "Unpacking "+i.cfg.Archive)
	dir, err := fetch.Unpack(archive, i.dirName())
	if err != nil {
		return "", err
	}

	if found := findFile(dir, i.cfg.Executable); found != "" {
		return found, nil
	}
	return "", lerrors.E("install driver", lerrors.ErrNotFound, exe, fmt.Errorf("%s not in %s", i.cfg.Executable, i.cfg.Archive))
}

// findFile returns the first file under root named name, ignoring case.
func findFile(root, name string) string {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if !d.IsDir() && strings.EqualFold(d.Name(), name) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found
}
