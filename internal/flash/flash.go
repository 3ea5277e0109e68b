// Package flash downloads a firmware image and writes it to the controller
// with avrdude.
package flash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/events"
	"github.com/chazuruo/ledupdater/internal/fetch"
	"github.com/chazuruo/ledupdater/internal/logging"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/runner"
)

// Downloader fetches release assets into the work directory.
type Downloader interface {
	Download(ctx context.Context, repo, version, filename string) (string, error)
	DownloadURL(ctx context.Context, url, dest string) error
	WorkDir() string
}

// BaudDetector finds the bootloader speed on a serial port.
type BaudDetector interface {
	DetectBaud(port string) (int, error)
}

// Request names what to flash.
type Request struct {
	Version string // release name as shown to the user
	Tag     string // release tag used in the download URL; Version when empty
	Layout  string // hex asset name
	Port    string // serial port; config value when empty
}

// Result describes a finished avrdude run.
type Result struct {
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
	Baud     int
}

// Tool is a resolved avrdude installation.
type Tool struct {
	Exe  string
	Conf string // empty when the bundle has no avrdude.conf
}

// Flasher runs the download and flash steps.
type Flasher struct {
	cfg          config.FlashConfig
	tools        config.ToolsConfig
	firmwareRepo string
	dl           Downloader
	run          runner.Runner
	probe        BaudDetector
	exeName      string

	onStage  func(events.Stage, string)
	onOutput func(string)
}

// New creates a Flasher. probe may be nil, which disables AutoBaud.
func New(cfg *config.Config, dl Downloader, run runner.Runner, probe BaudDetector) *Flasher {
	return &Flasher{
		cfg:          cfg.Flash,
		tools:        cfg.Tools,
		firmwareRepo: cfg.Firmware.Repo,
		dl:           dl,
		run:          run,
		probe:        probe,
		exeName:      config.AvrdudeExe(),
	}
}

// SetStageFunc sets the callback for stage changes.
func (f *Flasher) SetStageFunc(fn func(events.Stage, string)) { f.onStage = fn }

// SetOutputFunc sets the callback receiving avrdude output lines as they
// are printed.
func (f *Flasher) SetOutputFunc(fn func(string)) { f.onOutput = fn }

func (f *Flasher) stage(s events.Stage, msg string) {
	if f.onStage != nil {
		f.onStage(s, msg)
	}
}

// Validate checks that req names a real version and layout.
func (r Request) Validate() error {
	switch {
	case r.Version == "" && r.Tag == "":
		return lerrors.E("flash", lerrors.ErrInvalid, "", fmt.Errorf("no firmware version selected"))
	case r.Layout == "":
		return lerrors.E("flash", lerrors.ErrInvalid, r.Version, fmt.Errorf("no layout selected"))
	case r.Layout == config.Placeholder:
		return lerrors.E("flash", lerrors.ErrInvalid, r.Version, fmt.Errorf("release has no firmware files"))
	}
	return nil
}

func (r Request) tag() string {
	if r.Tag != "" {
		return r.Tag
	}
	return r.Version
}

// RequestFor builds a Request from a catalog entry.
func RequestFor(v releases.Version, l releases.Layout, port string) Request {
	return Request{Version: v.Name, Tag: v.Tag, Layout: l.Name, Port: port}
}

// Flash makes sure the hex image and avrdude are present, then writes the
// image to the board. Invalid requests fail before anything is downloaded.
func (f *Flasher) Flash(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := logging.For("flash").WithField("version", req.Version).WithField("layout", req.Layout)

	hex, err := f.EnsureHex(ctx, req.tag(), req.Layout)
	if err != nil {
		return nil, err
	}
	tool, err := f.EnsureTool(ctx)
	if err != nil {
		return nil, err
	}

	port := req.Port
	if port == "" {
		port = f.cfg.Port
	}
	baud := f.cfg.Baud
	if f.cfg.AutoBaud && f.probe != nil && port != "" {
		f.stage(events.StageProbe, "Probing bootloader on "+port)
		detected, err := f.probe.DetectBaud(port)
		if err != nil {
			log.WithError(err).Warn("bootloader probe failed, using configured baud")
		} else {
			baud = detected
		}
	}

	argv := f.command(tool, hex, port, baud)
	f.stage(events.StageFlash, "Flashing "+releases.DisplayName(req.Layout))
	log.WithField("cmd", runner.CommandLine(argv[0], argv[1:])).Info("running avrdude")

	res := f.run.Exec(ctx, runner.ExecConfig{
		Path:   argv[0],
		Args:   argv[1:],
		Dir:    f.dl.WorkDir(),
		Stream: f.onOutput != nil,
		OnLine: f.onOutput,
	})
	result := &Result{
		Command:  res.Command,
		ExitCode: res.ExitCode,
		Output:   res.Output,
		Duration: res.Duration,
		Baud:     baud,
	}
	if !res.Success {
		if ctx.Err() != nil {
			return result, lerrors.E("flash", lerrors.ErrCanceled, req.Layout, ctx.Err())
		}
		return result, &lerrors.ProcessError{Op: "flash", Cmd: res.Command, ExitCode: res.ExitCode, Err: res.Error}
	}
	f.stage(events.StageDone, "Flashed "+releases.DisplayName(req.Layout))
	return result, nil
}

// HexPath returns where the image for layout of release tag is stored.
// Each tag has its own directory.
func (f *Flasher) HexPath(tag, layout string) string {
	return filepath.Join(f.dl.WorkDir(), tag, layout)
}

// EnsureHex returns the local path of layout at tag, downloading it from
// the firmware repository when that release's copy is not cached yet.
func (f *Flasher) EnsureHex(ctx context.Context, tag, layout string) (string, error) {
	for _, name := range []string{tag, layout} {
		if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
			return "", lerrors.E("download", lerrors.ErrInvalid, name, fmt.Errorf("bad path element %q", name))
		}
	}
	path := f.HexPath(tag, layout)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	f.stage(events.StageDownload, "Downloading "+layout)
	if err := f.dl.DownloadURL(ctx, fetch.ReleaseAssetURL(f.firmwareRepo, tag, layout), path); err != nil {
		return "", err
	}
	return path, nil
}

// EnsureTool resolves the avrdude binary the command is built from. A
// configured avrdude_path is used as is; otherwise the bundled avrdude is
// unpacked into the work directory on first use.
func (f *Flasher) EnsureTool(ctx context.Context) (Tool, error) {
	if f.tools.AvrdudePath != "" {
		if _, err := os.Stat(f.tools.AvrdudePath); err != nil {
			return Tool{}, lerrors.E("find avrdude", lerrors.ErrNotFound, f.tools.AvrdudePath, err)
		}
		return toolAt(f.tools.AvrdudePath), nil
	}

	dir := filepath.Join(f.dl.WorkDir(), f.toolDir())
	exe := filepath.Join(dir, f.exeName)
	if _, err := os.Stat(exe); err == nil {
		return toolAt(exe), nil
	}

	f.stage(events.StageDownload, "Downloading "+f.tools.AvrdudeArchive)
	archive, err := f.dl.Download(ctx, f.tools.Repo, f.tools.Version, f.tools.AvrdudeArchive)
	if err != nil {
		return Tool{}, err
	}
	f.stage(events.StageUnpack, "Unpacking "+f.tools.AvrdudeArchive)
	dir, err = fetch.Unpack(archive, f.toolDir())
	if err != nil {
		return Tool{}, err
	}

	exe = filepath.Join(dir, f.exeName)
	if _, err := os.Stat(exe); err != nil {
		return Tool{}, lerrors.E("find avrdude", lerrors.ErrNotFound, exe, fmt.Errorf("%s not in %s", f.exeName, f.tools.AvrdudeArchive))
	}
	if err := os.Chmod(exe, 0o755); err != nil {
		return Tool{}, lerrors.E("find avrdude", lerrors.ErrIO, exe, err)
	}
	return toolAt(exe), nil
}

func (f *Flasher) toolDir() string {
	if f.tools.AvrdudeDir != "" {
		return f.tools.AvrdudeDir
	}
	return "avrdude"
}

// toolAt picks up avrdude.conf next to exe when there is one.
func toolAt(exe string) Tool {
	t := Tool{Exe: exe}
	conf := filepath.Join(filepath.Dir(exe), "avrdude.conf")
	if _, err := os.Stat(conf); err == nil {
		t.Conf = conf
	}
	return t
}

// Command returns the avrdude argv that writes hexPath through port at the
// configured baud. argv[0] is the executable.
func (f *Flasher) Command(tool Tool, hexPath, port string) []string {
	if port == "" {
		port = f.cfg.Port
	}
	return f.command(tool, hexPath, port, f.cfg.Baud)
}

func (f *Flasher) command(tool Tool, hexPath, port string, baud int) []string {
	argv := []string{tool.Exe}
	if tool.Conf != "" {
		argv = append(argv, "-C"+tool.Conf)
	}
	if f.cfg.Verbose {
		argv = append(argv, "-v")
	}
	argv = append(argv,
		"-c"+f.cfg.Programmer,
		"-p"+f.cfg.Part,
		"-b"+strconv.Itoa(baud),
	)
	if f.cfg.NoErase {
		argv = append(argv, "-D")
	}
	argv = append(argv, "-Uflash:w:"+hexPath+":i")
	if port != "" {
		argv = append(argv, "-P"+port)
	}
	return argv
}
