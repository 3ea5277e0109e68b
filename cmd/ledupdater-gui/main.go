package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/chazuruo/ledupdater/internal/app"
	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/gui"
	"github.com/chazuruo/ledupdater/internal/logging"
)

func main() {
	configPath := pflag.String("config", "", "config file path (default ~/.config/ledupdater/config.toml)")
	pflag.String("log-level", "", "log level: panic, fatal, error, warn, info, debug, trace")
	pflag.String("work-dir", "", "directory for downloaded firmware and tools")
	pflag.String("port", "", "serial port to preselect")
	pflag.Int("baud", 0, "serial baud rate")
	pflag.String("avrdude", "", "use this avrdude binary instead of downloading one")
	pflag.Bool("auto-baud", false, "probe the bootloader for its baud rate")
	pflag.String("api-url", "", "releases API endpoint")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", lerrors.Kind(err), err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(pflag.CommandLine); err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err == nil {
		if restore, err := logging.ToFile(filepath.Join(cfg.Paths.WorkDir, "ledupdater.log")); err == nil {
			defer restore()
		}
	}
	logging.SetFrontend("gui")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return gui.Run(ctx, app.New(cfg, nil))
}
