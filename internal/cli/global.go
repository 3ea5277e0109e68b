// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chazuruo/ledupdater/internal/app"
	"github.com/chazuruo/ledupdater/internal/config"
	"github.com/chazuruo/ledupdater/internal/logging"
)

var (
	// NoTUI indicates that TUI/interactive mode should be disabled.
	// This is set by the global --no-tui flag.
	NoTUI bool

	// noTUIMutex protects NoTUI for concurrent access.
	noTUIMutex sync.RWMutex
)

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file path (default ~/.config/ledupdater/config.toml)")
	pf.String("log-level", "", "log level: panic, fatal, error, warn, info, debug, trace")
	pf.String("log-format", "", "log format: text or json")
	pf.String("work-dir", "", "directory for downloaded firmware and tools")
	pf.String("api-url", "", "releases API endpoint")
	pf.Int("http-timeout", 0, "HTTP timeout in seconds")
	pf.BoolVar(&NoTUI, "no-tui", false,
		"disable TUI/interactive mode; use plain text or JSON output")
}

// IsNoTUI returns true if TUI mode is disabled.
func IsNoTUI() bool {
	noTUIMutex.RLock()
	defer noTUIMutex.RUnlock()
	return NoTUI
}

// interactive reports whether prompts can be shown.
func interactive() bool {
	if IsNoTUI() {
		return false
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// loadConfig resolves the configuration for cmd: file, env, then flags.
// Logging is set up from the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp loads the configuration and builds the workflow facade.
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, nil), nil
}
