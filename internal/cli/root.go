package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazuruo/ledupdater/internal/logging"
	"github.com/chazuruo/ledupdater/internal/tui"
)

// BuildInfo is stamped into the binary with ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

// NewRootCommand creates the ledupdater command tree. Run without a
// subcommand on a terminal it opens the TUI.
func NewRootCommand(info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledupdater",
		Short: "Firmware updater for the WingnutTech LED controller",
		Long: `ledupdater downloads firmware releases of the WingnutTech FT Night Radian
LED controller and flashes them with avrdude. It can also install the CH340
USB-to-serial driver on Windows.

Run without a subcommand to open the interactive updater.`,
		Version:       info.Version + " (commit: " + info.Commit + ", built: " + info.Date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetFrontend("cli")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.TUI.Enabled || !interactive() || !stdoutIsTerminal() {
				return cmd.Help()
			}
			return runTUI(cmd)
		},
	}

	AddGlobalFlags(root)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		NewReleasesCommand(),
		NewFlashCommand(),
		NewDriverCommand(),
		NewPortsCommand(),
		NewTUICommand(),
		NewUpgradeCommand(info.Version),
		NewVersionCommand(info.Version, info.Commit, info.Date, info.BuiltBy),
		NewConfigCommand(),
	)
	return root
}

func stdoutIsTerminal() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive updater",
		Long: `Open the terminal updater: pick a version and a layout, then press f to
flash, d to install the driver, r to reload releases, esc to cancel the
running task and q to quit. Logs go to ledupdater.log in the work directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}
}

func runTUI(cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	workDir := a.Config().Paths.WorkDir
	if err := os.MkdirAll(workDir, 0o755); err == nil {
		if restore, err := logging.ToFile(filepath.Join(workDir, "ledupdater.log")); err == nil {
			defer restore()
		}
	}
	logging.SetFrontend("tui")
	return tui.Run(cmd.Context(), a)
}
