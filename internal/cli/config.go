package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/ledupdater/internal/config"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/serialport"
)

// NewConfigCommand creates the config command with its show and init
// subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(newConfigShowCommand(), newConfigInitCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after the file, LEDUPDATER_* environment
variables and command line flags have been applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	}
}

// ConfigInitOptions contains the options for the config init command.
type ConfigInitOptions struct {
	Force   bool
	Port    string
	WorkDir string
}

func newConfigInitCommand() *cobra.Command {
	opts := &ConfigInitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Long: `Write ~/.config/ledupdater/config.toml (or --config) with the default
settings. The serial port and work directory are asked for interactively
unless --no-tui is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&opts.Port, "serial-port", "", "default serial port")
	cmd.Flags().StringVar(&opts.WorkDir, "dir", "", "work directory for downloads")

	return cmd
}

func runConfigInit(cmd *cobra.Command, opts *ConfigInitOptions) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if path == "" {
		return lerrors.E("config init", lerrors.ErrNotFound, "", errors.New("cannot determine home directory; use --config"))
	}
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return lerrors.E("config init", lerrors.ErrInvalid, path, errors.New("file exists; use --force to overwrite"))
	}

	cfg := config.DefaultConfig()
	if opts.Port != "" {
		cfg.Flash.Port = opts.Port
	}
	if opts.WorkDir != "" {
		cfg.Paths.WorkDir = opts.WorkDir
	}

	if interactive() {
		if err := promptConfig(cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return lerrors.E("config init", lerrors.ErrInvalid, path, err)
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func promptConfig(cfg *config.Config) error {
	fields := []huh.Field{
		huh.NewInput().
			Title("Work directory").
			Description("Firmware and avrdude are downloaded here").
			Value(&cfg.Paths.WorkDir),
	}

	ports, _ := serialport.New().List()
	if len(ports) > 0 {
		portOpts := []huh.Option[string]{huh.NewOption("(avrdude default)", "")}
		for _, p := range ports {
			portOpts = append(portOpts, huh.NewOption(p, p))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Serial port").
			Options(portOpts...).
			Value(&cfg.Flash.Port))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Serial port").
			Description("Leave empty to use the avrdude default").
			Value(&cfg.Flash.Port))
	}
	fields = append(fields, huh.NewConfirm().
		Title("Probe the bootloader baud rate before flashing?").
		Value(&cfg.Flash.AutoBaud))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}
	return nil
}
