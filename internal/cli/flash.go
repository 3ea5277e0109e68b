package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/ledupdater/internal/app"
	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/releases"
	"github.com/chazuruo/ledupdater/internal/selection"
)

// FlashOptions contains the options for the flash command.
type FlashOptions struct {
	Version string
	Layout  string
	Port    string
	Latest  bool
	Yes     bool
	Quiet   bool
}

// NewFlashCommand creates the flash command.
func NewFlashCommand() *cobra.Command {
	opts := &FlashOptions{}

	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Download a firmware layout and flash it to the controller",
		Long: `Download the selected firmware layout and write it to the LED controller
with avrdude. avrdude itself is downloaded into the work directory on first
use unless --avrdude points at an installed binary.

Without --version and --layout an interactive picker is shown.
Use --no-tui with flags for scripted use.

Examples:
  ledupdater flash                                  # pick interactively
  ledupdater flash --latest --layout radian.hex --port COM3 --yes
  ledupdater flash --version v2.1.0 --layout timber.hex --auto-baud`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlash(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "version", "", "release name or tag to flash")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "layout file, e.g. radian.hex")
	cmd.Flags().StringVar(&opts.Port, "port", "", "serial port (avrdude default when empty)")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "use the newest release")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip confirmation prompt")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "hide avrdude output")
	cmd.Flags().Int("baud", 0, "serial baud rate")
	cmd.Flags().String("avrdude", "", "use this avrdude binary instead of downloading one")
	cmd.Flags().Bool("auto-baud", false, "probe the bootloader for its baud rate")

	return cmd
}

func runFlash(cmd *cobra.Command, opts *FlashOptions) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	out := cmd.ErrOrStderr()

	cat, err := a.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	sel, err := selectFromFlags(cat, opts)
	if err != nil {
		return err
	}

	port := opts.Port
	if port == "" {
		port = a.Config().Flash.Port
	}
	needPick := (opts.Version == "" && !opts.Latest) || opts.Layout == ""
	if needPick {
		if !interactive() {
			return lerrors.E("flash", lerrors.ErrInvalid, "", fmt.Errorf("--version (or --latest) and --layout are required with --no-tui"))
		}
		if port, err = pickFlashTarget(a, sel, port); err != nil {
			return err
		}
	}

	if !sel.Ready() {
		_, err := a.Flash(cmd.Context(), sel, port)
		return err
	}

	if !opts.Yes && interactive() {
		confirmed := true
		target := port
		if target == "" {
			target = "the default port"
		}
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("Flash %s (%s) to %s?", releases.DisplayName(sel.Layout()), sel.Version(), target)).
			Value(&confirmed).
			Run(); err != nil {
			return fmt.Errorf("form error: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(out, "Flash cancelled")
			return nil
		}
	}

	wait := follow(a.Bus(), out, !opts.Quiet)
	res, err := a.Flash(cmd.Context(), sel, port)
	wait()
	if err != nil {
		if res != nil && opts.Quiet && res.Output != "" {
			fmt.Fprintln(out, strings.TrimSpace(res.Output))
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Flashed %s from %s in %s\n", sel.Layout(), sel.Version(), res.Duration.Round(100*time.Millisecond))
	return nil
}

// selectFromFlags applies --latest, --version and --layout to a fresh
// selection. Versions match by name or tag; layouts match with or without
// the .hex suffix.
func selectFromFlags(cat releases.Catalog, opts *FlashOptions) (*selection.Selection, error) {
	sel := selection.New(cat)

	if opts.Latest {
		v, ok := cat.Latest()
		if !ok {
			return nil, lerrors.E("select version", lerrors.ErrNotFound, "", fmt.Errorf("no releases found"))
		}
		if err := sel.SelectVersion(v.Name); err != nil {
			return nil, err
		}
	}
	if opts.Version != "" {
		name := opts.Version
		for _, v := range cat.Versions {
			if v.Tag == opts.Version {
				name = v.Name
				break
			}
		}
		if err := sel.SelectVersion(name); err != nil {
			return nil, err
		}
	}
	if opts.Layout != "" {
		layout := opts.Layout
		if _, ok := cat.Lookup(sel.Version(), layout); !ok {
			if _, ok := cat.Lookup(sel.Version(), layout+".hex"); ok {
				layout += ".hex"
			}
		}
		if err := sel.SelectLayout(layout); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// pickFlashTarget prompts for version, layout and port. The layout options
// follow the chosen version.
func pickFlashTarget(a *app.App, sel *selection.Selection, port string) (string, error) {
	version := sel.Version()
	layout := sel.Layout()

	versionOpts := make([]huh.Option[string], 0, len(sel.VersionNames()))
	for _, name := range sel.VersionNames() {
		versionOpts = append(versionOpts, huh.NewOption(name, name))
	}

	fields := []huh.Field{
		huh.NewSelect[string]().
			Title("Firmware version").
			Options(versionOpts...).
			Value(&version),
		huh.NewSelect[string]().
			Title("Layout").
			OptionsFunc(func() []huh.Option[string] {
				var opts []huh.Option[string]
				for _, l := range sel.Catalog().Layouts(version) {
					opts = append(opts, huh.NewOption(layoutLabel(l), l.Name))
				}
				return opts
			}, &version).
			Value(&layout),
	}

	ports, err := a.Ports()
	if err == nil && len(ports) > 0 {
		if port == "" {
			port = ports[0]
		}
		portOpts := make([]huh.Option[string], 0, len(ports))
		for _, p := range ports {
			portOpts = append(portOpts, huh.NewOption(p, p))
		}
		fields = append(fields, huh.NewSelect[string]().
			Title("Serial port").
			Options(portOpts...).
			Value(&port))
	} else {
		fields = append(fields, huh.NewInput().
			Title("Serial port").
			Description("Leave empty to use the avrdude default").
			Value(&port))
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).WithOutput(os.Stderr).Run(); err != nil {
		return "", fmt.Errorf("form error: %w", err)
	}

	if err := sel.SelectVersion(version); err != nil {
		return "", err
	}
	if err := sel.SelectLayout(layout); err != nil {
		return "", err
	}
	return port, nil
}

func layoutLabel(l releases.Layout) string {
	if l.IsPlaceholder() {
		return l.Name
	}
	return fmt.Sprintf("%s (%s)", releases.DisplayName(l.Name), l.Name)
}
