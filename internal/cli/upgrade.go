package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	lerrors "github.com/chazuruo/ledupdater/internal/errors"
	"github.com/chazuruo/ledupdater/internal/selfupdate"
)

// NewUpgradeCommand creates the upgrade command. current is the running
// version.
func NewUpgradeCommand(current string) *cobra.Command {
	var (
		checkOnly bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Update ledupdater to the latest version",
		Long: `Check GitHub releases for a newer ledupdater and replace the running
binary with it. The previous binary is kept as <name>.bak until the next
upgrade.

Exit codes:
  0 - Success or already up-to-date
  1 - Error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			up, err := selfupdate.New(cfg.Update.Repository, current, cfg.Update.Prerelease)
			if err != nil {
				return err
			}
			if err := up.CleanOldVersions(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Checking for updates...")
			info, err := up.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !info.UpdateAvailable {
				fmt.Fprintf(out, "Already on latest version: %s\n", current)
				return nil
			}

			fmt.Fprintf(out, "Update available: %s -> %s\n", current, info.LatestVersion)
			if info.ReleaseNotes != "" {
				notes := info.ReleaseNotes
				if len(notes) > 200 {
					notes = notes[:200] + "..."
				}
				fmt.Fprintf(out, "\nRelease notes:\n%s\n", notes)
			}
			if checkOnly {
				fmt.Fprintln(out, "\nRun without --check-only to install the update")
				return nil
			}

			if !yes {
				if !interactive() {
					return lerrors.E("upgrade", lerrors.ErrInvalid, "", fmt.Errorf("use --yes to upgrade without a prompt"))
				}
				confirmed := false
				if err := huh.NewConfirm().
					Title("Install update?").
					Value(&confirmed).
					Run(); err != nil {
					return fmt.Errorf("form error: %w", err)
				}
				if !confirmed {
					fmt.Fprintln(out, "Update cancelled")
					return nil
				}
			}

			fmt.Fprintln(out, "Installing update...")
			applied, err := up.Apply(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nSuccessfully updated to %s!\n", applied.LatestVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check-only", false,
		"check for updates without installing")
	cmd.Flags().BoolVar(&yes, "yes", false,
		"skip confirmation prompt")
	cmd.Flags().Bool("prerelease", false,
		"include pre-releases")

	return cmd
}
