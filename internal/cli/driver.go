package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDriverCommand creates the driver command.
func NewDriverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driver",
		Short: "Install the CH340 USB-to-serial driver (Windows)",
		Long: `Download the CH340 driver package into the work directory and run its
installer. Most Nano clones on the LED controller use this chip. Linux and
macOS ship a driver already, so the command refuses to run there.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			wait := follow(a.Bus(), cmd.ErrOrStderr(), true)
			err = a.InstallDriver(cmd.Context())
			wait()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Driver installer finished")
			return nil
		},
	}
	return cmd
}
