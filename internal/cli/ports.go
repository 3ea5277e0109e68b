package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazuruo/ledupdater/internal/serialport"
)

// PortsOptions contains the options for the ports command.
type PortsOptions struct {
	Format string
	Probe  bool
}

type portOutput struct {
	Name string `json:"name"`
	Baud int    `json:"baud,omitempty"`
}

// NewPortsCommand creates the ports command.
func NewPortsCommand() *cobra.Command {
	opts := &PortsOptions{}

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long: `List the serial ports present. With --probe every port is reset and asked
for an Arduino bootloader, which shows the baud rate avrdude needs (115200
for new bootloaders, 57600 for old ones).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			prober := serialport.New()
			names, err := prober.List()
			if err != nil {
				return err
			}
			ports := make([]portOutput, 0, len(names))
			for _, n := range names {
				p := portOutput{Name: n}
				if opts.Probe {
					// a port without a bootloader is still listed
					p.Baud, _ = prober.DetectBaud(n)
				}
				ports = append(ports, p)
			}
			return printPorts(cmd.OutOrStdout(), ports, OutputFormat(opts.Format), opts.Probe)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, plain)")
	cmd.Flags().BoolVar(&opts.Probe, "probe", false, "probe each port for a bootloader")

	return cmd
}

func printPorts(w io.Writer, ports []portOutput, format OutputFormat, probed bool) error {
	switch format {
	case FormatTable:
		if len(ports) == 0 {
			fmt.Fprintln(w, "No serial ports found.")
			return nil
		}
		headers := []string{"Port"}
		if probed {
			headers = append(headers, "Bootloader")
		}
		tbl := newTable(w, headers...)
		for _, p := range ports {
			if !probed {
				tbl.AddRow(p.Name)
				continue
			}
			boot := "-"
			if p.Baud > 0 {
				boot = fmt.Sprintf("%d baud", p.Baud)
			}
			tbl.AddRow(p.Name, boot)
		}
		tbl.Print()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ports); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatPlain:
		for _, p := range ports {
			fmt.Fprintln(w, p.Name)
		}
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or plain)", format)
	}
	return nil
}
