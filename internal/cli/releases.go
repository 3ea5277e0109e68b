package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/ledupdater/internal/releases"
)

// OutputFormat defines the output format for listing commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatPlain OutputFormat = "plain"
)

// ReleasesOptions contains the options for the releases command.
type ReleasesOptions struct {
	Format string
	Latest bool
}

// releaseOutput is one version as printed by json and yaml output.
type releaseOutput struct {
	Name    string   `json:"name" yaml:"name"`
	Tag     string   `json:"tag" yaml:"tag"`
	Layouts []string `json:"layouts" yaml:"layouts"`
}

// NewReleasesCommand creates the releases command.
func NewReleasesCommand() *cobra.Command {
	opts := &ReleasesOptions{}

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List firmware releases and their layouts",
		Long: `List the firmware releases published for the LED controller and the
layouts (.hex files) each one provides.

Examples:
  ledupdater releases                  # table of all releases
  ledupdater releases --latest         # only the newest release
  ledupdater releases --format json    # machine readable output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			cat, err := a.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Latest {
				v, ok := cat.Latest()
				if !ok {
					return fmt.Errorf("no releases found")
				}
				cat = releases.Catalog{Versions: []releases.Version{v}}
			}
			return printReleases(cmd.OutOrStdout(), cat, OutputFormat(opts.Format))
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml, plain)")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "only show the newest release")

	return cmd
}

func toOutput(cat releases.Catalog) []releaseOutput {
	out := make([]releaseOutput, 0, cat.Len())
	for _, v := range cat.Versions {
		r := releaseOutput{Name: v.Name, Tag: v.Tag, Layouts: []string{}}
		for _, l := range v.Layouts {
			if !l.IsPlaceholder() {
				r.Layouts = append(r.Layouts, l.Name)
			}
		}
		out = append(out, r)
	}
	return out
}

func printReleases(w io.Writer, cat releases.Catalog, format OutputFormat) error {
	switch format {
	case FormatTable:
		if cat.Len() == 0 {
			fmt.Fprintln(w, "No releases found.")
			return nil
		}
		tbl := newTable(w, "Version", "Tag", "Layouts")
		for _, v := range cat.Versions {
			names := make([]string, 0, len(v.Layouts))
			for _, l := range v.Layouts {
				if l.IsPlaceholder() {
					names = append(names, l.Name)
					continue
				}
				names = append(names, releases.DisplayName(l.Name))
			}
			tbl.AddRow(v.Name, v.Tag, strings.Join(names, ", "))
		}
		tbl.Print()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toOutput(cat)); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toOutput(cat)); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case FormatPlain:
		for _, r := range toOutput(cat) {
			for _, l := range r.Layouts {
				fmt.Fprintf(w, "%s\t%s\n", r.Name, l)
			}
		}
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, yaml, or plain)", format)
	}
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true)

// newTable returns a rodaine table writing to w with bold headers.
func newTable(w io.Writer, headers ...string) table.Table {
	cols := make([]interface{}, len(headers))
	for i, h := range headers {
		cols[i] = strings.ToUpper(h)
	}
	return table.New(cols...).
		WithWriter(w).
		WithHeaderFormatter(func(format string, vals ...interface{}) string {
			line := fmt.Sprintf(format, vals...)
			trimmed := strings.TrimSuffix(line, "\n")
			out := headerStyle.Render(trimmed)
			if trimmed != line {
				out += "\n"
			}
			return out
		})
}
