package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oshokin/overlandflow/internal/config"
)

// paramsCmd prints parameters as dotted "group.key=value" lines.
var paramsCmd = &cobra.Command{
	Use:   "params [config-file]",
	Short: "Print parameters as dotted paths.",
	Long: `Prints one "group.key=value" line per parameter, sorted by path.
Sequences of two or more values are printed one line per element.

Without arguments or --set the built-in defaults are printed. With a parameter
file and/or --set overrides the resolved set is printed, exactly as a run would
use it. Scalar lines can be fed back as --set overrides.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var configPath string
		if len(args) > 0 {
			configPath = args[0]
		}

		return printParams(cmd.OutOrStdout(), configPath, overrides)
	},
}

// printParams writes the dotted lines of the defaults layered with the file
// at configPath and the overrides.
func printParams(w io.Writer, configPath string, overrides []string) error {
	mapping := config.Defaults()

	if configPath != "" || len(overrides) > 0 {
		var err error

		if _, mapping, err = config.Resolve(configPath, overrides); err != nil {
			return err
		}
	}

	lines, err := config.Dots(mapping)
	if err != nil {
		return err
	}

	for _, line := range lines {
		if _, err = fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	paramsCmd.Flags().StringArrayVar(&overrides, "set", nil, "override a parameter, e.g. clock.stop=7200 (repeatable)")
}
