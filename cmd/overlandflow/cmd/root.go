package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/overlandflow/internal/logger"
	"github.com/oshokin/overlandflow/internal/service/simulation"
	"github.com/oshokin/overlandflow/internal/simerr"
	"github.com/oshokin/overlandflow/internal/version"
)

var (
	// overrides are dotted "group.key=value" parameter assignments.
	overrides []string
	// outputPath is the NetCDF file receiving the field records.
	outputPath string
	// fields selects the "name@site" fields written to outputPath.
	fields []string
	// verbose prints the resolved parameters before running.
	verbose bool
	// dryRun stops after the model is assembled.
	dryRun bool
	// logLevel is the minimum level written to stderr.
	logLevel string
	// checkpointPath is where the final state is saved.
	checkpointPath string
	// resume restores the state saved at checkpointPath before running.
	resume bool
	// metricsFile receives the stepping metrics in Prometheus text format.
	metricsFile string

	// rootCmd represents the base command for running a simulation.
	rootCmd = &cobra.Command{
		Use:   "overlandflow [config-file]",
		Short: "Run the coupled rainfall, overland flow and infiltration model.",
		Long: `Runs rainfall, depth-dependent roughness, overland flow and soil infiltration
over a raster terrain, coupled in stability-limited sub-steps.

Parameters are layered: built-in defaults, then the optional YAML file, then
--set overrides such as --set clock.stop=7200 or --set grid.shape=[64,64].
Use "overlandflow params" to list every parameter as a dotted path.

Fields are written to a NetCDF file after every clock step when --output is set.
The final state can be saved with --checkpoint and continued later with --resume.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: applyLogLevel,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use the parameter file argument if provided, otherwise rely on defaults.
			var configPath string
			if len(args) > 0 {
				configPath = args[0]
			}

			options := &simulation.Options{
				ConfigPath:  configPath,
				Overrides:   overrides,
				Output:      outputPath,
				Fields:      fields,
				Verbose:     verbose,
				DryRun:      dryRun,
				Checkpoint:  checkpointPath,
				Resume:      resume,
				MetricsFile: metricsFile,
				Stdout:      cmd.OutOrStdout(),
			}

			return simulation.Run(ctx, options)
		},
	}
)

// Execute runs the overlandflow CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel sets the global logging level from --log-level.
func applyLogLevel(*cobra.Command, []string) error {
	level, ok := logger.ParseLogLevel(logLevel)
	if !ok {
		return simerr.Configurationf("unknown log level %q", logLevel)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.Flags()
	flags.StringArrayVar(&overrides, "set", nil, "override a parameter, e.g. overland_flow.alpha=0.5 (repeatable)")
	flags.StringVarP(&outputPath, "output", "o", "", "NetCDF file to write field records to")
	flags.StringSliceVar(&fields, "fields", nil, "fields to write as name@site (default all)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "print the resolved parameters as YAML")
	flags.BoolVar(&dryRun, "dry-run", false, "assemble the model and stop")
	flags.StringVar(&checkpointPath, "checkpoint", "", "file to save the final state to")
	flags.BoolVar(&resume, "resume", false, "continue from the state saved in --checkpoint")
	flags.StringVar(&metricsFile, "metrics-file", "", "file to write stepping metrics to in Prometheus text format")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(paramsCmd, extractCmd)
}
