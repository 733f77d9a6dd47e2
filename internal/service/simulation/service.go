package simulation

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oshokin/overlandflow/internal/config"
	"github.com/oshokin/overlandflow/internal/coupling"
	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/logger"
	"github.com/oshokin/overlandflow/internal/metrics"
	"github.com/oshokin/overlandflow/internal/output"
	"github.com/oshokin/overlandflow/internal/repository/checkpoint"
	"github.com/oshokin/overlandflow/internal/simerr"
	"github.com/oshokin/overlandflow/internal/solver"
)

// Options controls a simulation run.
type Options struct {
	// ConfigPath specifies the optional parameter YAML file.
	ConfigPath string
	// Overrides are dotted "group.key=value" assignments applied after the file.
	Overrides []string
	// Output is the NetCDF file receiving one record per outer step. Empty disables output.
	Output string
	// Fields selects the "name@site" fields written to Output. Empty writes all fields.
	Fields []string
	// Verbose prints the resolved parameters as YAML before running.
	Verbose bool
	// DryRun stops after the model is assembled.
	DryRun bool
	// Checkpoint is the file the final state is saved to.
	Checkpoint string
	// Resume restores time and fields from Checkpoint before running.
	Resume bool
	// MetricsFile receives the stepping metrics in Prometheus text format.
	MetricsFile string
	// Stdout receives the verbose YAML. Defaults to os.Stdout.
	Stdout io.Writer
}

// Summary describes the state at the end of a run.
type Summary struct {
	// Time is the final simulation time (s).
	Time float64
	// OuterSteps is the number of outer steps taken by this run.
	OuterSteps int
	// SubSteps is the number of sub-steps taken by this run.
	SubSteps int
	// MeanDepth and MaxDepth summarize the surface water depth (m).
	MeanDepth, MaxDepth float64
	// MeanInfiltrated is the mean depth of water taken up by the soil (m).
	MeanInfiltrated float64
	// WettingFront is MeanInfiltrated spread over the soil porosity (m).
	WettingFront float64
}

// ErrNoCheckpoint indicates a resume request without a checkpoint file.
var ErrNoCheckpoint = fmt.Errorf("%w: resume requires a checkpoint file", simerr.ErrConfiguration)

// Run resolves parameters, assembles the model and advances it to the
// clock's stop time in outer steps of clock.step.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "overlandflow")

	if opts.Resume && opts.Checkpoint == "" {
		return ErrNoCheckpoint
	}

	// Layer defaults, the parameter file and the overrides.
	params, mapping, err := config.Resolve(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return fmt.Errorf("resolve parameters: %w", err)
	}

	var (
		repo   checkpoint.Repository
		resume *checkpoint.Checkpoint
	)

	if opts.Checkpoint != "" {
		repo = checkpoint.NewFileRepository(opts.Checkpoint)
	}

	// Restored state replaces the initial conditions.
	if opts.Resume {
		resume, err = repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}

		logger.InfoKV(ctx, "Resuming from checkpoint", "path", opts.Checkpoint, "time", resume.Time)
	}

	model, err := Build(params, resume)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	if opts.Verbose {
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}

		if err = config.Write(stdout, params); err != nil {
			return fmt.Errorf("print parameters: %w", err)
		}
	}

	rows, cols := model.Grid.Shape()
	logger.InfoKV(ctx, "Model assembled",
		"rows", rows,
		"cols", cols,
		"fields", len(model.Grid.Refs()),
		"start", model.Clock.Time(),
		"stop", model.Clock.Stop(),
		"step", model.Clock.Step())

	if opts.DryRun {
		return nil
	}

	var writer *output.Writer

	if opts.Output != "" {
		writer, err = createOutput(opts.Output, model.Grid, opts.Fields)
		if err != nil {
			return err
		}

		// Only the error path closes here; success closes explicitly below.
		defer func() {
			if writer != nil {
				_ = writer.Close()
			}
		}()
	}

	recorder := metrics.NewRecorder()

	summary, err := Simulate(ctx, model, writer, recorder)
	if err != nil {
		return err
	}

	if writer != nil {
		err = writer.Close()
		writer = nil

		if err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	if repo != nil {
		if err = saveCheckpoint(ctx, repo, model, mapping); err != nil {
			return err
		}
	}

	if opts.MetricsFile != "" {
		if err = recorder.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Simulation complete",
		"time", summary.Time,
		"outer_steps", summary.OuterSteps,
		"sub_steps", summary.SubSteps,
		"mean_depth", summary.MeanDepth,
		"max_depth", summary.MaxDepth,
		"mean_infiltrated", summary.MeanInfiltrated,
		"wetting_front", summary.WettingFront)

	return nil
}

// Simulate advances model to the clock's stop time. The current state is
// appended to writer (when not nil) before the first step and after every
// outer step. A cancelled context stops the run between sub-steps.
func Simulate(ctx context.Context, model *Model, writer *output.Writer, observer coupling.Observer) (*Summary, error) {
	var opts []coupling.Option
	if observer != nil {
		opts = append(opts, coupling.WithObserver(observer))
	}

	coupler, err := coupling.New(model.Clock, model.Grid, model.Models(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create coupler: %w", err)
	}

	if writer != nil {
		if err = writer.Append(model.Clock.Time()); err != nil {
			return nil, err
		}
	}

	outerSteps := 0

	for !model.Clock.Done() {
		if err = coupler.Advance(ctx, model.Clock.NextStep()); err != nil {
			return nil, fmt.Errorf("advance from %g: %w", model.Clock.Time(), err)
		}

		outerSteps++

		if writer != nil {
			if err = writer.Append(model.Clock.Time()); err != nil {
				return nil, err
			}
		}
	}

	summary, err := summarize(model)
	if err != nil {
		return nil, err
	}

	summary.OuterSteps = outerSteps
	summary.SubSteps = coupler.SubSteps()

	return summary, nil
}

// createOutput parses the field selection and creates the NetCDF writer.
func createOutput(path string, g *grid.Grid, fields []string) (*output.Writer, error) {
	refs := make([]grid.Ref, 0, len(fields))

	for _, field := range fields {
		ref, err := grid.ParseRef(field)
		if err != nil {
			return nil, fmt.Errorf("parse output field: %w", err)
		}

		refs = append(refs, ref)
	}

	w, err := output.Create(path, g, refs)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}

	return w, nil
}

// saveCheckpoint stores the final fields with the resolved parameter mapping.
func saveCheckpoint(ctx context.Context, repo checkpoint.Repository, model *Model, mapping map[string]any) error {
	cp, err := checkpoint.Capture(model.Grid, model.Clock.Time(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("capture checkpoint: %w", err)
	}

	cp.Params = mapping

	if err = repo.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	logger.InfoKV(ctx, "Checkpoint saved", "time", cp.Time, "fields", len(cp.Fields))

	return nil
}

// summarize reduces the depth and soil fields of model.
func summarize(model *Model) (*Summary, error) {
	depth, err := model.Grid.FieldStats(solver.DepthField, grid.Point)
	if err != nil {
		return nil, err
	}

	soil, err := model.Grid.FieldStats(solver.SoilDepthField, grid.Point)
	if err != nil {
		return nil, err
	}

	n := float64(model.Grid.NumPoints())

	summary := &Summary{
		Time:            model.Clock.Time(),
		MeanDepth:       depth.Sum / n,
		MaxDepth:        depth.Max,
		MeanInfiltrated: soil.Sum / n,
	}

	if porosity := model.Infiltration.Params().Porosity(); porosity > 0 {
		summary.WettingFront = summary.MeanInfiltrated / porosity
	}

	return summary, nil
}
