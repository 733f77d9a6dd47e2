package simulation

import (
	"fmt"

	"github.com/oshokin/overlandflow/internal/clock"
	"github.com/oshokin/overlandflow/internal/config"
	"github.com/oshokin/overlandflow/internal/coupling"
	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/rainfall"
	"github.com/oshokin/overlandflow/internal/repository/checkpoint"
	"github.com/oshokin/overlandflow/internal/roughness"
	"github.com/oshokin/overlandflow/internal/solver"
)

// terrainOwner writes the elevation field.
const terrainOwner = "terrain"

// Model is an assembled simulation: the grid with its fields, the clock and
// the process models bound to them.
type Model struct {
	// Params are the parameters the model was built from.
	Params *config.Params
	// Grid holds every field.
	Grid *grid.Grid
	// Clock starts at clock.start, or at the checkpoint time when resuming.
	Clock *clock.Clock
	// Rain samples the rainfall signal into rain_rate.
	Rain *rainfall.Driver
	// Roughness keeps mannings_n in step with the water depth.
	Roughness *roughness.Updater
	// Flow moves and stores surface water.
	Flow *solver.Reservoir
	// Infiltration drains surface water into the soil.
	Infiltration *solver.Infiltration
}

// Build assembles a model from p. Process models attach their fields first,
// then the fields group overrides initial values. When cp is not nil its
// fields are restored last and the clock starts at its time.
func Build(p *config.Params, cp *checkpoint.Checkpoint) (*Model, error) {
	if err := config.Validate(p); err != nil {
		return nil, err
	}

	start := p.Clock.Start
	if cp != nil {
		start = cp.Time
	}

	clk, err := clock.New(start, p.Clock.Stop, p.Clock.Step)
	if err != nil {
		return nil, fmt.Errorf("create clock: %w", err)
	}

	g, err := buildGrid(p.Grid)
	if err != nil {
		return nil, err
	}

	// Depth must exist before the roughness updater binds to it.
	flow, err := solver.NewReservoir(g, p.OverlandFlow.Flow())
	if err != nil {
		return nil, fmt.Errorf("create overland flow: %w", err)
	}

	rough, err := roughness.NewUpdater(g, p.DepthDependentManningsN.Roughness(), p.OverlandFlow.ManningsN)
	if err != nil {
		return nil, fmt.Errorf("create roughness updater: %w", err)
	}

	infiltration, err := solver.NewInfiltration(g, p.SoilInfiltration.Infiltration())
	if err != nil {
		return nil, fmt.Errorf("create soil infiltration: %w", err)
	}

	signal, err := rainSignal(p)
	if err != nil {
		return nil, err
	}

	rain, err := rainfall.NewDriver(g, signal, start)
	if err != nil {
		return nil, fmt.Errorf("create rainfall driver: %w", err)
	}

	err = p.Fields.Each(func(site grid.Site, init config.FieldInit) error {
		return g.Initialize(init.Name, site, init.Value)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize fields: %w", err)
	}

	if cp != nil {
		if err = checkpoint.Restore(g, cp); err != nil {
			return nil, err
		}
	}

	return &Model{
		Params:       p,
		Grid:         g,
		Clock:        clk,
		Rain:         rain,
		Roughness:    rough,
		Flow:         flow,
		Infiltration: infiltration,
	}, nil
}

// Models returns the process models in the shape the coupler expects.
func (m *Model) Models() coupling.Models {
	return coupling.Models{
		Rain:         m.Rain,
		Roughness:    m.Roughness,
		Flow:         m.Flow,
		Infiltration: m.Infiltration,
	}
}

// buildGrid creates the raster, reads elevation from file when configured
// and marks the fixed-value sides.
func buildGrid(p config.GridParams) (*grid.Grid, error) {
	var (
		g         *grid.Grid
		elevation []float64
		err       error
	)

	if p.FromFile != "" {
		g, elevation, err = grid.ReadESRIASCIIFile(p.FromFile)
	} else {
		g, err = grid.NewRaster(p.Shape[0], p.Shape[1], p.Spacing)
	}

	if err != nil {
		return nil, fmt.Errorf("create grid: %w", err)
	}

	if err = g.SetFixedValueSides(p.FixedValueSides...); err != nil {
		return nil, err
	}

	z, err := g.Add(grid.ElevationField, grid.Point, terrainOwner, 0)
	if err != nil {
		return nil, err
	}

	copy(z, elevation)

	return g, nil
}

// rainSignal picks the tabulated series when a file is configured and the
// smoothed step function otherwise.
func rainSignal(p *config.Params) (rainfall.Signal, error) {
	if p.RainTimeSeries.File == "" {
		return p.RainStepFunction.Signal(), nil
	}

	series, err := rainfall.LoadTabulated(p.RainTimeSeries.File, p.RainTimeSeries.Kind)
	if err != nil {
		return nil, fmt.Errorf("load rain time series: %w", err)
	}

	return series, nil
}
