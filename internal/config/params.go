package config

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/overlandflow/internal/clock"
	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/rainfall"
	"github.com/oshokin/overlandflow/internal/roughness"
	"github.com/oshokin/overlandflow/internal/simerr"
	"github.com/oshokin/overlandflow/internal/solver"
)

// RasterType is the only supported grid type.
const RasterType = "raster"

// Params is the fully resolved parameter set of a model run.
type Params struct {
	// Grid describes the raster the model runs on.
	Grid GridParams `yaml:"grid"`
	// Clock sets the simulation start, stop and outer step (s).
	Clock ClockParams `yaml:"clock"`
	// Fields holds initial values for named fields.
	Fields FieldsParams `yaml:"fields"`
	// OverlandFlow configures the flow model.
	OverlandFlow OverlandFlowParams `yaml:"overland_flow"`
	// SoilInfiltration configures the infiltration model.
	SoilInfiltration SoilInfiltrationParams `yaml:"soil_infiltration"`
	// RainStepFunction is the storm used when no rain time series is given.
	RainStepFunction RainStepFunctionParams `yaml:"rain_step_function"`
	// RainTimeSeries replaces the step function when File is set.
	RainTimeSeries RainTimeSeriesParams `yaml:"rain_time_series"`
	// DepthDependentManningsN configures the roughness updater.
	DepthDependentManningsN ManningsParams `yaml:"depth_dependent_mannings_n"`
}

// GridParams describes the raster. Either FromFile or Shape and Spacing are used.
type GridParams struct {
	Type            string   `yaml:"_type"`
	FromFile        string   `yaml:"from_file,omitempty"`
	Shape           []int    `yaml:"shape,omitempty,flow"`
	Spacing         float64  `yaml:"spacing,omitempty"`
	FixedValueSides []string `yaml:"fixed_value_sides,omitempty,flow"`
}

// ClockParams sets simulation times in seconds.
type ClockParams struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// FieldsParams lists initial field values by attachment site.
type FieldsParams struct {
	AtNode []FieldInit `yaml:"at_node,omitempty"`
	AtLink []FieldInit `yaml:"at_link,omitempty"`
	AtGrid []FieldInit `yaml:"at_grid,omitempty"`
}

// FieldInit fills a field with a single value. In YAML it is a two-element
// sequence, [name, value], or a mapping with name and value keys.
type FieldInit struct {
	Name  string
	Value float64
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FieldInit) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: field initializer needs [name, value], got %d elements", node.Line, len(node.Content))
		}

		if err := node.Content[0].Decode(&f.Name); err != nil {
			return err
		}

		return node.Content[1].Decode(&f.Value)
	case yaml.MappingNode:
		var m struct {
			Name  string  `yaml:"name"`
			Value float64 `yaml:"value"`
		}

		if err := node.Decode(&m); err != nil {
			return err
		}

		f.Name, f.Value = m.Name, m.Value

		return nil
	default:
		return fmt.Errorf("line %d: field initializer must be [name, value]", node.Line)
	}
}

// MarshalYAML implements yaml.Marshaler, writing the [name, value] form.
func (f FieldInit) MarshalYAML() (any, error) {
	var node yaml.Node
	if err := node.Encode([]any{f.Name, f.Value}); err != nil {
		return nil, err
	}

	node.Style = yaml.FlowStyle

	return &node, nil
}

// Each calls fn for every initializer, points first, then edges, then the domain.
func (f FieldsParams) Each(fn func(site grid.Site, init FieldInit) error) error {
	for _, group := range []struct {
		site  grid.Site
		inits []FieldInit
	}{
		{grid.Point, f.AtNode},
		{grid.Edge, f.AtLink},
		{grid.Domain, f.AtGrid},
	} {
		for _, init := range group.inits {
			if err := fn(group.site, init); err != nil {
				return err
			}
		}
	}

	return nil
}

// OverlandFlowParams configures the flow model.
type OverlandFlowParams struct {
	HInit float64 `yaml:"h_init"`
	Alpha float64 `yaml:"alpha"`
	// ManningsN fills mannings_n until the first roughness update.
	ManningsN float64 `yaml:"mannings_n"`
	G         float64 `yaml:"g"`
}

// Flow converts to the flow model parameters.
func (p OverlandFlowParams) Flow() solver.FlowParams {
	return solver.FlowParams{InitialDepth: p.HInit, Alpha: p.Alpha, Gravity: p.G}
}

// SoilInfiltrationParams configures the infiltration model.
type SoilInfiltrationParams struct {
	HydraulicConductivity float64 `yaml:"hydraulic_conductivity"`
	SoilBulkDensity       float64 `yaml:"soil_bulk_density"`
	RockDensity           float64 `yaml:"rock_density"`
}

// Infiltration converts to the infiltration model parameters.
func (p SoilInfiltrationParams) Infiltration() solver.InfiltrationParams {
	return solver.InfiltrationParams{
		HydraulicConductivity: p.HydraulicConductivity,
		SoilBulkDensity:       p.SoilBulkDensity,
		RockDensity:           p.RockDensity,
	}
}

// RainStepFunctionParams describes a smoothed rectangular storm.
type RainStepFunctionParams struct {
	Start     float64 `yaml:"start"`
	Duration  float64 `yaml:"duration"`
	Magnitude float64 `yaml:"magnitude"`
	Steepness float64 `yaml:"steepness"`
}

// Signal converts to the rain signal.
func (p RainStepFunctionParams) Signal() rainfall.SmoothedStep {
	return rainfall.SmoothedStep{Start: p.Start, Duration: p.Duration, Magnitude: p.Magnitude, Steepness: p.Steepness}
}

// RainTimeSeriesParams points at a "time,value" CSV file of rain rates.
type RainTimeSeriesParams struct {
	File string `yaml:"file,omitempty"`
	Kind string `yaml:"kind"`
}

// ManningsParams configures depth-dependent roughness.
type ManningsParams struct {
	MinManningsN    float64 `yaml:"min_mannings_n"`
	IndexFlowDepth  float64 `yaml:"index_flow_depth"`
	VegDragExponent float64 `yaml:"veg_drag_exponent"`
	MinDepthRatio   float64 `yaml:"min_depth_ratio"`
}

// Roughness converts to the roughness parameters.
func (p ManningsParams) Roughness() roughness.Params {
	return roughness.Params{
		Min:           p.MinManningsN,
		IndexDepth:    p.IndexFlowDepth,
		Exponent:      p.VegDragExponent,
		MinDepthRatio: p.MinDepthRatio,
	}
}

// DefaultParams returns the built-in parameter set: a flat 32x32 raster,
// a 100 s run in 2 s steps and an hour-long storm starting after an hour.
func DefaultParams() *Params {
	return &Params{
		Grid: GridParams{
			Type:            RasterType,
			Shape:           []int{32, 32},
			Spacing:         10,
			FixedValueSides: []string{"bottom", "top"},
		},
		Clock: ClockParams{Start: 0, Stop: 100, Step: 2},
		Fields: FieldsParams{
			AtNode: []FieldInit{{Name: solver.SoilDepthField, Value: 0.001}},
			AtLink: []FieldInit{{Name: roughness.Field, Value: 0.055}},
		},
		OverlandFlow: OverlandFlowParams{
			HInit:     solver.DefaultInitialDepth,
			Alpha:     solver.DefaultAlpha,
			ManningsN: solver.DefaultManningsN,
			G:         solver.DefaultGravity,
		},
		SoilInfiltration: SoilInfiltrationParams{
			HydraulicConductivity: solver.DefaultHydraulicConductivity,
			SoilBulkDensity:       solver.DefaultSoilBulkDensity,
			RockDensity:           solver.DefaultRockDensity,
		},
		RainStepFunction: RainStepFunctionParams{
			Start:     3600,
			Duration:  3600,
			Magnitude: 60e-3 / 3600,
			Steepness: rainfall.DefaultSteepness,
		},
		RainTimeSeries: RainTimeSeriesParams{Kind: rainfall.Linear},
		DepthDependentManningsN: ManningsParams{
			MinManningsN:    roughness.DefaultMin,
			IndexFlowDepth:  roughness.DefaultIndexDepth,
			VegDragExponent: roughness.DefaultExponent,
			MinDepthRatio:   roughness.DefaultMinDepthRatio,
		},
	}
}

// Validate checks every group. The first problem found is returned.
func Validate(p *Params) error {
	if p == nil {
		return errParamsNotSet
	}

	checks := []func() error{
		p.Grid.validate,
		p.Clock.validate,
		p.Fields.validate,
		p.OverlandFlow.validate,
		p.SoilInfiltration.Infiltration().Validate,
		p.RainStepFunction.Signal().Validate,
		p.RainTimeSeries.validate,
		p.DepthDependentManningsN.Roughness().Validate,
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func (p GridParams) validate() error {
	if p.Type != RasterType {
		return simerr.Configurationf("grid type mismatch: want %q, got %q", RasterType, p.Type)
	}

	if p.FromFile == "" {
		if len(p.Shape) != 2 || p.Shape[0] < 2 || p.Shape[1] < 2 {
			return simerr.Configurationf("grid.shape must be [rows, cols] of at least 2 each, got %v", p.Shape)
		}

		if !(p.Spacing > 0) || math.IsInf(p.Spacing, 1) {
			return simerr.Configurationf("grid.spacing must be positive and finite, got %g", p.Spacing)
		}
	}

	for _, side := range p.FixedValueSides {
		switch side {
		case "bottom", "top", "left", "right":
		default:
			return simerr.Configurationf("grid.fixed_value_sides: unknown side %q", side)
		}
	}

	return nil
}

func (p ClockParams) validate() error {
	_, err := clock.New(p.Start, p.Stop, p.Step)

	return err
}

func (p FieldsParams) validate() error {
	return p.Each(func(site grid.Site, init FieldInit) error {
		if init.Name == "" {
			return simerr.Configurationf("fields: initializer at %s has no name", site)
		}

		if math.IsNaN(init.Value) || math.IsInf(init.Value, 0) {
			return simerr.Configurationf("fields: %s@%s must be finite, got %g", init.Name, site, init.Value)
		}

		return nil
	})
}

func (p OverlandFlowParams) validate() error {
	if err := p.Flow().Validate(); err != nil {
		return err
	}

	if !(p.ManningsN > 0) || math.IsInf(p.ManningsN, 1) {
		return simerr.Configurationf("overland_flow.mannings_n must be positive and finite, got %g", p.ManningsN)
	}

	return nil
}

func (p RainTimeSeriesParams) validate() error {
	switch p.Kind {
	case rainfall.Linear, rainfall.Constant, rainfall.Akima, rainfall.FritschButland:
		return nil
	default:
		return simerr.Configurationf("rain_time_series.kind: unknown interpolation %q", p.Kind)
	}
}
