package solver

import (
	"math"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

// Default soil parameters.
const (
	DefaultHydraulicConductivity = 0.005
	DefaultSoilBulkDensity       = 1590.0
	DefaultRockDensity           = 2650.0
)

// InfiltrationParams configures the infiltration model.
type InfiltrationParams struct {
	// HydraulicConductivity caps the infiltration rate (m/s).
	HydraulicConductivity float64
	// SoilBulkDensity and RockDensity (kg/m³) give the soil porosity.
	SoilBulkDensity float64
	RockDensity     float64
}

// DefaultInfiltrationParams returns the stock soil parameters.
func DefaultInfiltrationParams() InfiltrationParams {
	return InfiltrationParams{
		HydraulicConductivity: DefaultHydraulicConductivity,
		SoilBulkDensity:       DefaultSoilBulkDensity,
		RockDensity:           DefaultRockDensity,
	}
}

// Validate reports parameters the model cannot run with.
func (p InfiltrationParams) Validate() error {
	if !(p.HydraulicConductivity >= 0) || math.IsInf(p.HydraulicConductivity, 1) {
		return simerr.Configurationf("soil_infiltration.hydraulic_conductivity must be finite and non-negative, got %g",
			p.HydraulicConductivity)
	}

	if !(p.SoilBulkDensity > 0 && p.SoilBulkDensity < p.RockDensity) || math.IsInf(p.RockDensity, 1) {
		return simerr.Configurationf("soil_infiltration needs 0 < soil_bulk_density < rock_density, got %g and %g",
			p.SoilBulkDensity, p.RockDensity)
	}

	return nil
}

// Porosity is the pore fraction implied by the two densities.
func (p InfiltrationParams) Porosity() float64 {
	return 1 - p.SoilBulkDensity/p.RockDensity
}

// Infiltration accumulates the water the flow model lost to the soil and sets
// the rate the flow model may infiltrate during the next sub-step:
// min(K, h/dt), so a sub-step of the same length cannot drain more than is ponded.
//
// It owns infiltration__rate and soil_water_infiltration__depth and reads
// surface_water__depth and surface_water__infiltrated_depth.
type Infiltration struct {
	params InfiltrationParams

	depth       []float64
	infiltrated []float64
	rate        []float64
	soil        []float64
}

// NewInfiltration validates p and attaches the soil fields to g. The flow
// fields must already exist.
func NewInfiltration(g *grid.Grid, p InfiltrationParams) (*Infiltration, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	depth, err := g.Field(DepthField, grid.Point)
	if err != nil {
		return nil, err
	}

	infiltrated, err := g.Field(InfiltratedField, grid.Point)
	if err != nil {
		return nil, err
	}

	rate, err := g.Add(RateField, grid.Point, InfiltrationName, p.HydraulicConductivity)
	if err != nil {
		return nil, err
	}

	soil, err := g.Add(SoilDepthField, grid.Point, InfiltrationName, 0)
	if err != nil {
		return nil, err
	}

	return &Infiltration{params: p, depth: depth, infiltrated: infiltrated, rate: rate, soil: soil}, nil
}

// Name implements the process model contract.
func (m *Infiltration) Name() string { return InfiltrationName }

// Params returns the parameters in use.
func (m *Infiltration) Params() InfiltrationParams { return m.params }

// StableTimestep is unbounded: the update is explicit and capacity-limited.
func (m *Infiltration) StableTimestep() (float64, error) { return math.Inf(1), nil }

// Advance adds the last sub-step's infiltrated depth to the soil and updates the rate.
func (m *Infiltration) Advance(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 1) {
		return simerr.Domainf("infiltration timestep must be positive and finite, got %g", dt)
	}

	k := m.params.HydraulicConductivity

	for i := range m.soil {
		m.soil[i] += m.infiltrated[i]
		m.rate[i] = math.Min(k, math.Max(m.depth[i], 0)/dt)
	}

	return nil
}
