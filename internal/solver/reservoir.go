package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

// Default flow parameters.
const (
	DefaultInitialDepth = 1e-5
	DefaultAlpha        = 0.7
	DefaultGravity      = 9.80665
	DefaultManningsN    = 0.03
)

// FlowParams configures the reservoir flow model.
type FlowParams struct {
	// InitialDepth fills surface_water__depth at construction (m).
	InitialDepth float64
	// Alpha scales the CFL limit, 0 < Alpha <= 1.
	Alpha float64
	// Gravity is the gravitational acceleration (m/s²).
	Gravity float64
}

// DefaultFlowParams returns the stock flow parameters.
func DefaultFlowParams() FlowParams {
	return FlowParams{InitialDepth: DefaultInitialDepth, Alpha: DefaultAlpha, Gravity: DefaultGravity}
}

// Validate reports parameters the model cannot run with.
func (p FlowParams) Validate() error {
	if !(p.InitialDepth >= 0) || math.IsInf(p.InitialDepth, 1) {
		return simerr.Configurationf("overland_flow.h_init must be finite and non-negative, got %g", p.InitialDepth)
	}

	if !(p.Alpha > 0 && p.Alpha <= 1) {
		return simerr.Configurationf("overland_flow.alpha must be in (0, 1], got %g", p.Alpha)
	}

	if !(p.Gravity > 0) || math.IsInf(p.Gravity, 1) {
		return simerr.Configurationf("overland_flow.g must be positive and finite, got %g", p.Gravity)
	}

	return nil
}

// Reservoir treats every core point as an independent store of surface water:
// rain adds depth, infiltration removes it. Fixed-value points hold the depth
// they had when the model first advanced and closed points stay dry.
//
// It owns surface_water__depth and surface_water__infiltrated_depth (the depth
// lost to the soil during the last sub-step). It reads mannings_n at edges and,
// when an infiltration model is attached, infiltration__rate at points.
type Reservoir struct {
	grid   *grid.Grid
	params FlowParams

	depth       []float64
	infiltrated []float64
	held        []float64
	rain        float64
}

// NewReservoir validates p and attaches the flow fields to g.
func NewReservoir(g *grid.Grid, p FlowParams) (*Reservoir, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	depth, err := g.Add(DepthField, grid.Point, FlowName, p.InitialDepth)
	if err != nil {
		return nil, err
	}

	infiltrated, err := g.Add(InfiltratedField, grid.Point, FlowName, 0)
	if err != nil {
		return nil, err
	}

	for i := range depth {
		if g.Status(i) == grid.Closed {
			depth[i] = 0
		}
	}

	return &Reservoir{grid: g, params: p, depth: depth, infiltrated: infiltrated}, nil
}

// Name implements the process model contract.
func (r *Reservoir) Name() string { return FlowName }

// Params returns the parameters in use.
func (r *Reservoir) Params() FlowParams { return r.params }

// RainfallIntensity returns the rain rate applied by the next advance.
func (r *Reservoir) RainfallIntensity() float64 { return r.rain }

// SetRainfallIntensity sets the rain rate (m/s) applied by the next advance.
func (r *Reservoir) SetRainfallIntensity(rate float64) {
	r.rain = rate
}

// StableTimestep returns alpha·dx/√(g·max(h)).
func (r *Reservoir) StableTimestep() (float64, error) {
	hmax := floats.Max(r.depth)
	if !(hmax > 0) || math.IsInf(hmax, 1) {
		return 0, simerr.Domainf("no stable timestep for maximum water depth %g", hmax)
	}

	return r.params.Alpha * r.grid.Spacing() / math.Sqrt(r.params.Gravity*hmax), nil
}

// Advance applies rain and infiltration over dt.
func (r *Reservoir) Advance(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 1) {
		return simerr.Domainf("flow timestep must be positive and finite, got %g", dt)
	}

	if err := r.checkRoughness(); err != nil {
		return err
	}

	var rate []float64

	if r.grid.Has(RateField, grid.Point) {
		var err error

		if rate, err = r.grid.Field(RateField, grid.Point); err != nil {
			return err
		}
	}

	if r.held == nil {
		r.held = append([]float64(nil), r.depth...)
	}

	for i := range r.depth {
		r.infiltrated[i] = 0

		switch r.grid.Status(i) {
		case grid.Closed:
			r.depth[i] = 0

			continue
		case grid.FixedValue:
			r.depth[i] = r.held[i]

			continue
		}

		h := math.Max(r.depth[i]+r.rain*dt, 0)

		if rate != nil && rate[i] > 0 {
			loss := math.Min(rate[i]*dt, h)
			h -= loss
			r.infiltrated[i] = loss
		}

		r.depth[i] = h
	}

	return nil
}

func (r *Reservoir) checkRoughness() error {
	n, err := r.grid.Field(RoughnessField, grid.Edge)
	if err != nil {
		return err
	}

	for e, v := range n {
		if !(v > 0) || math.IsInf(v, 1) {
			return simerr.Domainf("mannings_n at edge %d must be positive and finite, got %g", e, v)
		}
	}

	return nil
}
