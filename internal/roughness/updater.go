package roughness

import (
	"math"

	"github.com/oshokin/overlandflow/internal/grid"
)

// Field names shared with the flow model.
const (
	// DepthField is the point field the coefficient is computed from.
	DepthField = "surface_water__depth"
	// Field is the name of the roughness field at points and at edges.
	Field = "mannings_n"
)

// Name identifies the updater as the writer of its fields.
const Name = "depth_dependent_mannings_n"

// Updater recomputes point roughness from the current depth and maps it to edges.
// It owns mannings_n at points and at edges.
type Updater struct {
	params Params
	grid   *grid.Grid

	depth []float64
	point []float64
	edge  []float64
}

// NewUpdater validates p, attaches the roughness fields and binds the depth field,
// which must already exist. initial fills both roughness fields until the first update.
func NewUpdater(g *grid.Grid, p Params, initial float64) (*Updater, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	depth, err := g.Field(DepthField, grid.Point)
	if err != nil {
		return nil, err
	}

	point, err := g.Add(Field, grid.Point, Name, initial)
	if err != nil {
		return nil, err
	}

	edge, err := g.Add(Field, grid.Edge, Name, initial)
	if err != nil {
		return nil, err
	}

	return &Updater{params: p, grid: g, depth: depth, point: point, edge: edge}, nil
}

// Name implements the process model contract.
func (u *Updater) Name() string { return Name }

// Params returns the parameters in use.
func (u *Updater) Params() Params { return u.params }

// StableTimestep is unbounded: the update is algebraic.
func (u *Updater) StableTimestep() (float64, error) { return math.Inf(1), nil }

// Advance recomputes point roughness in place from the current depth. dt is unused.
func (u *Updater) Advance(float64) error {
	u.point = ManningsN(u.point, u.depth, u.params)

	return nil
}

// MapToEdges reduces point roughness onto edges in place using rule.
func (u *Updater) MapToEdges(rule grid.Rule) error {
	edge, err := u.grid.ReduceEdgesFromPoints(Field, rule, u.edge)
	if err != nil {
		return err
	}

	u.edge = edge

	return nil
}
