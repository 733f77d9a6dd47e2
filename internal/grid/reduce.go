package grid

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Rule combines the values at the two points of an edge.
type Rule uint8

const (
	// Minimum keeps the smaller of the two point values.
	Minimum Rule = iota
	// Maximum keeps the larger of the two point values.
	Maximum
	// Mean averages the two point values.
	Mean
)

// String returns the rule name.
func (r Rule) String() string {
	switch r {
	case Minimum:
		return "minimum"
	case Maximum:
		return "maximum"
	case Mean:
		return "mean"
	default:
		return "unknown"
	}
}

// ReduceEdgesFromPoints maps the point field name to one value per edge using rule.
// dst is reused when its capacity suffices, otherwise a new slice is allocated.
func (g *Grid) ReduceEdgesFromPoints(name string, rule Rule, dst []float64) ([]float64, error) {
	values, err := g.Field(name, Point)
	if err != nil {
		return nil, err
	}

	var combine func(a, b float64) float64

	switch rule {
	case Minimum:
		combine = math.Min
	case Maximum:
		combine = math.Max
	case Mean:
		combine = func(a, b float64) float64 { return 0.5 * (a + b) }
	default:
		return nil, simerr.Configurationf("unknown edge reduction rule %d", rule)
	}

	if cap(dst) >= len(g.edges) {
		dst = dst[:len(g.edges)]
	} else {
		dst = make([]float64, len(g.edges))
	}

	for e, pts := range g.edges {
		dst[e] = combine(values[pts[0]], values[pts[1]])
	}

	return dst, nil
}

// Stats summarizes a field.
type Stats struct {
	Min, Max, Sum float64
}

// FieldStats returns the minimum, maximum and sum of a field.
func (g *Grid) FieldStats(name string, site Site) (Stats, error) {
	values, err := g.Field(name, site)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Min: floats.Min(values),
		Max: floats.Max(values),
		Sum: floats.Sum(values),
	}, nil
}
