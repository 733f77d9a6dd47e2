package grid

import (
	"math"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Status describes how a point takes part in the simulation.
type Status uint8

const (
	// Core points are updated by the process models.
	Core Status = iota
	// FixedValue points keep their initial state.
	FixedValue
	// Closed points are outside the active domain.
	Closed
)

// Grid is a uniform raster of rows*cols points spaced Spacing apart, with an
// edge between every pair of horizontally or vertically adjacent points.
// Point i sits at row i/cols, column i%cols; row 0 is the southern row.
//
// Edges are numbered horizontal first (row by row, west to east) and then
// vertical (row by row, south to north). Each edge stores its tail and head
// point, tail being the western or southern one.
type Grid struct {
	rows, cols int
	spacing    float64

	edges  [][2]int
	status []Status

	fields map[fieldKey]*field
}

// NewRaster builds a rows x cols raster. Both dimensions must be at least 2
// so that every point has at least one edge.
func NewRaster(rows, cols int, spacing float64) (*Grid, error) {
	if rows < 2 || cols < 2 {
		return nil, simerr.Configurationf("raster shape must be at least 2x2, got %dx%d", rows, cols)
	}

	if !(spacing > 0) || math.IsInf(spacing, 1) {
		return nil, simerr.Configurationf("raster spacing must be positive and finite, got %g", spacing)
	}

	g := &Grid{
		rows:    rows,
		cols:    cols,
		spacing: spacing,
		edges:   make([][2]int, 0, rows*(cols-1)+(rows-1)*cols),
		status:  make([]Status, rows*cols),
		fields:  make(map[fieldKey]*field),
	}

	for r := range rows {
		for c := range cols - 1 {
			p := r*cols + c
			g.edges = append(g.edges, [2]int{p, p + 1})
		}
	}

	for r := range rows - 1 {
		for c := range cols {
			p := r*cols + c
			g.edges = append(g.edges, [2]int{p, p + cols})
		}
	}

	return g, nil
}

// Shape returns the number of rows and columns.
func (g *Grid) Shape() (rows, cols int) {
	return g.rows, g.cols
}

// Spacing returns the distance between neighbouring points.
func (g *Grid) Spacing() float64 {
	return g.spacing
}

// NumPoints returns the number of points.
func (g *Grid) NumPoints() int {
	return g.rows * g.cols
}

// NumEdges returns the number of edges.
func (g *Grid) NumEdges() int {
	return len(g.edges)
}

// Size returns the number of values a field attached at site holds.
func (g *Grid) Size(site Site) int {
	switch site {
	case Point:
		return g.NumPoints()
	case Edge:
		return g.NumEdges()
	default:
		return 1
	}
}

// EdgePoints returns the tail and head point of edge e.
func (g *Grid) EdgePoints(e int) (tail, head int) {
	return g.edges[e][0], g.edges[e][1]
}

// Status returns the status of point p.
func (g *Grid) Status(p int) Status {
	return g.status[p]
}

// SetStatus changes the status of point p.
func (g *Grid) SetStatus(p int, s Status) {
	g.status[p] = s
}

// SetFixedValueSides marks every point on the named sides as FixedValue.
// Valid sides are "bottom", "top", "left" and "right". Closed points stay closed.
func (g *Grid) SetFixedValueSides(sides ...string) error {
	for _, side := range sides {
		var points []int

		switch side {
		case "bottom":
			points = g.rowPoints(0)
		case "top":
			points = g.rowPoints(g.rows - 1)
		case "left":
			points = g.columnPoints(0)
		case "right":
			points = g.columnPoints(g.cols - 1)
		default:
			return simerr.Configurationf("unknown boundary side %q", side)
		}

		for _, p := range points {
			if g.status[p] != Closed {
				g.status[p] = FixedValue
			}
		}
	}

	return nil
}

func (g *Grid) rowPoints(r int) []int {
	points := make([]int, g.cols)
	for c := range points {
		points[c] = r*g.cols + c
	}

	return points
}

func (g *Grid) columnPoints(c int) []int {
	points := make([]int, g.rows)
	for r := range points {
		points[r] = r*g.cols + c
	}

	return points
}
