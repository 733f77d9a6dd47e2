package grid

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// TestFieldOwnership verifies that only the declared writer gets write access.
func TestFieldOwnership(t *testing.T) {
	t.Parallel()

	g, err := NewRaster(2, 2, 1)
	require.NoError(t, err)

	depth, err := g.Add("surface_water__depth", Point, "overland_flow", 0.001)
	require.NoError(t, err)
	require.Equal(t, []float64{0.001, 0.001, 0.001, 0.001}, depth)

	_, err = g.Add("surface_water__depth", Point, "other", 0)
	require.ErrorIs(t, err, ErrFieldExists)

	_, err = g.Writable("surface_water__depth", Point, "roughness")
	require.ErrorIs(t, err, ErrNotOwner)
	require.ErrorIs(t, err, simerr.ErrConfiguration)

	w, err := g.Writable("surface_water__depth", Point, "overland_flow")
	require.NoError(t, err)
	w[0] = 0.5

	read, err := g.Field("surface_water__depth", Point)
	require.NoError(t, err)
	require.InDelta(t, 0.5, read[0], 0)

	require.NoError(t, g.Set("surface_water__depth", Point, "overland_flow", []float64{1, 2, 3, 4}))
	require.Equal(t, []float64{1, 2, 3, 4}, read)
	require.ErrorIs(t, g.Set("surface_water__depth", Point, "overland_flow", []float64{1}), simerr.ErrConfiguration)

	owner, err := g.Owner("surface_water__depth", Point)
	require.NoError(t, err)
	require.Equal(t, "overland_flow", owner)

	_, err = g.Field("surface_water__depth", Edge)
	require.ErrorIs(t, err, ErrFieldNotFound)
}

// TestRefs lists fields by site and name.
func TestRefs(t *testing.T) {
	t.Parallel()

	g, err := NewRaster(2, 2, 1)
	require.NoError(t, err)

	for _, ref := range []Ref{{"rain_rate", Domain}, {"mannings_n", Edge}, {"mannings_n", Point}, {"depth", Point}} {
		_, err = g.Add(ref.Name, ref.Site, "test", 0)
		require.NoError(t, err)
	}

	want := []Ref{{"depth", Point}, {"mannings_n", Point}, {"mannings_n", Edge}, {"rain_rate", Domain}}
	require.Empty(t, cmp.Diff(want, g.Refs()))

	rain, err := g.Field("rain_rate", Domain)
	require.NoError(t, err)
	require.Len(t, rain, 1)
}

// TestParseRef covers plain names, site aliases and malformed references.
func TestParseRef(t *testing.T) {
	t.Parallel()

	ref, err := ParseRef("surface_water__depth")
	require.NoError(t, err)
	require.Equal(t, Ref{Name: "surface_water__depth", Site: Point}, ref)

	ref, err = ParseRef("mannings_n@link")
	require.NoError(t, err)
	require.Equal(t, Ref{Name: "mannings_n", Site: Edge}, ref)
	require.Equal(t, "mannings_n@edge", ref.String())

	_, err = ParseRef("@edge")
	require.ErrorIs(t, err, simerr.ErrConfiguration)

	_, err = ParseRef("x@cell")
	require.ErrorIs(t, err, simerr.ErrConfiguration)
}

// TestReduceEdgesFromPoints_Minimum checks the minimum-of-incident-points rule on random fields.
func TestReduceEdgesFromPoints_Minimum(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))

	g, err := NewRaster(7, 9, 1)
	require.NoError(t, err)

	n, err := g.Add("mannings_n", Point, "roughness", 0)
	require.NoError(t, err)

	for range 50 {
		for i := range n {
			n[i] = 0.01 + rng.Float64()
		}

		edges, err := g.ReduceEdgesFromPoints("mannings_n", Minimum, nil)
		require.NoError(t, err)
		require.Len(t, edges, g.NumEdges())

		for e, v := range edges {
			tail, head := g.EdgePoints(e)
			require.LessOrEqual(t, v, n[tail])
			require.LessOrEqual(t, v, n[head])
			require.Equal(t, math.Min(n[tail], n[head]), v)
		}
	}
}

// TestReduceEdgesFromPoints_Rules covers maximum, mean and buffer reuse.
func TestReduceEdgesFromPoints_Rules(t *testing.T) {
	t.Parallel()

	g, err := NewRaster(2, 2, 1)
	require.NoError(t, err)
	require.NoError(t, func() error {
		_, err := g.Add("h", Point, "flow", 0)
		return err
	}())
	require.NoError(t, g.Set("h", Point, "flow", []float64{1, 3, 5, 7}))

	// Edges: (0,1) (2,3) (0,2) (1,3).
	buf := make([]float64, 0, 8)

	got, err := g.ReduceEdgesFromPoints("h", Maximum, buf)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 7, 5, 7}, got)
	require.Same(t, &buf[:1][0], &got[0])

	got, err = g.ReduceEdgesFromPoints("h", Mean, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 6, 3, 5}, got)

	_, err = g.ReduceEdgesFromPoints("missing", Minimum, nil)
	require.ErrorIs(t, err, ErrFieldNotFound)

	stats, err := g.FieldStats("h", Point)
	require.NoError(t, err)
	require.Equal(t, Stats{Min: 1, Max: 7, Sum: 16}, stats)
}

// TestInitializeAndRestore checks assembly-time writes bypass ownership.
func TestInitializeAndRestore(t *testing.T) {
	t.Parallel()

	g, err := NewRaster(2, 2, 1)
	require.NoError(t, err)

	_, err = g.Add("h", Point, "flow", 0)
	require.NoError(t, err)

	require.NoError(t, g.Initialize("h", Point, 0.5))
	require.NoError(t, g.Initialize("soil", Point, 0.001))

	owner, err := g.Owner("soil", Point)
	require.NoError(t, err)
	require.Equal(t, InitialOwner, owner)

	require.NoError(t, g.Restore("h", Point, []float64{1, 2, 3, 4}))

	h, err := g.Field("h", Point)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, h)

	owner, err = g.Owner("h", Point)
	require.NoError(t, err)
	require.Equal(t, "flow", owner)

	require.ErrorIs(t, g.Restore("h", Point, []float64{1}), simerr.ErrConfiguration)
	require.ErrorIs(t, g.Restore("missing", Edge, nil), ErrFieldNotFound)
}
