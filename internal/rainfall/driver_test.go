package rainfall

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

func newTestGrid(t *testing.T) *grid.Grid {
	t.Helper()

	g, err := grid.NewRaster(3, 3, 1)
	require.NoError(t, err)

	return g
}

// TestDriverSamplesSignal checks the domain field follows the signal.
func TestDriverSamplesSignal(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t)
	series, err := NewTabulated([]float64{0, 100}, []float64{0, 10}, Linear)
	require.NoError(t, err)

	d, err := NewDriver(g, series, 10)
	require.NoError(t, err)
	require.Equal(t, Name, d.Name())

	owner, err := g.Owner(RateField, grid.Domain)
	require.NoError(t, err)
	require.Equal(t, Name, owner)
	require.InDelta(t, 1, d.Rate(), 1e-12)

	require.NoError(t, d.Advance(40))
	require.Equal(t, 50.0, d.Time())

	field, err := g.Field(RateField, grid.Domain)
	require.NoError(t, err)
	require.InDelta(t, 5, field[0], 1e-12)

	dt, err := d.StableTimestep()
	require.NoError(t, err)
	require.True(t, math.IsInf(dt, 1))
}

// TestDriverFailedSample keeps the previous state on error.
func TestDriverFailedSample(t *testing.T) {
	t.Parallel()

	g := newTestGrid(t)
	series, err := NewTabulated([]float64{0, 100}, []float64{2, 2}, Linear)
	require.NoError(t, err)

	d, err := NewDriver(g, series, 0)
	require.NoError(t, err)

	require.ErrorIs(t, d.Advance(200), simerr.ErrDomain)
	require.Equal(t, 0.0, d.Time())
	require.Equal(t, 2.0, d.Rate())

	_, err = NewDriver(g, series, 0)
	require.ErrorIs(t, err, grid.ErrFieldExists)
}
