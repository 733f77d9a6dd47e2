package rainfall

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// TestSmoothedStepMidpoint checks the pulse reaches its magnitude mid-storm.
func TestSmoothedStepMidpoint(t *testing.T) {
	t.Parallel()

	cases := []SmoothedStep{
		{Start: 3600, Duration: 3600, Magnitude: 60e-3 / 3600, Steepness: DefaultSteepness},
		{Start: 0, Duration: 20, Magnitude: 1, Steepness: 0.25},
		{Start: -50, Duration: 100, Magnitude: -2, Steepness: 1},
	}

	for _, step := range cases {
		v, err := step.ValueAt(step.Start + step.Duration/2)
		require.NoError(t, err)

		bound := 2 * math.Abs(step.Magnitude) * math.Exp(-step.Steepness*step.Duration)
		require.LessOrEqual(t, math.Abs(v-step.Magnitude), bound+1e-15)
	}
}

// TestSmoothedStepStorm walks through the hour-long storm scenario.
func TestSmoothedStepStorm(t *testing.T) {
	t.Parallel()

	magnitude := 60e-3 / 3600
	step := SmoothedStep{Start: 3600, Duration: 3600, Magnitude: magnitude, Steepness: DefaultSteepness}

	before, err := step.ValueAt(0)
	require.NoError(t, err)
	require.InDelta(t, 0, before, 1e-30)

	edge, err := step.ValueAt(3600)
	require.NoError(t, err)
	require.InDelta(t, magnitude/2, edge, magnitude*1e-9)

	middle, err := step.ValueAt(5400)
	require.NoError(t, err)
	require.InDelta(t, magnitude, middle, magnitude*1e-12)

	after, err := step.ValueAt(7200 + 600)
	require.NoError(t, err)
	require.InDelta(t, 0, after, 1e-30)
}

// TestSmoothedStepExtremeTimes checks no overflow far from the pulse.
func TestSmoothedStepExtremeTimes(t *testing.T) {
	t.Parallel()

	step := SmoothedStep{Start: 0, Duration: 10, Magnitude: 3, Steepness: 50}

	for _, at := range []float64{-1e300, -1e9, 1e9, 1e300} {
		v, err := step.ValueAt(at)
		require.NoError(t, err)
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "t=%g", at)
		require.Zero(t, v)
	}
}

// TestSigmoid checks symmetry and saturation.
func TestSigmoid(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0.5, Sigmoid(0, 0.5))
	require.Equal(t, 1.0, Sigmoid(1e6, 0.5))
	require.Equal(t, 0.0, Sigmoid(-1e6, 0.5))

	for _, x := range []float64{0.1, 1, 3, 7.5} {
		require.InDelta(t, 1, Sigmoid(x, 0.5)+Sigmoid(-x, 0.5), 1e-15)
	}
}

// TestSmoothedStepValidate rejects unusable parameters.
func TestSmoothedStepValidate(t *testing.T) {
	t.Parallel()

	valid := SmoothedStep{Start: 0, Duration: 10, Magnitude: 1, Steepness: DefaultSteepness}
	require.NoError(t, valid.Validate())

	invalid := []SmoothedStep{
		{Start: math.NaN(), Duration: 10, Magnitude: 1, Steepness: 1},
		{Start: 0, Duration: -1, Magnitude: 1, Steepness: 1},
		{Start: 0, Duration: 10, Magnitude: math.Inf(1), Steepness: 1},
		{Start: 0, Duration: 10, Magnitude: 1, Steepness: 0},
	}

	for _, step := range invalid {
		require.ErrorIs(t, step.Validate(), simerr.ErrConfiguration)
	}
}
