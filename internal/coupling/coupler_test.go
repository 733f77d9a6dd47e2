package coupling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/overlandflow/internal/clock"
	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/rainfall"
	"github.com/oshokin/overlandflow/internal/simerr"
)

type signalFunc func(t float64) (float64, error)

func (f signalFunc) ValueAt(t float64) (float64, error) { return f(t) }

// scriptedFlow returns stable timesteps from a script, cycling when exhausted.
type scriptedFlow struct {
	script []float64
	calls  int
	log    *[]string
	dts    []float64
	rain   []float64
}

func (f *scriptedFlow) Name() string { return "flow" }

func (f *scriptedFlow) StableTimestep() (float64, error) {
	dt := f.script[f.calls%len(f.script)]
	f.calls++

	return dt, nil
}

func (f *scriptedFlow) SetRainfallIntensity(rate float64) {
	f.rain = append(f.rain, rate)
	f.record(fmt.Sprintf("flow.rain=%g", rate))
}

func (f *scriptedFlow) Advance(dt float64) error {
	f.dts = append(f.dts, dt)
	f.record("flow.advance")

	return nil
}

func (f *scriptedFlow) record(entry string) {
	if f.log != nil {
		*f.log = append(*f.log, entry)
	}
}

// recordingProcess logs calls and fails on the failAt-th advance (1-based).
type recordingProcess struct {
	name   string
	log    *[]string
	calls  int
	failAt int
}

func (p *recordingProcess) Name() string { return p.name }

func (p *recordingProcess) StableTimestep() (float64, error) { return math.Inf(1), nil }

func (p *recordingProcess) Advance(float64) error {
	p.calls++
	p.record(p.name + ".advance")

	if p.calls == p.failAt {
		return simerr.Domainf("%s failed", p.name)
	}

	return nil
}

func (p *recordingProcess) MapToEdges(rule grid.Rule) error {
	p.record(p.name + ".edges=" + rule.String())

	return nil
}

func (p *recordingProcess) record(entry string) {
	if p.log != nil {
		*p.log = append(*p.log, entry)
	}
}

type countingObserver struct {
	subSteps, clamped, advances int
	last                        float64
}

func (o *countingObserver) ObserveSubStep(t, _ float64, clamped bool) {
	o.subSteps++
	o.last = t

	if clamped {
		o.clamped++
	}
}

func (o *countingObserver) ObserveAdvance(float64, int) {
	o.advances++
}

type fixture struct {
	coupler      *Coupler
	clock        *clock.Clock
	flow         *scriptedFlow
	roughness    *recordingProcess
	infiltration *recordingProcess
	observer     *countingObserver
	log          *[]string
}

func newFixture(t *testing.T, start float64, script []float64, signal rainfall.Signal) fixture {
	t.Helper()

	g, err := grid.NewRaster(2, 2, 1)
	require.NoError(t, err)

	clk, err := clock.New(start, start+1e9, 1)
	require.NoError(t, err)

	if signal == nil {
		signal = signalFunc(func(t float64) (float64, error) { return t, nil })
	}

	rain, err := rainfall.NewDriver(g, signal, start)
	require.NoError(t, err)

	log := new([]string)
	flow := &scriptedFlow{script: script, log: log}
	roughness := &recordingProcess{name: "roughness", log: log}
	infiltration := &recordingProcess{name: "infiltration", log: log}
	observer := new(countingObserver)

	c, err := New(clk, g, Models{Rain: rain, Roughness: roughness, Flow: flow, Infiltration: infiltration},
		WithObserver(observer))
	require.NoError(t, err)

	return fixture{
		coupler:      c,
		clock:        clk,
		flow:         flow,
		roughness:    roughness,
		infiltration: infiltration,
		observer:     observer,
		log:          log,
	}
}

// TestAdvanceLandsExactlyOnTarget checks exact arrival for scripted timesteps.
func TestAdvanceLandsExactlyOnTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		start    float64
		duration float64
		script   []float64
		subSteps int
	}{
		{"stable larger than duration", 0, 2, []float64{10}, 1},
		{"even division", 0, 2, []float64{0.5}, 4},
		{"uneven division", 0, 2, []float64{0.3}, 7},
		{"tenths", 0.1, 0.7, []float64{0.1}, 7},
		{"varying", 3600, 3600, []float64{1000, 7, 2500.5, 0.01}, 5},
		{"thirds", 1.0 / 3, 1, []float64{1.0 / 3}, 3},
	}

	for _, tc := range cases {
		f := newFixture(t, tc.start, tc.script, nil)

		require.NoError(t, f.coupler.Advance(context.Background(), tc.duration), tc.name)
		require.Equal(t, tc.start+tc.duration, f.clock.Time(), tc.name)
		require.Equal(t, tc.subSteps, f.coupler.SubSteps(), tc.name)
		require.Equal(t, Advancing, f.coupler.State())
		require.Equal(t, 1, f.observer.advances)
		require.Equal(t, 1, f.observer.clamped, tc.name)
		require.Len(t, f.flow.dts, tc.subSteps)
	}
}

// TestAdvanceRandomScripts checks exact arrival for random timestep sequences.
func TestAdvanceRandomScripts(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		start := rng.Float64() * 1e4
		duration := 1e-3 + rng.Float64()*100

		script := make([]float64, 1+rng.IntN(8))
		for i := range script {
			script[i] = duration * (0.01 + rng.Float64()*1.5)
		}

		f := newFixture(t, start, script, nil)

		require.NoError(t, f.coupler.Advance(context.Background(), duration))
		require.Equal(t, start+duration, f.clock.Time())

		for i, dt := range f.flow.dts {
			require.Greater(t, dt, 0.0)
			require.LessOrEqual(t, dt, script[i%len(script)])
		}

		// Successive advances keep landing on their targets.
		require.NoError(t, f.coupler.Advance(context.Background(), duration))
		require.Equal(t, start+duration+duration, f.clock.Time())
	}
}

// TestAdvanceOrder checks the operator-splitting order of one sub-step.
func TestAdvanceOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, []float64{1.5}, nil)

	require.NoError(t, f.coupler.Advance(context.Background(), 2))

	require.Equal(t, []string{
		"flow.rain=1.5",
		"roughness.advance",
		"roughness.edges=minimum",
		"flow.advance",
		"infiltration.advance",
		"flow.rain=2",
		"roughness.advance",
		"roughness.edges=minimum",
		"flow.advance",
		"infiltration.advance",
	}, *f.log)
	require.Equal(t, []float64{1.5, 0.5}, f.flow.dts)
	require.Equal(t, 2, f.observer.subSteps)
	require.Equal(t, 2.0, f.observer.last)
}

// TestAdvanceStableTimestepFailure checks a bad timestep aborts with partial progress kept.
func TestAdvanceStableTimestepFailure(t *testing.T) {
	t.Parallel()

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		f := newFixture(t, 10, []float64{1, 1, bad}, nil)

		err := f.coupler.Advance(context.Background(), 5)
		require.ErrorIs(t, err, simerr.ErrDomain)

		var stepErr *simerr.StepError
		require.ErrorAs(t, err, &stepErr)
		require.Equal(t, "flow", stepErr.Process)
		require.Equal(t, 2, stepErr.Step)
		require.Equal(t, 12.0, stepErr.Time)
		require.Equal(t, 12.0, f.clock.Time())
	}
}

// TestAdvanceProcessFailure checks a failing process aborts the advance.
func TestAdvanceProcessFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, []float64{0.25}, nil)
	f.infiltration.failAt = 3

	err := f.coupler.Advance(context.Background(), 1)
	require.ErrorIs(t, err, simerr.ErrDomain)

	var stepErr *simerr.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "infiltration", stepErr.Process)
	require.Equal(t, 2, stepErr.Step)
	require.Equal(t, 0.5, f.clock.Time())
	require.Equal(t, 2, f.coupler.SubSteps())
	require.Zero(t, f.observer.advances)
}

// TestAdvanceRainOutOfRange checks a failing rain sample is reported by the driver name.
func TestAdvanceRainOutOfRange(t *testing.T) {
	t.Parallel()

	series, err := rainfall.NewTabulated([]float64{0, 1}, []float64{0, 1}, rainfall.Linear)
	require.NoError(t, err)

	f := newFixture(t, 0, []float64{0.75}, series)

	err = f.coupler.Advance(context.Background(), 3)
	require.ErrorIs(t, err, simerr.ErrDomain)

	var stepErr *simerr.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, rainfall.Name, stepErr.Process)
	require.Equal(t, 0.75, f.clock.Time())
}

// TestAdvanceInvalidRequests checks rejected durations leave the coupler idle.
func TestAdvanceInvalidRequests(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, []float64{1}, nil)

	for _, d := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		require.ErrorIs(t, f.coupler.Advance(context.Background(), d), simerr.ErrConfiguration)
	}

	require.ErrorIs(t, f.coupler.Advance(context.Background(), 2e9), simerr.ErrDomain)
	require.Equal(t, Idle, f.coupler.State())
	require.Zero(t, f.clock.Time())
	require.Empty(t, *f.log)
}

// TestAdvanceCancelled checks cancellation is observed between sub-steps.
func TestAdvanceCancelled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, []float64{1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.coupler.Advance(ctx, 3)
	require.True(t, errors.Is(err, context.Canceled))
	require.Zero(t, f.clock.Time())
}

// TestAdvanceRunsToClockStop checks the outer loop ends exactly on the stop.
func TestAdvanceRunsToClockStop(t *testing.T) {
	t.Parallel()

	g, err := grid.NewRaster(2, 2, 1)
	require.NoError(t, err)

	clk, err := clock.New(0.1, 0.3, 0.1)
	require.NoError(t, err)

	rain, err := rainfall.NewDriver(g, rainfall.SmoothedStep{Steepness: rainfall.DefaultSteepness}, 0.1)
	require.NoError(t, err)

	c, err := New(clk, g, Models{
		Rain:         rain,
		Roughness:    &recordingProcess{name: "roughness"},
		Flow:         &scriptedFlow{script: []float64{0.03}},
		Infiltration: &recordingProcess{name: "infiltration"},
	})
	require.NoError(t, err)

	for !clk.Done() {
		require.NoError(t, c.Advance(context.Background(), clk.NextStep()))
	}

	require.Equal(t, 0.3, clk.Time())
}

// TestNewValidates checks missing collaborators are configuration errors.
func TestNewValidates(t *testing.T) {
	t.Parallel()

	g, err := grid.NewRaster(2, 2, 1)
	require.NoError(t, err)

	clk, err := clock.New(0, 1, 1)
	require.NoError(t, err)

	models := Models{
		Roughness:    &recordingProcess{name: "roughness"},
		Flow:         &scriptedFlow{script: []float64{1}},
		Infiltration: &recordingProcess{name: "infiltration"},
	}

	_, err = New(clk, g, models)
	require.ErrorIs(t, err, simerr.ErrConfiguration)

	models.Rain, err = rainfall.NewDriver(g, rainfall.SmoothedStep{Steepness: 1}, 0)
	require.NoError(t, err)

	_, err = New(nil, g, models)
	require.ErrorIs(t, err, simerr.ErrConfiguration)

	other, err := grid.NewRaster(2, 2, 1)
	require.NoError(t, err)

	_, err = New(clk, other, models)
	require.ErrorIs(t, err, grid.ErrFieldNotFound)
}
