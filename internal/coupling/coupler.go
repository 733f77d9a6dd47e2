package coupling

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/overlandflow/internal/clock"
	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/logger"
	"github.com/oshokin/overlandflow/internal/rainfall"
	"github.com/oshokin/overlandflow/internal/simerr"
)

// State of a Coupler.
type State uint8

const (
	// Idle means no advance has started yet.
	Idle State = iota
	// Advancing means at least one advance has started.
	Advancing
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Advancing {
		return "advancing"
	}

	return "idle"
}

// snapTolerance is the relative distance to a target below which a sub-step
// end is treated as the target itself.
const snapTolerance = 1e-12

// Coupler runs the operator-splitting loop.
//
// Each sub-step, in order: take dt from the flow model's stable timestep,
// clamped so the outer step is never overshot; sample rain at the end of the
// sub-step and hand it to the flow model; recompute point roughness from the
// current depth; reduce it onto edges with the minimum rule; advance the flow
// and then the infiltration model by dt; move the clock.
type Coupler struct {
	// clock holds the simulation time of the last completed sub-step.
	clock *clock.Clock
	// rain is the rain_rate domain field written by the rain driver.
	rain []float64
	// models are the coupled processes.
	models Models
	// observer receives progress, if set.
	observer Observer
	// progress throttles sub-step debug logging.
	progress rate.Sometimes

	state    State
	subSteps int
}

// Option configures a Coupler.
type Option func(*Coupler)

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(c *Coupler) {
		c.observer = o
	}
}

// WithProgressInterval sets the minimum interval between sub-step debug logs.
func WithProgressInterval(interval time.Duration) Option {
	return func(c *Coupler) {
		if interval > 0 {
			c.progress = rate.Sometimes{First: 1, Interval: interval}
		}
	}
}

// New builds a Coupler for the models sharing g. The rain driver must already
// have attached the rain_rate field.
func New(clk *clock.Clock, g *grid.Grid, models Models, opts ...Option) (*Coupler, error) {
	if clk == nil || g == nil {
		return nil, simerr.Configurationf("coupler needs a clock and a grid")
	}

	if models.Rain == nil || models.Roughness == nil || models.Flow == nil || models.Infiltration == nil {
		return nil, simerr.Configurationf("coupler needs rain, roughness, flow and infiltration models")
	}

	rain, err := g.Field(rainfall.RateField, grid.Domain)
	if err != nil {
		return nil, err
	}

	c := &Coupler{
		clock:    clk,
		rain:     rain,
		models:   models,
		progress: rate.Sometimes{First: 1, Interval: time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// State returns the coupler state.
func (c *Coupler) State() State { return c.state }

// SubSteps returns the number of sub-steps completed so far.
func (c *Coupler) SubSteps() int { return c.subSteps }

// Clock returns the simulation clock.
func (c *Coupler) Clock() *clock.Clock { return c.clock }

// Advance moves the coupled models forward by duration. On success the clock
// reads exactly start+duration (or the clock stop, when that sum lands within
// rounding of it). On failure the clock holds the time of the last completed
// sub-step and fields keep whatever the failed sub-step had written.
//
// The context is checked before every sub-step, never during one.
func (c *Coupler) Advance(ctx context.Context, duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 1) {
		return simerr.Configurationf("advance duration must be positive and finite, got %g", duration)
	}

	start := c.clock.Time()
	target := start + duration

	if stop := c.clock.Stop(); target > stop {
		if target-stop > snapTolerance*math.Max(1, math.Abs(stop)) {
			return simerr.Domainf("advance to t=%g passes the clock stop %g", target, stop)
		}

		target = stop
	}

	c.state = Advancing

	var (
		now     = start
		elapsed float64
		step    int
	)

	for ; now < target; step++ {
		if err := ctx.Err(); err != nil {
			return &simerr.StepError{Step: step, Time: now, Err: fmt.Errorf("advance cancelled: %w", err)}
		}

		stable, err := c.models.Flow.StableTimestep()
		if err != nil {
			return stepError(c.models.Flow, step, now, err)
		}

		if !(stable > 0) || math.IsInf(stable, 1) {
			return stepError(c.models.Flow, step, now, simerr.Domainf("stable timestep must be positive and finite, got %g", stable))
		}

		dt, clamped := stable, false
		if remaining := target - now; dt >= remaining {
			dt, clamped = remaining, true
		}

		next := start + (elapsed + dt)
		if clamped || next >= target || target-next <= snapTolerance*math.Max(1, math.Abs(target)) {
			next = target
		}

		if !(next > now) {
			return stepError(c.models.Flow, step, now, simerr.Domainf("sub-step of %g does not move time past %g", dt, now))
		}

		if err = c.subStep(step, now, next, dt); err != nil {
			return err
		}

		elapsed += dt
		now = next

		if err = c.clock.AdvanceTo(now); err != nil {
			return &simerr.StepError{Step: step, Time: c.clock.Time(), Err: err}
		}

		c.subSteps++

		if c.observer != nil {
			c.observer.ObserveSubStep(now, dt, clamped)
		}

		c.progress.Do(func() {
			logger.DebugKV(ctx, "Sub-step completed", "step", step, "time", now, "dt", dt, "clamped", clamped)
		})
	}

	if c.observer != nil {
		c.observer.ObserveAdvance(now, step)
	}

	return nil
}

// subStep runs one operator-splitting pass from now to next.
func (c *Coupler) subStep(step int, now, next, dt float64) error {
	m := c.models

	if err := m.Rain.Update(next); err != nil {
		return stepError(m.Rain, step, now, err)
	}

	m.Flow.SetRainfallIntensity(c.rain[0])

	if err := m.Roughness.Advance(dt); err != nil {
		return stepError(m.Roughness, step, now, err)
	}

	if err := m.Roughness.MapToEdges(grid.Minimum); err != nil {
		return stepError(m.Roughness, step, now, err)
	}

	for _, p := range []Process{m.Flow, m.Infiltration} {
		if err := p.Advance(dt); err != nil {
			return stepError(p, step, now, err)
		}
	}

	return nil
}

func stepError(p Process, step int, now float64, err error) error {
	return &simerr.StepError{Process: p.Name(), Step: step, Time: now, Err: err}
}
