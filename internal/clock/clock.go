// Package clock tracks simulation time against a requested stop time.
package clock

import (
	"math"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Clock holds the current simulation time, the outer step size and the stop time.
// Time never exceeds Stop.
type Clock struct {
	time, step, stop float64
}

// New creates a clock at start. step must be positive and stop must not precede start.
func New(start, stop, step float64) (*Clock, error) {
	for name, v := range map[string]float64{"start": start, "stop": stop, "step": step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, simerr.Configurationf("clock %s must be finite, got %g", name, v)
		}
	}

	if step <= 0 {
		return nil, simerr.Configurationf("clock step must be positive, got %g", step)
	}

	if stop < start {
		return nil, simerr.Configurationf("clock stop %g precedes start %g", stop, start)
	}

	return &Clock{time: start, step: step, stop: stop}, nil
}

// Time returns the current simulation time.
func (c *Clock) Time() float64 { return c.time }

// Step returns the outer step size.
func (c *Clock) Step() float64 { return c.step }

// Stop returns the stop time.
func (c *Clock) Stop() float64 { return c.stop }

// Remaining returns the time left before Stop.
func (c *Clock) Remaining() float64 { return c.stop - c.time }

// Done reports whether the run is complete.
func (c *Clock) Done() bool { return c.time >= c.stop }

// NextStep returns the size of the next outer step: the configured step,
// shortened to the remaining time on the last step.
func (c *Clock) NextStep() float64 {
	return math.Min(c.step, c.Remaining())
}

// AdvanceTo moves the clock to t. Moving backwards or past Stop is an error
// and leaves the clock unchanged.
func (c *Clock) AdvanceTo(t float64) error {
	switch {
	case math.IsNaN(t):
		return simerr.Domainf("clock cannot advance to NaN")
	case t < c.time:
		return simerr.Domainf("clock cannot move back from %g to %g", c.time, t)
	case t > c.stop:
		return simerr.Domainf("clock cannot advance to %g past stop %g", t, c.stop)
	}

	c.time = t

	return nil
}
