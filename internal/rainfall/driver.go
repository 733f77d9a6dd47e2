package rainfall

import (
	"math"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

const (
	// Name identifies the driver as the writer of RateField.
	Name = "rainfall"
	// RateField is the domain field holding the current rain rate (m/s).
	RateField = "rain_rate"
)

// Driver samples a Signal into the rain_rate domain field.
type Driver struct {
	signal Signal
	time   float64
	rate   []float64
}

// NewDriver attaches rain_rate to g and samples signal at start.
func NewDriver(g *grid.Grid, signal Signal, start float64) (*Driver, error) {
	rate, err := g.Add(RateField, grid.Domain, Name, 0)
	if err != nil {
		return nil, err
	}

	d := &Driver{signal: signal, rate: rate}
	if err = d.Update(start); err != nil {
		return nil, err
	}

	return d, nil
}

// Name implements the process model contract.
func (d *Driver) Name() string { return Name }

// Time returns the time of the last sample.
func (d *Driver) Time() float64 { return d.time }

// Rate returns the last sampled rate.
func (d *Driver) Rate() float64 { return d.rate[0] }

// StableTimestep is unbounded: the driver only samples its signal.
func (d *Driver) StableTimestep() (float64, error) { return math.Inf(1), nil }

// Advance samples the signal dt after the previous sample.
func (d *Driver) Advance(dt float64) error {
	return d.Update(d.time + dt)
}

// Update samples the signal at t and writes the rain_rate field.
// A failed sample leaves time and field unchanged.
func (d *Driver) Update(t float64) error {
	v, err := d.signal.ValueAt(t)
	if err != nil {
		return err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return simerr.Domainf("rain signal is not finite at t=%g", t)
	}

	d.time = t
	d.rate[0] = v

	return nil
}
