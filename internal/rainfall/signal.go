package rainfall

import (
	"math"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Signal returns a scalar value at a simulation time.
type Signal interface {
	ValueAt(t float64) (float64, error)
}

// DefaultSteepness is the logistic steepness used when none is configured (1/s).
const DefaultSteepness = 0.5

// SmoothedStep is a rectangular pulse of Magnitude from Start to Start+Duration
// with logistic edges of steepness k:
//
//	v(t) = Magnitude * (σ(t - Start) - σ(t - Start - Duration)),  σ(x) = 1 / (1 + exp(-2kx))
//
// At the pulse midpoint |v - Magnitude| <= 2|Magnitude|·exp(-k·Duration).
type SmoothedStep struct {
	Start     float64
	Duration  float64
	Magnitude float64
	Steepness float64
}

// Validate reports a pulse that cannot be evaluated.
func (s SmoothedStep) Validate() error {
	for name, v := range map[string]float64{"start": s.Start, "duration": s.Duration, "magnitude": s.Magnitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return simerr.Configurationf("rain pulse %s must be finite, got %g", name, v)
		}
	}

	if s.Duration < 0 {
		return simerr.Configurationf("rain pulse duration must not be negative, got %g", s.Duration)
	}

	if !(s.Steepness > 0) || math.IsInf(s.Steepness, 1) {
		return simerr.Configurationf("rain pulse steepness must be positive and finite, got %g", s.Steepness)
	}

	return nil
}

// ValueAt returns the pulse value at t. It never fails.
func (s SmoothedStep) ValueAt(t float64) (float64, error) {
	return s.Magnitude * (Sigmoid(t-s.Start, s.Steepness) - Sigmoid(t-s.Start-s.Duration, s.Steepness)), nil
}

// Sigmoid is the logistic step 1/(1+exp(-2kx)). The exponential is only ever
// taken of a non-positive argument, so large |x| saturates to 0 or 1 instead
// of overflowing.
func Sigmoid(x, k float64) float64 {
	z := 2 * k * x
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}

	e := math.Exp(z)

	return e / (1 + e)
}
