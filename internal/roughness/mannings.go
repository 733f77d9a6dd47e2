package roughness

import (
	"math"

	"github.com/oshokin/overlandflow/internal/simerr"
)

// Default parameters for grassland after Chow (1959).
const (
	DefaultMin           = 0.06
	DefaultIndexDepth    = 0.003
	DefaultExponent      = -1.0 / 3.0
	DefaultMinDepthRatio = 1e-6
)

// Params configures the depth-dependent coefficient.
type Params struct {
	// Min is the Manning's n reached at and above IndexDepth (s m^-1/3).
	Min float64
	// IndexDepth is the flow depth above which n stays at Min (m).
	IndexDepth float64
	// Exponent applies to depth/IndexDepth below the index depth.
	// Negative values model vegetation drag increasing in shallow flow.
	Exponent float64
	// MinDepthRatio floors depth/IndexDepth so that dry or invalid points
	// produce a finite coefficient. Must lie in (0, 1].
	MinDepthRatio float64
}

// DefaultParams returns the grassland defaults.
func DefaultParams() Params {
	return Params{
		Min:           DefaultMin,
		IndexDepth:    DefaultIndexDepth,
		Exponent:      DefaultExponent,
		MinDepthRatio: DefaultMinDepthRatio,
	}
}

// Validate reports parameters that cannot produce a finite coefficient.
func (p Params) Validate() error {
	switch {
	case !(p.Min > 0) || math.IsInf(p.Min, 1):
		return simerr.Configurationf("min_mannings_n must be positive and finite, got %g", p.Min)
	case !(p.IndexDepth > 0) || math.IsInf(p.IndexDepth, 1):
		return simerr.Configurationf("index_flow_depth must be positive and finite, got %g", p.IndexDepth)
	case math.IsNaN(p.Exponent) || math.IsInf(p.Exponent, 0):
		return simerr.Configurationf("veg_drag_exponent must be finite, got %g", p.Exponent)
	case !(p.MinDepthRatio > 0) || p.MinDepthRatio > 1:
		return simerr.Configurationf("min_depth_ratio must lie in (0, 1], got %g", p.MinDepthRatio)
	}

	// Every coefficient lies between Min and Max, so a finite positive Max
	// keeps all of them finite and positive.
	if n := p.Max(); !(n > 0) || math.IsInf(n, 1) {
		return simerr.Configurationf("veg_drag_exponent %g with min_depth_ratio %g gives a saturated coefficient of %g",
			p.Exponent, p.MinDepthRatio, n)
	}

	return nil
}

// Max returns the saturated coefficient, the value used for dry points.
// It is the largest coefficient for a negative exponent and the smallest
// for a positive one.
func (p Params) Max() float64 {
	return p.Min * math.Pow(p.MinDepthRatio, p.Exponent)
}

// At returns the coefficient for a single depth.
func (p Params) At(depth float64) float64 {
	if depth > p.IndexDepth {
		return p.Min
	}

	return p.Min * math.Pow(p.relativeDepth(depth), p.Exponent)
}

// relativeDepth returns depth/IndexDepth floored at MinDepthRatio.
// Zero, negative and NaN depths saturate at the floor.
func (p Params) relativeDepth(depth float64) float64 {
	if !(depth > 0) {
		return p.MinDepthRatio
	}

	return math.Max(depth/p.IndexDepth, p.MinDepthRatio)
}

// ManningsN writes the coefficient for every depth into dst and returns it.
// dst is reused when cap(dst) >= len(depth) and allocated otherwise.
// Parameters are expected to have passed Validate.
func ManningsN(dst, depth []float64, p Params) []float64 {
	if cap(dst) >= len(depth) {
		dst = dst[:len(depth)]
	} else {
		dst = make([]float64, len(depth))
	}

	for i, h := range depth {
		dst[i] = p.At(h)
	}

	return dst
}
