// Package coupling advances the coupled rainfall, roughness, flow and
// infiltration models over an outer step by sub-stepping at the flow model's
// stable timestep.
package coupling

import "github.com/oshokin/overlandflow/internal/grid"

// Process is a model the coupler advances.
type Process interface {
	// Name identifies the process; it is also the owner of its output fields.
	Name() string
	// StableTimestep returns the largest dt the process can advance by.
	StableTimestep() (float64, error)
	// Advance moves the process forward by dt, updating its output fields in place.
	Advance(dt float64) error
}

// FlowModel is the process whose stable timestep drives sub-stepping.
type FlowModel interface {
	Process
	// SetRainfallIntensity sets the rain rate used by the next advance.
	SetRainfallIntensity(rate float64)
}

// RainDriver samples rainfall into the rain_rate domain field.
type RainDriver interface {
	Process
	// Update samples the rain signal at simulation time t.
	Update(t float64) error
}

// RoughnessModel recomputes point roughness and maps it onto edges.
type RoughnessModel interface {
	Process
	MapToEdges(rule grid.Rule) error
}

// Observer is notified of coupler progress.
type Observer interface {
	// ObserveSubStep is called after every completed sub-step.
	// clamped reports that dt was cut to land on the outer step target.
	ObserveSubStep(t, dt float64, clamped bool)
	// ObserveAdvance is called when an outer step completes.
	ObserveAdvance(t float64, subSteps int)
}

// Models groups the processes advanced by a Coupler.
type Models struct {
	Rain         RainDriver
	Roughness    RoughnessModel
	Flow         FlowModel
	Infiltration Process
}
