package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an invalid parameter, override or grid definition.
	ErrConfiguration = errors.New("configuration error")
	// ErrDomain marks a state a process model or signal cannot handle,
	// such as an undefined stable timestep or a query outside tabulated data.
	ErrDomain = errors.New("domain error")
)

// Configurationf returns a formatted error wrapping ErrConfiguration.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Domainf returns a formatted error wrapping ErrDomain.
func Domainf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomain, fmt.Sprintf(format, args...))
}

// StepError reports the sub-step that aborted an advance.
type StepError struct {
	// Process is the name of the process model that failed, if any.
	Process string
	// Step is the zero-based index of the failed sub-step within the advance.
	Step int
	// Time is the simulation time of the last completed sub-step.
	Time float64
	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *StepError) Error() string {
	if e.Process == "" {
		return fmt.Sprintf("sub-step %d at t=%g: %v", e.Step, e.Time, e.Err)
	}

	return fmt.Sprintf("sub-step %d at t=%g: %s: %v", e.Step, e.Time, e.Process, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}
