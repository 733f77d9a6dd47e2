// Package simerr defines the error taxonomy shared by the simulation packages.
//
// Configuration problems wrap ErrConfiguration and are reported while a model
// is being built. Failures inside the stepping loop wrap ErrDomain and reach
// the caller of an advance as a *StepError.
package simerr
