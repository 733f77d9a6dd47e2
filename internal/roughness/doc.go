// Package roughness computes a depth-dependent Manning's n.
//
// Shallow flow through vegetation sees more drag than deep flow. Below an
// index depth the coefficient grows as a power of relative depth; above it
// the coefficient is the landscape minimum.
package roughness
