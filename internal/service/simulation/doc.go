// Package simulation assembles the coupled rainfall, roughness, overland flow
// and infiltration model from resolved parameters and runs it to the clock's
// stop time, writing NetCDF output, checkpoints and metrics along the way.
package simulation
