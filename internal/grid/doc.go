// Package grid holds the raster topology of a simulation and the spatial
// fields attached to it.
//
// Fields live at points (raster nodes), edges (links between neighbouring
// points) or the whole domain. Every field has exactly one writer, named when
// the field is added; other process models only read it.
package grid
