// Package solver holds the process models that stand in for the external
// overland flow and soil infiltration solvers.
//
// They honour the call contract of a coupled process (stable timestep,
// advance by dt, single writer per field) with deliberately simple physics:
// the flow model is a per-point reservoir with a shallow-water CFL limit and
// the infiltration model is a capacity-limited sink.
package solver
