// Package dynamo provides the simulation primitives shared by tanksim.
//
// The package defines the small vocabulary every other package builds on:
//
//   - [State]: vector of continuous state (tank heights)
//   - [System]: interface for ODE right-hand sides (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [Configurable]: runtime parameter access for a system
//
// # Errors
//
// Sentinel errors such as [ErrInvalidState] are wrapped with context by
// callers; use errors.Is to test for them. [SimulationError] carries the
// step and time at which a run failed.
//
// # Parallelism
//
// [ParallelFor] splits an index range over a bounded number of workers.
// Callers write results into pre-sized slices by index, so the combined
// output does not depend on scheduling.
package dynamo
