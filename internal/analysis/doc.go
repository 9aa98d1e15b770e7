// Package analysis inspects recorded trajectories.
//
// [NewPhasePortrait] projects a trajectory onto the (h1, h2) plane and
// [PhasePortrait.ASCII] renders it for the terminal, marking samples taken
// after the valve fault. [Compare] measures how far two trajectories on
// the same time grid drift apart, which is how the CLI reports Euler error
// against RK4.
package analysis
