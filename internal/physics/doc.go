// Package physics provides the two-tank hybrid automaton.
//
// [TwoTank] implements [dynamo.System] for the continuous dynamics and
// carries a discrete [Mode] that selects which rate law applies:
//
//   - [ModeNormal]: constant inflow into tank 1, linear valve flow to tank 2
//   - [ModeValveStuck]: same inflow, valve passes nothing
//
// The mode only changes through [TwoTank.SetMode]; it never switches on its
// own. TwoTank also implements [dynamo.Configurable] for parameter access.
package physics
