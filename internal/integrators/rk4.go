package integrators

import "github.com/san-kum/tanksim/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta step. It is only used to
// measure how far the Euler trajectories drift; datasets never use it.
// An RK4 value reuses its stage buffer and must not be shared between
// goroutines.
type RK4 struct {
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

// offset writes x + h*k into the stage buffer.
func (r *RK4) offset(x, k dynamo.State, h float64) dynamo.State {
	if len(r.stage) != len(x) {
		r.stage = make(dynamo.State, len(x))
	}
	for i := range x {
		r.stage[i] = x[i] + h*k[i]
	}
	return r.stage
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	half := dt * 0.5

	k1 := dyn.Derive(x, u, t).Clone()
	k2 := dyn.Derive(r.offset(x, k1, half), u, t+half).Clone()
	k3 := dyn.Derive(r.offset(x, k2, half), u, t+half).Clone()
	k4 := dyn.Derive(r.offset(x, k3, dt), u, t+dt)

	result := make(dynamo.State, len(x))
	sixth := dt / 6.0
	for i := range x {
		result[i] = x[i] + sixth*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return result
}
