package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/tanksim/internal/dynamo"
)

const (
	DefaultArea         = 1.0
	DefaultValveSetting = 0.5
	DefaultInflow       = 2.0
)

// TwoTank is a hybrid automaton: two tanks in series fed by a constant
// inflow into tank 1, coupled by a linear valve. State is (h1, h2).
//
// In ModeNormal the inter-tank flow is ValveSetting*(h1-h2) and may be
// negative (backflow). In ModeValveStuck the valve passes nothing.
type TwoTank struct {
	A1           float64
	A2           float64
	ValveSetting float64
	Inflow       float64

	mode Mode
}

func NewTwoTank() *TwoTank {
	return &TwoTank{
		A1:           DefaultArea,
		A2:           DefaultArea,
		ValveSetting: DefaultValveSetting,
		Inflow:       DefaultInflow,
		mode:         ModeNormal,
	}
}

func (tt *TwoTank) StateDim() int {
	return 2
}

func (tt *TwoTank) ControlDim() int {
	return 0
}

func (tt *TwoTank) Mode() Mode {
	return tt.mode
}

// SetMode switches the discrete mode. An unrecognized mode returns
// ErrInvalidMode and leaves the current mode untouched.
func (tt *TwoTank) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	tt.mode = m
	return nil
}

// SetModeName is SetMode keyed by the mode's name.
func (tt *TwoTank) SetModeName(name string) error {
	m, err := ParseMode(name)
	if err != nil {
		return err
	}
	return tt.SetMode(m)
}

// Flow returns the tank 1 -> tank 2 flow for the current mode.
func (tt *TwoTank) Flow(h1, h2 float64) float64 {
	switch tt.mode {
	case ModeValveStuck:
		return 0.0
	default:
		return tt.ValveSetting * (h1 - h2)
	}
}

// Derive returns (dh1, dh2). t is unused by the rate law.
func (tt *TwoTank) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	h1, h2 := x[0], x[1]

	switch tt.mode {
	case ModeNormal:
		flow12 := tt.ValveSetting * (h1 - h2)
		return dynamo.State{(tt.Inflow - flow12) / tt.A1, flow12 / tt.A2}
	case ModeValveStuck:
		return dynamo.State{tt.Inflow / tt.A1, 0.0}
	default:
		panic(fmt.Sprintf("physics: unhandled mode %v", tt.mode))
	}
}

func (tt *TwoTank) GetParams() map[string]float64 {
	return map[string]float64{
		"a1":            tt.A1,
		"a2":            tt.A2,
		"valve_setting": tt.ValveSetting,
		"inflow":        tt.Inflow,
	}
}

func (tt *TwoTank) SetParam(name string, value float64) error {
	switch name {
	case "a1", "a2":
		if !(value > 0) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %f", dynamo.ErrParameterBounds, name, value)
		}
		if name == "a1" {
			tt.A1 = value
		} else {
			tt.A2 = value
		}
	case "valve_setting":
		if !(value >= 0) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: valve_setting must be non-negative and finite, got %f", dynamo.ErrParameterBounds, value)
		}
		tt.ValveSetting = value
	case "inflow":
		if !(value >= 0) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: inflow must be non-negative and finite, got %f", dynamo.ErrParameterBounds, value)
		}
		tt.Inflow = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParameter, name)
	}
	return nil
}

// Params bundles the fixed physical parameters so callers can build many
// identical automata.
type Params struct {
	A1           float64
	A2           float64
	ValveSetting float64
	Inflow       float64
}

func DefaultParams() Params {
	return Params{
		A1:           DefaultArea,
		A2:           DefaultArea,
		ValveSetting: DefaultValveSetting,
		Inflow:       DefaultInflow,
	}
}

// Factory returns a constructor for fresh automata in ModeNormal, one per
// simulated run. It fails if any parameter is out of bounds.
func (p Params) Factory() (func() *TwoTank, error) {
	probe := NewTwoTank()
	for name, v := range map[string]float64{
		"a1":            p.A1,
		"a2":            p.A2,
		"valve_setting": p.ValveSetting,
		"inflow":        p.Inflow,
	} {
		if err := probe.SetParam(name, v); err != nil {
			return nil, err
		}
	}

	return func() *TwoTank {
		return &TwoTank{
			A1:           p.A1,
			A2:           p.A2,
			ValveSetting: p.ValveSetting,
			Inflow:       p.Inflow,
			mode:         ModeNormal,
		}
	}, nil
}
