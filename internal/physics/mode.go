package physics

import (
	"errors"
	"fmt"
)

// ErrInvalidMode is returned when a transition names an unrecognized mode.
var ErrInvalidMode = errors.New("physics: invalid mode (choose NORMAL or VALVE_STUCK)")

// Mode is the discrete operating regime of the two-tank automaton.
type Mode int

const (
	ModeNormal Mode = iota
	ModeValveStuck
)

var modeNames = map[Mode]string{
	ModeNormal:     "NORMAL",
	ModeValveStuck: "VALVE_STUCK",
}

func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "NORMAL" or "VALVE_STUCK" to its Mode.
func ParseMode(name string) (Mode, error) {
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return ModeNormal, fmt.Errorf("%w: %q", ErrInvalidMode, name)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
