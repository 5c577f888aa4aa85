package domain

import "fmt"

// Axis names one dimension of an action vector. The set is closed and its
// order is fixed: position i of an action vector always maps to Axes()[i].
type Axis int

const (
	AxisIntensity Axis = iota
	AxisDuty
	AxisLoad
	AxisPower
	AxisNeuromodAmplitude
	AxisCognitiveLoad
	AxisLegalComplexity
)

// AxisCount is the dimension of every action vector.
const AxisCount = 7

var axisNames = [AxisCount]string{
	AxisIntensity:         "intensity",
	AxisDuty:              "duty",
	AxisLoad:              "load",
	AxisPower:             "power",
	AxisNeuromodAmplitude: "neuromod_amplitude",
	AxisCognitiveLoad:     "cognitive_load",
	AxisLegalComplexity:   "legal_complexity",
}

// Axes returns the canonical axis order.
func Axes() []Axis {
	out := make([]Axis, AxisCount)
	for i := range out {
		out[i] = Axis(i)
	}
	return out
}

// Valid reports whether a is a canonical axis.
func (a Axis) Valid() bool {
	return a >= AxisIntensity && a <= AxisLegalComplexity
}

func (a Axis) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// MarshalText implements encoding.TextMarshaler.
func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, NewError(ErrUnknownAxis, CodeUnknownAxis, nil, "%d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Axis) UnmarshalText(text []byte) error {
	parsed, err := ParseAxis(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAxis resolves an axis name.
func ParseAxis(name string) (Axis, error) {
	for i, n := range axisNames {
		if n == name {
			return Axis(i), nil
		}
	}
	return 0, NewError(ErrUnknownAxis, CodeUnknownAxis, map[string]any{"axis": name}, "%q", name)
}

// SafetyConstraint bounds one axis. Violated is derived from Current against
// the inclusive [Min, Max] range.
type SafetyConstraint struct {
	Axis     Axis    `json:"axis"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Current  float64 `json:"current"`
	Violated bool    `json:"violated"`
}

// Contains reports whether v lies within the inclusive range.
func (c SafetyConstraint) Contains(v float64) bool {
	return v >= c.Min && v <= c.Max
}
