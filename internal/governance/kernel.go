package governance

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/polisai/neurogov/pkg/domain"
)

// Telemetry parameters the kernel understands.
const (
	ParamSafetyKernelDim       = "SafetyKernelDim"
	ParamMaxCognitiveLoadIndex = "MaxCognitiveLoadIndex"
	ParamGatewayPowerDraw      = "GatewayPowerDraw"
)

type telemetryKey struct {
	layer     string
	parameter string
}

// telemetryAxes maps (source category, parameter) pairs onto the axis they drive.
var telemetryAxes = map[telemetryKey]domain.Axis{
	{domain.LayerGovSafety, ParamMaxCognitiveLoadIndex}: domain.AxisCognitiveLoad,
	{domain.LayerBCIIngress, ParamGatewayPowerDraw}:     domain.AxisPower,
}

// Bounds is an inclusive [Min, Max] range.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// DefaultBounds returns the factory range of every axis.
func DefaultBounds() map[domain.Axis]Bounds {
	return map[domain.Axis]Bounds{
		domain.AxisIntensity:         {0, 1},
		domain.AxisDuty:              {0, 0.8},
		domain.AxisLoad:              {0, 100},
		domain.AxisPower:             {0, 750}, // mW
		domain.AxisNeuromodAmplitude: {0, 1},
		domain.AxisCognitiveLoad:     {0, 0.7},
		domain.AxisLegalComplexity:   {0, 1},
	}
}

// KernelOption customises a SafetyKernel at construction.
type KernelOption func(*SafetyKernel)

// WithKernelLogger sets the kernel logger.
func WithKernelLogger(logger *slog.Logger) KernelOption {
	return func(k *SafetyKernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// SafetyKernel validates action vectors against per-axis bounds.
type SafetyKernel struct {
	mu          sync.RWMutex
	constraints [domain.AxisCount]domain.SafetyConstraint
	logger      *slog.Logger
}

// NewSafetyKernel creates a kernel with the default bounds and every axis at 0.
func NewSafetyKernel(opts ...KernelOption) *SafetyKernel {
	k := &SafetyKernel{logger: slog.Default()}
	defaults := DefaultBounds()
	for _, axis := range domain.Axes() {
		b := defaults[axis]
		k.constraints[axis] = domain.SafetyConstraint{Axis: axis, Min: b.Min, Max: b.Max}
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// IngestTelemetry applies every recognised record to its axis and returns
// how many were applied. Unrecognised records are ignored.
func (k *SafetyKernel) IngestTelemetry(nodes []domain.NeuroNode) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	applied := 0
	for _, n := range nodes {
		if n.Layer == domain.LayerGovSafety && n.Parameter == ParamSafetyKernelDim {
			if n.Value != domain.AxisCount {
				k.logger.Warn("safety kernel dimension mismatch",
					"node_id", n.NodeID, "reported", n.Value, "expected", domain.AxisCount)
			}
			continue
		}
		axis, ok := telemetryAxes[telemetryKey{n.Layer, n.Parameter}]
		if !ok {
			continue
		}
		k.set(axis, n.Value)
		applied++
	}
	return applied
}

// UpdateAxis sets the current value of the named axis.
func (k *SafetyKernel) UpdateAxis(name string, value float64) error {
	axis, err := domain.ParseAxis(name)
	if err != nil {
		return err
	}
	return k.Update(axis, value)
}

// Update sets the current value of axis and recomputes its violation flag.
func (k *SafetyKernel) Update(axis domain.Axis, value float64) error {
	if !axis.Valid() {
		return domain.NewError(domain.ErrUnknownAxis, domain.CodeUnknownAxis, nil, "%s", axis)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.set(axis, value)
	return nil
}

// SetBounds replaces the allowed range of axis and recomputes its violation flag.
func (k *SafetyKernel) SetBounds(axis domain.Axis, minValue, maxValue float64) error {
	if !axis.Valid() {
		return domain.NewError(domain.ErrUnknownAxis, domain.CodeUnknownAxis, nil, "%s", axis)
	}
	if math.IsNaN(minValue) || math.IsNaN(maxValue) || minValue > maxValue {
		return domain.NewError(domain.ErrInvalidBounds, domain.CodeInvalidBounds,
			map[string]any{"axis": axis.String(), "min": minValue, "max": maxValue},
			"%s: [%v, %v]", axis, minValue, maxValue)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	c := &k.constraints[axis]
	c.Min, c.Max = minValue, maxValue
	k.set(axis, c.Current)
	k.logger.Info("safety bounds updated", "axis", axis.String(), "min", minValue, "max", maxValue)
	return nil
}

// CheckViability reports whether every component of action lies within the
// bounds of the axis at the same position. Vectors of the wrong length fail.
func (k *SafetyKernel) CheckViability(action []float64) bool {
	if len(action) != domain.AxisCount {
		return false
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	for i, v := range action {
		if !k.constraints[i].Contains(v) {
			return false
		}
	}
	return true
}

// SafetyMargin averages each axis' distance to its nearest bound, normalised
// by half the range and clamped to [0,1]: 1 at the midpoint, 0 on or beyond a
// bound. Axes with an empty range are skipped.
func (k *SafetyKernel) SafetyMargin() float64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.safetyMargin()
}

// Constraint returns a copy of the constraint on axis.
func (k *SafetyKernel) Constraint(axis domain.Axis) (domain.SafetyConstraint, error) {
	if !axis.Valid() {
		return domain.SafetyConstraint{}, domain.NewError(domain.ErrUnknownAxis, domain.CodeUnknownAxis, nil, "%s", axis)
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.constraints[axis], nil
}

// Constraints returns a copy of every constraint in canonical axis order.
func (k *SafetyKernel) Constraints() []domain.SafetyConstraint {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make([]domain.SafetyConstraint, domain.AxisCount)
	copy(out, k.constraints[:])
	return out
}

// Violations returns the currently violated constraints in axis order.
func (k *SafetyKernel) Violations() []domain.SafetyConstraint {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var out []domain.SafetyConstraint
	for _, c := range k.constraints {
		if c.Violated {
			out = append(out, c)
		}
	}
	return out
}

// ViolationReport renders the violated axes and the current safety margin.
func (k *SafetyKernel) ViolationReport() string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString("Cyberswarm Safety Kernel Violation Report\n")
	sb.WriteString("=========================================\n")

	violated := false
	for _, c := range k.constraints {
		if !c.Violated {
			continue
		}
		violated = true
		fmt.Fprintf(&sb, "Axis: %s\n", c.Axis)
		fmt.Fprintf(&sb, "  Current: %.3f\n", c.Current)
		fmt.Fprintf(&sb, "  Allowed: [%.3f, %.3f]\n", c.Min, c.Max)
		switch {
		case c.Current < c.Min:
			fmt.Fprintf(&sb, "  Violation: Below minimum by %.3f\n", c.Min-c.Current)
		case c.Current > c.Max:
			fmt.Fprintf(&sb, "  Violation: Above maximum by %.3f\n", c.Current-c.Max)
		default:
			sb.WriteString("  Violation: value is not a number\n")
		}
	}
	if !violated {
		sb.WriteString("All constraints satisfied.\n")
	}

	fmt.Fprintf(&sb, "Safety Margin: %.3f%%\n", k.safetyMargin()*100)
	return sb.String()
}

// set must be called with k.mu held.
func (k *SafetyKernel) set(axis domain.Axis, value float64) {
	c := &k.constraints[axis]
	wasViolated := c.Violated
	c.Current = value
	c.Violated = !c.Contains(value)

	switch {
	case c.Violated && !wasViolated:
		k.logger.Warn("safety axis violated", "axis", axis.String(), "value", value, "min", c.Min, "max", c.Max)
	case !c.Violated && wasViolated:
		k.logger.Info("safety axis recovered", "axis", axis.String(), "value", value)
	}
}

func (k *SafetyKernel) safetyMargin() float64 {
	total := 0.0
	counted := 0
	for _, c := range k.constraints {
		half := (c.Max - c.Min) / 2
		if half <= 0 {
			continue
		}
		fromMin := (c.Current - c.Min) / half
		fromMax := (c.Max - c.Current) / half
		margin := math.Max(0, math.Min(1, math.Min(fromMin, fromMax)))
		total += margin
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}
