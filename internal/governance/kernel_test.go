package governance

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polisai/neurogov/pkg/domain"
)

func newTestKernel() *SafetyKernel {
	return NewSafetyKernel(WithKernelLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func boundsVector(k *SafetyKernel, pick func(domain.SafetyConstraint) float64) []float64 {
	cs := k.Constraints()
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = pick(c)
	}
	return out
}

func TestNewSafetyKernelDefaults(t *testing.T) {
	k := newTestKernel()

	cs := k.Constraints()
	require.Len(t, cs, domain.AxisCount)
	for i, c := range cs {
		assert.Equal(t, domain.Axis(i), c.Axis)
		assert.Zero(t, c.Current)
		assert.False(t, c.Violated)
	}
	power, err := k.Constraint(domain.AxisPower)
	require.NoError(t, err)
	assert.Equal(t, 750.0, power.Max)
	cognitive, _ := k.Constraint(domain.AxisCognitiveLoad)
	assert.Equal(t, 0.7, cognitive.Max)
	assert.Empty(t, k.Violations())
}

func TestUpdateAxisPowerAboveMaximum(t *testing.T) {
	k := newTestKernel()

	require.NoError(t, k.UpdateAxis("power", 800))

	c, _ := k.Constraint(domain.AxisPower)
	assert.True(t, c.Violated)
	assert.Equal(t, 800.0, c.Current)

	report := k.ViolationReport()
	assert.Contains(t, report, "Axis: power")
	assert.Contains(t, report, "Allowed: [0.000, 750.000]")
	assert.Contains(t, report, "Above maximum by 50")
	assert.NotContains(t, report, "All constraints satisfied")
	assert.Contains(t, report, "Safety Margin:")

	require.NoError(t, k.UpdateAxis("power", 700))
	c, _ = k.Constraint(domain.AxisPower)
	assert.False(t, c.Violated)
}

func TestUpdateAxisBelowMinimum(t *testing.T) {
	k := newTestKernel()
	require.NoError(t, k.UpdateAxis("duty", -0.25))

	report := k.ViolationReport()
	assert.Contains(t, report, "Axis: duty")
	assert.Contains(t, report, "Below minimum by 0.250")
}

func TestUpdateAxisUnknown(t *testing.T) {
	k := newTestKernel()

	err := k.UpdateAxis("temperature", 1)
	assert.True(t, errors.Is(err, domain.ErrUnknownAxis))
	assert.True(t, errors.Is(k.Update(domain.Axis(99), 1), domain.ErrUnknownAxis))
}

func TestViolationReportAllSatisfied(t *testing.T) {
	k := newTestKernel()
	report := k.ViolationReport()
	assert.Contains(t, report, "All constraints satisfied.")
	assert.True(t, strings.HasSuffix(report, "Safety Margin: 0.000%\n"))
}

func TestCheckViabilityInclusiveBounds(t *testing.T) {
	k := newTestKernel()

	assert.True(t, k.CheckViability(boundsVector(k, func(c domain.SafetyConstraint) float64 { return c.Min })))
	assert.True(t, k.CheckViability(boundsVector(k, func(c domain.SafetyConstraint) float64 { return c.Max })))

	for axis := range domain.AxisCount {
		below := boundsVector(k, func(c domain.SafetyConstraint) float64 { return c.Min })
		below[axis] -= 1
		assert.False(t, k.CheckViability(below), "below min on %s", domain.Axis(axis))

		above := boundsVector(k, func(c domain.SafetyConstraint) float64 { return c.Max })
		above[axis] += 1
		assert.False(t, k.CheckViability(above), "above max on %s", domain.Axis(axis))
	}
}

func TestCheckViabilityFailsClosed(t *testing.T) {
	k := newTestKernel()

	assert.False(t, k.CheckViability(nil))
	assert.False(t, k.CheckViability([]float64{0, 0, 0, 0, 0, 0}))
	assert.False(t, k.CheckViability([]float64{0, 0, 0, 0, 0, 0, 0, 0}))
	assert.False(t, k.CheckViability([]float64{math.NaN(), 0, 0, 0, 0, 0, 0}))
}

func TestCheckViabilityDoesNotMutate(t *testing.T) {
	k := newTestKernel()
	before := k.Constraints()

	k.CheckViability([]float64{5, 5, 500, 5000, 5, 5, 5})

	assert.Equal(t, before, k.Constraints())
}

func TestSafetyMargin(t *testing.T) {
	k := newTestKernel()
	assert.Equal(t, 0.0, k.SafetyMargin())

	for _, c := range k.Constraints() {
		require.NoError(t, k.Update(c.Axis, (c.Min+c.Max)/2))
	}
	assert.InDelta(t, 1.0, k.SafetyMargin(), 1e-12)

	c, _ := k.Constraint(domain.AxisLoad)
	require.NoError(t, k.Update(domain.AxisLoad, c.Max))
	assert.InDelta(t, 6.0/7.0, k.SafetyMargin(), 1e-12)
}

func TestSafetyMarginSkipsEmptyRanges(t *testing.T) {
	k := newTestKernel()
	for _, axis := range domain.Axes() {
		require.NoError(t, k.SetBounds(axis, 1, 1))
	}
	assert.Equal(t, 0.0, k.SafetyMargin())

	require.NoError(t, k.SetBounds(domain.AxisDuty, 0, 2))
	require.NoError(t, k.Update(domain.AxisDuty, 1))
	assert.InDelta(t, 1.0, k.SafetyMargin(), 1e-12)
}

func TestSetBoundsRecomputesViolation(t *testing.T) {
	k := newTestKernel()
	require.NoError(t, k.UpdateAxis("power", 800))

	require.NoError(t, k.SetBounds(domain.AxisPower, 0, 900))
	c, _ := k.Constraint(domain.AxisPower)
	assert.False(t, c.Violated)

	err := k.SetBounds(domain.AxisPower, 10, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidBounds))
}

func TestIngestTelemetry(t *testing.T) {
	k := newTestKernel()

	applied := k.IngestTelemetry([]domain.NeuroNode{
		{NodeID: "n1", Layer: domain.LayerGovSafety, Parameter: ParamMaxCognitiveLoadIndex, Value: 0.9},
		{NodeID: "n2", Layer: domain.LayerBCIIngress, Parameter: ParamGatewayPowerDraw, Value: 420},
		{NodeID: "n3", Layer: domain.LayerGovSafety, Parameter: ParamSafetyKernelDim, Value: 6},
		{NodeID: "n4", Layer: domain.LayerEcoLink, Parameter: ParamGatewayPowerDraw, Value: 9999},
		{NodeID: "n5", Layer: domain.LayerBCIIngress, Parameter: "ChannelCount", Value: 64},
	})
	assert.Equal(t, 2, applied)

	cognitive, _ := k.Constraint(domain.AxisCognitiveLoad)
	assert.Equal(t, 0.9, cognitive.Current)
	assert.True(t, cognitive.Violated)

	power, _ := k.Constraint(domain.AxisPower)
	assert.Equal(t, 420.0, power.Current)
	assert.False(t, power.Violated)
}

func TestKernelConcurrentAccess(t *testing.T) {
	k := newTestKernel()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = k.Update(domain.AxisLoad, float64(i*10))
		}(i)
		go func() {
			defer wg.Done()
			_ = k.ViolationReport()
			_ = k.CheckViability(make([]float64, domain.AxisCount))
		}()
	}
	wg.Wait()

	c, _ := k.Constraint(domain.AxisLoad)
	assert.Equal(t, c.Current > c.Max, c.Violated)
}

// Property: the violated flag always equals value < min || value > max.
func TestViolatedFlagProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := newTestKernel()
		axis := domain.Axis(rapid.IntRange(0, domain.AxisCount-1).Draw(t, "axis"))
		value := rapid.Float64Range(-1000, 1000).Draw(t, "value")

		if err := k.Update(axis, value); err != nil {
			t.Fatal(err)
		}
		c, _ := k.Constraint(axis)
		if c.Violated != (value < c.Min || value > c.Max) {
			t.Fatalf("axis %s value %v: violated=%v", axis, value, c.Violated)
		}
	})
}

// Property: the safety margin always lies in [0,1].
func TestSafetyMarginRangeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := newTestKernel()
		for _, axis := range domain.Axes() {
			if err := k.Update(axis, rapid.Float64Range(-2000, 2000).Draw(t, "value")); err != nil {
				t.Fatal(err)
			}
		}
		m := k.SafetyMargin()
		if m < 0 || m > 1 {
			t.Fatalf("margin %v outside [0,1]", m)
		}
	})
}
