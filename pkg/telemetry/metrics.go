package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/neurogov/pkg/domain"
)

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	proposalCounter      metric.Int64Counter
	voteCounter          metric.Int64Counter
	finalizeCounter      metric.Int64Counter
	approvalHistogram    metric.Float64Histogram
	viabilityCounter     metric.Int64Counter
	axisViolationCounter metric.Int64Counter
)

// RecordProposal counts a proposed decision.
func RecordProposal(ctx context.Context, tags []string) {
	if err := ensureMetrics(); err != nil {
		return
	}
	proposalCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("decision.tags.count", len(tags))))
}

// RecordVote counts a ballot by role and approval.
func RecordVote(ctx context.Context, role domain.StakeholderRole, approval bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	voteCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stakeholder.role", role.String()),
		attribute.Bool("vote.approval", approval),
	))
}

// RecordFinalize counts a finalize outcome and records the approval ratio it was based on.
func RecordFinalize(ctx context.Context, approved bool, ratio float64) {
	if err := ensureMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("decision.approved", approved))
	finalizeCounter.Add(ctx, 1, attrs)
	approvalHistogram.Record(ctx, ratio, attrs)
}

// RecordViabilityCheck counts a viability check by result.
func RecordViabilityCheck(ctx context.Context, viable bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	viabilityCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("safety.viable", viable)))
}

// RecordAxisViolation counts an axis entering the violated state.
func RecordAxisViolation(ctx context.Context, axis domain.Axis) {
	if err := ensureMetrics(); err != nil {
		return
	}
	axisViolationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("safety.axis", axis.String())))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("neurogov.governance")

		proposalCounter, metricsInitErr = meter.Int64Counter(
			"neurogov.decisions.proposed_total",
			metric.WithDescription("Governance decisions proposed"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		voteCounter, metricsInitErr = meter.Int64Counter(
			"neurogov.votes_total",
			metric.WithDescription("Stakeholder votes partitioned by role and approval"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		finalizeCounter, metricsInitErr = meter.Int64Counter(
			"neurogov.decisions.finalized_total",
			metric.WithDescription("Decision finalizations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		approvalHistogram, metricsInitErr = meter.Float64Histogram(
			"neurogov.decisions.approval_ratio",
			metric.WithDescription("Weighted approval ratio observed at finalization"),
			metric.WithUnit("1"),
		)
		if metricsInitErr != nil {
			return
		}

		viabilityCounter, metricsInitErr = meter.Int64Counter(
			"neurogov.safety.viability_checks_total",
			metric.WithDescription("Action vector viability checks partitioned by result"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		axisViolationCounter, metricsInitErr = meter.Int64Counter(
			"neurogov.safety.axis_violations_total",
			metric.WithDescription("Safety axes entering the violated state"),
			metric.WithUnit("{count}"),
		)
	})

	return metricsInitErr
}

// RecordSafetyEvent attaches a coarse-grained safety event to the provided span.
func RecordSafetyEvent(span trace.Span, viable bool, violations []domain.SafetyConstraint) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("safety.viable", viable),
		attribute.Int("safety.violations.count", len(violations)),
	}
	if len(violations) > 0 {
		axes := make([]string, 0, len(violations))
		for _, c := range violations {
			axes = append(axes, c.Axis.String())
		}
		attrs = append(attrs, attribute.StringSlice("safety.violations.axes", axes))
	}

	span.AddEvent("safety.event", trace.WithAttributes(attrs...))
}
