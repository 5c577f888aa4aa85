package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/neurogov/pkg/domain"
)

// RecordDecision annotates the span with decision metadata. The description
// passes through the default redaction policy.
func RecordDecision(span trace.Span, decision domain.GovernanceDecision, ratio float64) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("decision.id", decision.ID),
		attribute.Int("decision.votes.count", len(decision.Votes)),
		attribute.Float64("decision.threshold", decision.ConsensusThreshold),
		attribute.Float64("decision.approval_ratio", ratio),
		attribute.Bool("decision.approved", decision.Approved),
		attribute.String(AttrDecisionDescription, decision.Description),
	}
	if len(decision.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("decision.tags", decision.Tags))
	}

	span.SetAttributes(RedactAttributes(attrs, nil)...)
}

// RecordStakeholderVote adds a vote event to the span. The voter identifier is
// hashed and the rationale dropped before export.
func RecordStakeholderVote(span trace.Span, decisionID string, vote domain.StakeholderVote) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := RedactAttributes([]attribute.KeyValue{
		attribute.String("decision.id", decisionID),
		attribute.String("stakeholder.role", vote.Role.String()),
		attribute.Bool("vote.approval", vote.Approval),
		attribute.String(AttrVoteIdentifier, vote.Identifier),
		attribute.String(AttrVoteRationale, vote.Rationale),
	}, nil)

	span.AddEvent("governance.vote", trace.WithAttributes(attrs...))
}
