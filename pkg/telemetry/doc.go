// Package telemetry wires OpenTelemetry tracing and meters for the governance
// service.
//
// It centralises trace provider setup, records governance and safety-kernel
// outcomes as metric instruments, and offers enrichment helpers that attach
// decision, vote, and viability metadata to spans. Voter identifiers are
// redacted before they reach any exporter.
package telemetry
