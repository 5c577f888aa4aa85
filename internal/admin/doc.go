// Package admin exposes the consensus engine, safety kernel, and dreamnet
// carbon index over HTTP for governance tooling, and publishes their state as
// Prometheus metrics.
package admin
