package telemetry

import "sync"

// ResetMetricsForTest clears cached metric instruments so tests can
// reinitialize them against a fresh MeterProvider. This is intended for
// use in test code only.
func ResetMetricsForTest() {
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	proposalCounter = nil
	voteCounter = nil
	finalizeCounter = nil
	approvalHistogram = nil
	viabilityCounter = nil
	axisViolationCounter = nil
}
