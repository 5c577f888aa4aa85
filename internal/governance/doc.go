// Package governance enforces runtime safety limits on actions the platform
// may take.
//
// The SafetyKernel holds one bounded constraint per canonical axis, updates
// the current axis values from telemetry or direct writes, and validates
// proposed action vectors against the bounds before they execute. Bounds are
// adjusted by callers that act on approved governance decisions; the kernel
// itself never consults the consensus engine.
package governance
