// Package domain defines the core governance and safety types shared by the
// consensus engine, the safety kernel, and the eco-telemetry collaborators.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Independent of infrastructure (no HTTP, storage, CLI, etc.)
// - Closed where the vocabulary is closed (stakeholder roles, safety axes)
// - Testable in isolation without mocks
//
// Other packages (policy, governance, admin, etc.) build on these types. The
// dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
