// Package policy records governance proposals, collects weighted stakeholder
// votes on them, and decides whether each proposal reaches consensus.
//
// The ConsensusEngine is a single-owner state machine guarded by one lock per
// instance, so it can be shared by concurrent callers (for example the admin
// API) without exposing partially applied votes. It never touches the safety
// kernel: approved decisions are handed to the kernel by the caller.
package policy
