// Package policy implements the merge precedence rules that decide whether
// an incoming record write supersedes the stored one. The decision function
// is pure; the relational writer translates the same rules into a
// conditional write guard, and the document-store mirror evaluates them
// independently against its own copy.
package policy

import (
	"time"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
)

// Decision is the outcome of the merge policy for one incoming write.
type Decision int

const (
	// Apply means the incoming record supersedes the stored one.
	Apply Decision = iota
	// Discard means the incoming record is stale or redundant. A discard
	// is not an error: it is logged and the write completes as a no-op.
	Discard
)

// String returns the decision name.
func (d Decision) String() string {
	if d == Apply {
		return "apply"
	}
	return "discard"
}

// Snapshot is the minimal record view the policy needs: the ordering
// pivot, the lifecycle status, and the identity of the run that produced
// the record. An empty ExecutionARN means the record carries no execution
// reference; two absent references compare equal.
type Snapshot struct {
	Status       model.Status
	ExecutionARN string
	CreatedAt    time.Time
}

// Decide evaluates the precedence rules in order and returns the decision
// together with the rule that produced it (for logging).
//
// Rules:
//  1. no stored record exists: apply (create);
//  2. the incoming record belongs to an older run than the stored one
//     (createdAt is earlier): discard;
//  3. a running write over a terminal record applies only when it names a
//     different execution (a genuinely new run supersedes a finished one);
//  4. a running write over a queued record applies (queued has no started
//     run yet, so any started run claims it);
//  5. a queued write naming the execution already recorded is a redundant
//     re-queue: discard;
//  6. otherwise: apply.
func Decide(current *Snapshot, incoming Snapshot) (Decision, string) {
	if current == nil {
		return Apply, "create"
	}
	if incoming.CreatedAt.Before(current.CreatedAt) {
		return Discard, "older workflow start time"
	}
	if incoming.Status == model.StatusRunning && current.Status.IsTerminal() {
		if sameExecution(incoming.ExecutionARN, current.ExecutionARN) {
			return Discard, "running event for an already-finished run"
		}
		return Apply, "new run supersedes finished one"
	}
	if incoming.Status == model.StatusRunning && current.Status == model.StatusQueued {
		return Apply, "started run claims queued record"
	}
	if incoming.Status == model.StatusQueued && sameExecution(incoming.ExecutionARN, current.ExecutionARN) {
		return Discard, "redundant re-queue of the same run"
	}
	return Apply, "default"
}

// RestrictedUpdate reports whether an applied write with the given
// resulting status may only touch the in-flight mutable subset
// (created/updated/timestamp, status, execution identity). All other
// fields, including files, stay untouched until a terminal status lands.
func RestrictedUpdate(resulting model.Status) bool {
	return resulting == model.StatusRunning
}

// sameExecution compares two execution references null-safely: two absent
// references are equal, an absent and a present one are not.
func sameExecution(a, b string) bool {
	return a == b
}
