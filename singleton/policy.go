// Package singleton manages one-per-type behavior slots on a stage.
//
// A registry watches a stage and assigns each managed behavior type a slot
// that holds at most one instance. When an instance activates, its policy
// decides who keeps the slot. Accessors look instances up by type, and can
// create one on demand.
package singleton

import "github.com/sarchlab/torii/stage"

// Policy decides what happens when an instance of a managed type activates
// while its slot may already be taken.
type Policy int

const (
	// PolicyBasic claims the slot unconditionally. A later instance
	// displaces an earlier one without destroying it.
	PolicyBasic Policy = iota

	// PolicyPersistent claims the slot only if it is empty. The claimer is
	// detached and persisted so it survives scene teardowns. A later
	// instance that finds the slot taken destroys itself.
	PolicyPersistent

	// PolicyRegulator always keeps the newest instance. The claimer is
	// persisted, every older sibling of the same type is destroyed, and the
	// slot moves to the claimer.
	PolicyRegulator
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyBasic:
		return "basic"
	case PolicyPersistent:
		return "persistent"
	case PolicyRegulator:
		return "regulator"
	}

	return "unknown"
}

// PolicyHolder is implemented by behaviors that want singleton management.
// The registry ignores behaviors that do not implement it.
type PolicyHolder interface {
	stage.Behavior

	// SingletonPolicy returns the policy applied when the behavior
	// activates.
	SingletonPolicy() Policy
}

// Base makes the embedding behavior a managed singleton with the basic
// policy. Redefine SingletonPolicy on the outer type to pick another policy.
type Base struct {
	stage.BehaviorBase
}

// SingletonPolicy returns PolicyBasic.
func (Base) SingletonPolicy() Policy {
	return PolicyBasic
}

func policyOf(b stage.Behavior) (Policy, bool) {
	ph, ok := b.(PolicyHolder)
	if !ok {
		return PolicyBasic, false
	}

	return ph.SingletonPolicy(), true
}
