package orderstatus

import (
	"errors"
	"fmt"
)

// AllowedTransitions is the order lifecycle graph. Terminal states have no entry.
var AllowedTransitions = map[Status][]Status{
	Pending:        {Accepted, Rejected, Cancelled},
	Accepted:       {Preparing, Cancelled},
	Preparing:      {Ready, Cancelled},
	Ready:          {OutForDelivery, Cancelled},
	OutForDelivery: {Delivered, Cancelled},
}

var allowedTransitionSet = buildTransitionSet(AllowedTransitions)

func buildTransitionSet(transitions map[Status][]Status) map[Status]map[Status]struct{} {
	set := make(map[Status]map[Status]struct{}, len(transitions))
	for from, tos := range transitions {
		set[from] = setOf(tos...)
	}

	return set
}

// CanTransition checks the graph only, ignoring who asks.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitionSet[from]
	if !ok {
		return false
	}
	_, ok = next[to]

	return ok
}

// mainLine is the forward path of an order that is neither rejected nor cancelled.
var mainLine = []Status{Pending, Accepted, Preparing, Ready, OutForDelivery, Delivered}

func rank(s Status) int {
	for i, m := range mainLine {
		if m == s {
			return i
		}
	}

	return -1
}

// Supersedes reports whether a replica holding local must give way to the
// authoritative upstream status: upstream is terminal or further along.
func Supersedes(upstream, local Status) bool {
	if upstream == local || (local.IsTerminal() && !upstream.IsTerminal()) {
		return false
	}
	if upstream.IsTerminal() {
		return true
	}

	return rank(upstream) > rank(local)
}

// CatchUp lists the statuses that walk an order from behind to target one
// edge at a time. It is nil when target cannot be reached forward.
func CatchUp(behind, target Status) []Status {
	if CanTransition(behind, target) {
		return []Status{target}
	}
	from, to := rank(behind), rank(target)
	if from < 0 || to < 0 || from >= to {
		return nil
	}

	return append([]Status(nil), mainLine[from+1:to+1]...)
}

// Decision is the outcome of an accepted validation.
type Decision int

const (
	// Allowed means the requested status differs from the current one and may be written.
	Allowed Decision = iota + 1
	// NoOp means the requested status is already current; nothing must be written.
	NoOp
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case NoOp:
		return "noop"
	default:
		return "unknown"
	}
}

var ErrTransitionRejected = errors.New("status transition rejected")

// RejectionError explains why Validate refused a request.
type RejectionError struct {
	From   Status
	To     Status
	Actor  Actor
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return ErrTransitionRejected
}

// Validate decides whether actor may move an order from current to requested.
// A request for the current status is a NoOp for every actor, which absorbs
// duplicate deliveries of the same change. Callers must not write anything on error.
func Validate(current, requested Status, actor Actor) (Decision, error) {
	if !current.Valid() {
		return 0, fmt.Errorf("%w: stored status %q", ErrInvalidStatus, current)
	}
	if !requested.Valid() {
		return 0, fmt.Errorf("%w: requested status %q", ErrInvalidStatus, requested)
	}

	if current == requested {
		return NoOp, nil
	}

	reject := func(reason string) (Decision, error) {
		return 0, &RejectionError{From: current, To: requested, Actor: actor, Reason: reason}
	}

	if current.IsTerminal() {
		return reject(fmt.Sprintf("%s is a terminal status", current))
	}
	if !CanTransition(current, requested) {
		return reject(fmt.Sprintf("%s is not reachable from %s", requested, current))
	}
	if !actor.mayRequest(current, requested) {
		return reject(fmt.Sprintf("%s may not set %s", actor, requested))
	}

	return Allowed, nil
}
