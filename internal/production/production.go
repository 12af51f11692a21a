// Package production implements the production engine: the rule-based
// dispatcher that runs expectation/action rules against each incoming
// event and decides when a production has run to completion.
//
// Grounded on production.cpp/production.h's run_production, perform/
// run_action_only_once, and the until/until_event/timeout machinery.
package production

import (
	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

// Perform is the side-effecting call that starts a production. It runs at
// most once, before any rule evaluation, and its return value is the only
// action return value this release acts on: false aborts the protocol.
type Perform func(arg any) bool

// Result is the outcome of one Engine.Dispatch call.
type Result int

const (
	// NoMatch: no rule fired and the production is not finished.
	NoMatch Result = iota
	// Advanced: at least one rule fired but the production is not finished.
	Advanced
	// Done: the production has finished (its until condition held, or it
	// was single-shot, or it timed out). Rule sets have been cleared.
	Done
)

func (r Result) String() string {
	switch r {
	case NoMatch:
		return "NoMatch"
	case Advanced:
		return "Advanced"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Production is the ephemeral state of one in-flight production: the
// pending perform call, the until condition (if any), and the
// rule_matched flag. It is owned and mutated exclusively by an Engine.
type Production struct {
	perform    Perform
	performArg any
	performed  bool // perform has been consumed (run, successfully or not)

	untilPredicate ruleset.Condition
	untilKind      bleevent.CheckKind
	untilCode      uint16
	hasUntilEvent  bool

	timeoutMs     uint64
	hasTimeout    bool
	startedAtMs   uint64

	ruleMatched bool
}

// SetPerform configures the perform action for the next production. It
// may be set at most once per production; Engine.Dispatch consumes it on
// the first event it sees.
func (pr *Production) SetPerform(fn Perform, arg any) {
	pr.perform = fn
	pr.performArg = arg
	pr.performed = false
}

// SetUntilPredicate configures a predicate-based termination condition.
func (pr *Production) SetUntilPredicate(cond ruleset.Condition) {
	pr.untilPredicate = cond
}

// SetUntilEvent configures an event-match termination condition.
func (pr *Production) SetUntilEvent(kind bleevent.CheckKind, code uint16) {
	pr.untilKind = kind
	pr.untilCode = code
	pr.hasUntilEvent = true
}

// SetTimeout configures a millisecond timeout, started immediately against
// clk. A timeout of 0 means "complete on the first event dispatched,
// regardless of rule outcome" per the base spec's boundary scenarios.
func (pr *Production) SetTimeout(ms uint64, clk clock.Clock) {
	pr.timeoutMs = ms
	pr.hasTimeout = true
	pr.startedAtMs = clk.NowMillis()
}

// HasUntil reports whether any termination source is configured. A
// Production with none configured is single-shot.
func (pr *Production) HasUntil() bool {
	return pr.untilPredicate != nil || pr.hasUntilEvent || pr.hasTimeout
}

// MetExpectations reports whether any normal/exclusive rule has fired
// during the current production. Global matches never set this. It
// remains valid (readable by the protocol body) until the next production
// begins reconfiguring things.
func (pr *Production) MetExpectations() bool {
	return pr.ruleMatched
}

// ReturnToIdle clears all transient production state (perform, until
// sources, rule_matched), the analog of clear_expectations plus
// until_clear/until_event_clear run together at full protocol teardown.
// It does not touch the Store; callers clear normal/exclusive rules
// separately (global rules are never touched here).
func (pr *Production) ReturnToIdle() {
	pr.reset()
}

// reset clears all transient production state, leaving the Production
// ready for the next one. It runs when a perform fails and at protocol
// teardown (ReturnToIdle); a production that finishes normally has only
// its perform and until configuration cleared (resetUntilOnly), so
// rule_matched survives. Equivalent to
// clear_expectations + until_clear + until_event_clear in the original,
// minus the rule-set clearing (that is the Store's job).
func (pr *Production) reset() {
	pr.perform = nil
	pr.performArg = nil
	pr.performed = false
	pr.untilPredicate = nil
	pr.hasUntilEvent = false
	pr.untilKind = bleevent.CheckNone
	pr.untilCode = 0
	pr.hasTimeout = false
	pr.timeoutMs = 0
	pr.startedAtMs = 0
	pr.ruleMatched = false
}
