// Package ruleset holds the rule store: three fixed-capacity, ordered rule
// sets (normal, exclusive, global) that the production engine evaluates on
// every dispatched event.
//
// Grounded on production.h/production.cpp's rule_t and the three parallel
// rules/exclusive_rules/global_rules arrays. Storage here stays
// fixed-capacity by design — see DESIGN.md — mirroring the original's
// explicit avoidance of dynamic allocation.
package ruleset

import "github.com/dohiam/BLE-protocols/internal/bleevent"

// DefaultCapacity is the default number of rules each set can hold,
// matching MAX_RULES in production.h.
const DefaultCapacity = 20

// Action is invoked when a Rule matches an event. Its return value is
// informational only in this release (see "Action-return semantics" in
// SPEC_FULL.md); only
// a failed Perform aborts a protocol.
type Action func(p *bleevent.Packet, arg any) bool

// Condition is a pure predicate used by CheckCondition rules, and by a
// Production's until-predicate.
type Condition func(p *bleevent.Packet) bool

// Rule pairs an expectation (a check-kind+code pair, or a Condition) with
// an Action to run when it fires. It is the atomic reactive unit described
// by the base spec's data model.
type Rule struct {
	Kind      bleevent.CheckKind
	Code      uint16
	Condition Condition // only consulted when Kind == CheckCondition
	Action    Action
	Arg       any
}

// Fires reports whether r matches p, per its Kind.
func (r Rule) Fires(p *bleevent.Packet) bool {
	if r.Kind == bleevent.CheckCondition {
		return r.Condition != nil && r.Condition(p)
	}
	return bleevent.Matches(p, r.Kind, r.Code)
}

// Run invokes r's Action against p, if any, and returns its result. A Rule
// with a nil Action still "fires" for rule_matched/exclusivity purposes;
// Run simply has no effect.
func (r Rule) Run(p *bleevent.Packet) bool {
	if r.Action == nil {
		return true
	}
	return r.Action(p, r.Arg)
}
