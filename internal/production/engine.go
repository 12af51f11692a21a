package production

import (
	"log/slog"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

// MetricsSink receives counters the Engine bumps as it runs, so the
// hosted build can wire Prometheus without the engine importing it
// directly. A nil sink passed to New is replaced by a no-op.
type MetricsSink interface {
	RuleFired(set ruleset.Set)
	ProductionDone(reason string)
}

type noopSink struct{}

func (noopSink) RuleFired(ruleset.Set) {}
func (noopSink) ProductionDone(string) {}

// Engine runs one Production against the rule Store, implementing the
// precedence and termination rules from the base spec's §4.3. It holds no
// state of its own beyond its collaborators; Production and Store own all
// mutable state across calls.
type Engine struct {
	store   *ruleset.Store
	prod    *Production
	clk     clock.Clock
	metrics MetricsSink
	logger  *slog.Logger
}

// New creates an Engine over the given Store and Production, using clk for
// timeout evaluation. A nil metrics sink disables metrics; a nil logger
// uses slog's default logger.
func New(store *ruleset.Store, prod *Production, clk clock.Clock, metrics MetricsSink, logger *slog.Logger) *Engine {
	if metrics == nil {
		metrics = noopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, prod: prod, clk: clk, metrics: metrics, logger: logger}
}

// Store returns the rule store this engine evaluates against.
func (e *Engine) Store() *ruleset.Store { return e.store }

// Production returns the production state this engine advances.
func (e *Engine) Production() *Production { return e.prod }

// Dispatch runs one event through the production engine: it consumes a
// pending Perform exactly once, then evaluates exclusive, normal, and
// global rules in precedence order, then evaluates the until condition to
// decide whether the production is finished.
//
// It returns (Done, false) when a pending Perform returned false — the
// caller (the Dispatcher) must treat this as a protocol abort signal
// distinct from Done's ordinary "production completed" meaning, because
// no rules were evaluated at all in that case.
func (e *Engine) Dispatch(p *bleevent.Packet) (Result, bool) {
	if p.Type != bleevent.EventPacket {
		e.logger.Debug("non-event packet received, treating as no match", "packet_type", p.Type)
		return NoMatch, true
	}

	if !e.prod.performed {
		if ok := e.RunPerform(); !ok {
			return Done, false
		}
	}

	didRule := e.fireExclusive(p)
	if e.fireNormal(p) {
		didRule = true
	}
	if didRule {
		e.prod.ruleMatched = true
	} else {
		e.fireGlobal(p)
	}

	if reason, done := e.finished(p); done {
		e.store.ClearNormal()
		e.store.ClearExclusive()
		e.prod.resetUntilOnly()
		e.metrics.ProductionDone(reason)
		return Done, true
	}

	if didRule {
		return Advanced, true
	}
	return NoMatch, true
}

// RunPerform eagerly consumes a pending Perform for the current
// production, if one hasn't run yet. The Protocol Stepper calls this
// synchronously when it configures a new production's advance/repeat
// yield, matching the base spec's "perform is invoked before rules on
// the first dispatch of a production" rule without waiting for an
// event to arrive first. Dispatch also calls it lazily, so a
// Perform configured without going through the stepper still runs.
//
// It is idempotent: once a production's Perform has been consumed
// (successfully or not), further calls are no-ops that return true.
func (e *Engine) RunPerform() bool {
	if e.prod.performed {
		return true
	}
	e.prod.performed = true
	e.prod.ruleMatched = false // a new production starts here
	if e.prod.perform == nil {
		return true
	}
	ok := e.prod.perform(e.prod.performArg)
	e.prod.perform = nil
	if ok {
		return true
	}
	e.logger.Warn("perform failed, aborting protocol")
	e.store.ClearNormal()
	e.store.ClearExclusive()
	e.prod.reset()
	e.metrics.ProductionDone("perform_failed")
	return false
}

// fireExclusive runs the action of the first matching exclusive rule, if
// any, and reports whether one fired.
func (e *Engine) fireExclusive(p *bleevent.Packet) bool {
	for _, r := range e.store.Exclusive() {
		if r.Fires(p) {
			r.Run(p)
			e.metrics.RuleFired(ruleset.SetExclusive)
			return true
		}
	}
	return false
}

// fireNormal runs the action of every matching normal rule, in insertion
// order, and reports whether any fired.
func (e *Engine) fireNormal(p *bleevent.Packet) bool {
	fired := false
	for _, r := range e.store.Normal() {
		if r.Fires(p) {
			r.Run(p)
			e.metrics.RuleFired(ruleset.SetNormal)
			fired = true
		}
	}
	return fired
}

// fireGlobal runs the action of the first matching global rule, if any.
// Global matches never set rule_matched; they exist for error/unexpected
// event handling, per the base spec.
func (e *Engine) fireGlobal(p *bleevent.Packet) {
	for _, r := range e.store.Global() {
		if r.Fires(p) {
			r.Run(p)
			e.metrics.RuleFired(ruleset.SetGlobal)
			return
		}
	}
}

// finished evaluates the configured until sources against p and the
// clock, and reports which source satisfied them so the caller's
// ProductionDone metric reflects the actual termination reason instead
// of a single generic string. A production with no until configured at
// all is single-shot and finishes on the first Dispatch call.
func (e *Engine) finished(p *bleevent.Packet) (reason string, done bool) {
	pr := e.prod
	if !pr.HasUntil() {
		return "single_shot", true
	}
	if pr.untilPredicate != nil && pr.untilPredicate(p) {
		return "predicate", true
	}
	if pr.hasUntilEvent && bleevent.Matches(p, pr.untilKind, pr.untilCode) {
		return "event", true
	}
	if pr.hasTimeout && (pr.startedAtMs+pr.timeoutMs) <= e.clk.NowMillis() {
		return "timeout", true
	}
	return "", false
}

// resetUntilOnly clears the until configuration and performed flag at the
// end of a production but preserves ruleMatched, which the protocol body
// reads via MetExpectations before the next SetPerform/rule configuration
// overwrites it.
func (pr *Production) resetUntilOnly() {
	pr.untilPredicate = nil
	pr.hasUntilEvent = false
	pr.untilKind = bleevent.CheckNone
	pr.untilCode = 0
	pr.hasTimeout = false
	pr.timeoutMs = 0
	pr.startedAtMs = 0
	pr.perform = nil
	pr.performArg = nil
	pr.performed = false
}
