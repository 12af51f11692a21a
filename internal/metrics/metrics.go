// Package metrics adapts the teacher's package-level Prometheus
// counters into an injectable Sink implementing production.MetricsSink
// and dispatcher.MetricsSink, so a test can construct one against a
// private registry instead of colliding with the process-wide default
// registry every other package-level promauto var would register
// against.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

// Sink is the Prometheus-backed counters for one dispatcher host.
// Implements production.MetricsSink and dispatcher.MetricsSink.
type Sink struct {
	protocolsStarted  prometheus.Counter
	protocolsFinished *prometheus.CounterVec // labelled "outcome": ok|aborted
	rulesFired        *prometheus.CounterVec // labelled "set": normal|exclusive|global
	productionsDone   *prometheus.CounterVec // labelled "reason"
	rulesDropped      *prometheus.CounterVec // labelled "set"
	eventsHandled     prometheus.Counter
}

// New creates a Sink registering its collectors against reg. Pass nil
// to register against the process-wide default registry, the way
// promauto's package-level vars did in the teacher's version; tests
// should pass a fresh prometheus.NewRegistry() instead so repeated
// calls across test cases don't panic on duplicate registration.
func New(reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		protocolsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ble_protocols_started_total",
			Help: "Total number of protocols installed as the current protocol.",
		}),
		protocolsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ble_protocols_finished_total",
			Help: "Total number of protocols that finished, labelled by outcome.",
		}, []string{"outcome"}),
		rulesFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ble_rules_fired_total",
			Help: "Total number of rule matches, labelled by rule set.",
		}, []string{"set"}),
		productionsDone: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ble_productions_done_total",
			Help: "Total number of productions that finished, labelled by reason.",
		}, []string{"reason"}),
		rulesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ble_rules_dropped_total",
			Help: "Total number of rules dropped because their set was at capacity, labelled by set.",
		}, []string{"set"}),
		eventsHandled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ble_events_handled_total",
			Help: "Total number of packets passed to Dispatcher.OnEvent.",
		}),
	}
}

// RuleFired implements production.MetricsSink.
func (s *Sink) RuleFired(set ruleset.Set) {
	s.rulesFired.WithLabelValues(string(set)).Inc()
}

// ProductionDone implements production.MetricsSink.
func (s *Sink) ProductionDone(reason string) {
	s.productionsDone.WithLabelValues(reason).Inc()
}

// ProtocolStarted implements dispatcher.MetricsSink.
func (s *Sink) ProtocolStarted(name string) {
	s.protocolsStarted.Inc()
}

// ProtocolFinished implements dispatcher.MetricsSink.
func (s *Sink) ProtocolFinished(name string, aborted bool) {
	outcome := "ok"
	if aborted {
		outcome = "aborted"
	}
	s.protocolsFinished.WithLabelValues(outcome).Inc()
}

// RuleDropped is wired to ruleset.Store.OnCapacityExceeded by the host.
func (s *Sink) RuleDropped(set ruleset.Set) {
	s.rulesDropped.WithLabelValues(string(set)).Inc()
}

// EventHandled is called once per packet the event funnel hands to
// Dispatcher.OnEvent. Wired at internal/api.EventFunnel's drain point,
// not at Submit, so a packet dropped for a full funnel is not counted.
func (s *Sink) EventHandled() {
	s.eventsHandled.Inc()
}
