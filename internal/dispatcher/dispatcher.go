// Package dispatcher implements the Dispatcher (component E): the
// single event entry point that owns the nullable current-protocol
// pointer and funnels every incoming packet into the Production Engine,
// re-entering the current Protocol's body whenever a production
// finishes.
//
// Grounded on protocol.cpp's run_current_protocol, set_current_protocol,
// get_current_protocol, clear_current_protocol, wait_for_protocol_finish,
// and protocol_running.
package dispatcher

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/production"
	"github.com/dohiam/BLE-protocols/internal/protocol"
)

// MetricsSink receives dispatcher-level counters distinct from the
// production engine's per-rule counters: protocol starts, clean
// completions, and aborts.
type MetricsSink interface {
	ProtocolStarted(name string)
	ProtocolFinished(name string, aborted bool)
}

type noopSink struct{}

func (noopSink) ProtocolStarted(string)        {}
func (noopSink) ProtocolFinished(string, bool) {}

// Dispatcher owns the single current Protocol, if any, and is the only
// thing that should call Engine.Dispatch. The base spec assigns it no
// concurrency of its own: on_event is meant to be called from the one
// thread that owns the event stream (see the admin HTTP surface's
// single-writer funneling in SPEC_FULL.md §5 for how a concurrent host
// still honors that).
type Dispatcher struct {
	eng     *production.Engine
	current *protocol.Protocol
	runID   string
	logger  *slog.Logger
	metrics MetricsSink
}

// New creates a Dispatcher over the given Production Engine.
func New(eng *production.Engine, metrics MetricsSink, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = noopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{eng: eng, metrics: metrics, logger: logger}
}

// SetCurrentProtocol installs p as the running protocol, mints a fresh
// run ID for it (the base spec has no concept of a run ID; this is the
// ambient-stack correlation ID SPEC_FULL.md §2.1 adds so every log line
// and metric for one protocol activation can be grouped), and runs its
// first step immediately so its first production is configured before
// the next event arrives.
func (d *Dispatcher) SetCurrentProtocol(p *protocol.Protocol) {
	d.current = p
	d.runID = uuid.New().String()
	d.logger.Info("protocol started", "protocol", p.Name, "run_id", d.runID)
	d.metrics.ProtocolStarted(p.Name)
	if !p.Advance(d.eng, d.logger.With("run_id", d.runID)) {
		d.finishCurrent(true)
	}
}

// ClearCurrentProtocol tears down the running protocol (if any) and
// clears its normal/exclusive rules and until configuration. Global
// rules are deliberately left alone, matching clear_current_protocol's
// calls to clear_expectations/clear_exclusive_expectations/until_clear/
// until_event_clear — global rules persist until a caller clears them
// explicitly, even across a protocol teardown.
func (d *Dispatcher) ClearCurrentProtocol() {
	if d.current == nil {
		return
	}
	d.eng.Store().ClearNormal()
	d.eng.Store().ClearExclusive()
	d.eng.Production().ReturnToIdle()
	d.current = nil
	d.runID = ""
}

// Get returns the running protocol, or nil if none is running.
func (d *Dispatcher) Get() *protocol.Protocol { return d.current }

// RunID returns the correlation ID minted for the currently running
// protocol, or the empty string if none is running.
func (d *Dispatcher) RunID() string { return d.runID }

// IsRunning reports whether a protocol is currently installed.
func (d *Dispatcher) IsRunning() bool { return d.current != nil }

// WaitForFinish busy-polls until no protocol is running, sleeping
// interval between checks. It exists for parity with the base
// implementation's wait_for_protocol_finish and is not load-bearing in
// the hosted build, which instead observes completion via metrics/logs.
func (d *Dispatcher) WaitForFinish(interval time.Duration) {
	for d.IsRunning() {
		time.Sleep(interval)
	}
}

// OnEvent is the single entry point called by the host for every
// incoming packet. It dispatches the packet to the production engine
// and, when the current production finishes, re-enters the current
// protocol's body to configure the next one. Grounded on
// run_current_protocol's three-way switch on the production result.
func (d *Dispatcher) OnEvent(p *bleevent.Packet) {
	result, ok := d.eng.Dispatch(p)
	if !ok {
		d.logger.Warn("production aborted by failed perform", "protocol", d.protocolName())
		d.finishCurrent(true)
		return
	}

	switch result {
	case production.Done:
		d.logger.Debug("current production finished", "protocol", d.protocolName())
		if d.current == nil {
			return
		}
		if !d.current.Advance(d.eng, d.logger.With("run_id", d.runID)) {
			d.finishCurrent(true)
			return
		}
		if d.current.Done() {
			d.finishCurrent(false)
		}
	case production.Advanced:
		d.logger.Debug("current production ran a rule", "protocol", d.protocolName())
	case production.NoMatch:
		d.logger.Debug("current production did not run any rule", "protocol", d.protocolName())
	}
}

func (d *Dispatcher) protocolName() string {
	if d.current == nil {
		return ""
	}
	return d.current.Name
}

func (d *Dispatcher) finishCurrent(aborted bool) {
	name := d.protocolName()
	if name == "" {
		return
	}
	d.logger.Info("protocol finished", "protocol", name, "run_id", d.runID, "aborted", aborted)
	d.metrics.ProtocolFinished(name, aborted)
	d.ClearCurrentProtocol()
}
