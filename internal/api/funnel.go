package api

import (
	"context"
	"log/slog"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
)

// MetricsSink receives a callback once per packet the funnel hands off
// to Dispatcher.OnEvent.
type MetricsSink interface {
	EventHandled()
}

type noopMetricsSink struct{}

func (noopMetricsSink) EventHandled() {}

// EventFunnel serializes concurrent HTTP-submitted packets onto the one
// goroutine that is allowed to call Dispatcher.OnEvent, per SPEC_FULL.md
// §5: the production engine and protocol bodies are written assuming a
// single caller, so the admin HTTP surface's request goroutines never
// call OnEvent directly. Grounded on the same single-writer idiom the
// teacher's engine.Engine uses internally for its worker pool, but
// expressed here as one consumer goroutine draining a buffered channel
// rather than a pool, since the dispatch core itself does not want
// concurrency.
//
// The same goroutine also drains RunTask, so anything else that touches
// Dispatcher/Engine/Store state — e.g. a protocol.Stepper orchestrating
// several Protocols in sequence — can be serialized against OnEvent
// without a second goroutine racing it.
type EventFunnel struct {
	d       *dispatcher.Dispatcher
	in      chan *bleevent.Packet
	tasks   chan func()
	metrics MetricsSink
	logger  *slog.Logger
	done    chan struct{}
	stopped chan struct{}
}

// NewEventFunnel creates a funnel with the given channel depth and
// starts its draining goroutine. Call Stop to shut it down. metrics may
// be nil.
func NewEventFunnel(d *dispatcher.Dispatcher, depth int, metrics MetricsSink, logger *slog.Logger) *EventFunnel {
	if depth <= 0 {
		depth = 1
	}
	if metrics == nil {
		metrics = noopMetricsSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &EventFunnel{
		d:       d,
		in:      make(chan *bleevent.Packet, depth),
		tasks:   make(chan func(), depth),
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *EventFunnel) run() {
	defer close(f.stopped)
	for {
		select {
		case p := <-f.in:
			f.d.OnEvent(p)
			f.metrics.EventHandled()
		case task := <-f.tasks:
			task()
		case <-f.done:
			return
		}
	}
}

// Submit enqueues p for the drain goroutine to hand to the dispatcher.
// It returns false without blocking if the channel is full, so a burst
// of HTTP submissions backs off rather than piling up unboundedly.
func (f *EventFunnel) Submit(p *bleevent.Packet) bool {
	select {
	case f.in <- p:
		return true
	default:
		f.logger.Warn("event funnel full, dropping packet")
		return false
	}
}

// RunTask enqueues fn to run on the drain goroutine, the same
// serialization point OnEvent calls go through. It returns false
// without blocking if the task queue is full. Used to drive work that
// mutates the same Dispatcher/Engine/Store state OnEvent does — e.g. a
// protocol.Stepper's periodic tick — without a second goroutine racing
// OnEvent's reads and writes of that state.
func (f *EventFunnel) RunTask(fn func()) bool {
	select {
	case f.tasks <- fn:
		return true
	default:
		f.logger.Warn("event funnel full, dropping task")
		return false
	}
}

// SubmitWait enqueues p, blocking until either it is accepted or ctx is
// done.
func (f *EventFunnel) SubmitWait(ctx context.Context, p *bleevent.Packet) error {
	select {
	case f.in <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return context.Canceled
	}
}

// Stop terminates the drain goroutine and waits for it to return.
// Packets already enqueued but not yet drained are discarded.
func (f *EventFunnel) Stop() {
	close(f.done)
	<-f.stopped
}

// Utilization reports the fraction of the funnel's buffer currently
// occupied, used by the readiness probe.
func (f *EventFunnel) Utilization() float64 {
	return float64(len(f.in)) / float64(cap(f.in))
}
