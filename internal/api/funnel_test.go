package api

import (
	"testing"
	"time"

	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
	"github.com/dohiam/BLE-protocols/internal/production"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

func newTestDispatcher() *dispatcher.Dispatcher {
	store := ruleset.New(ruleset.DefaultCapacity)
	prod := &production.Production{}
	eng := production.New(store, prod, clock.NewSystem(), nil, nil)
	return dispatcher.New(eng, nil, nil)
}

func TestEventFunnelDrainsIntoDispatcher(t *testing.T) {
	d := newTestDispatcher()
	f := NewEventFunnel(d, 4, nil, nil)
	defer f.Stop()

	if !f.Submit(&bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{0x01, 0x00}}) {
		t.Fatalf("expected Submit to accept a packet under capacity")
	}

	deadline := time.After(time.Second)
	for f.Utilization() > 0 {
		select {
		case <-deadline:
			t.Fatalf("expected the drain goroutine to consume the queued packet")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestEventFunnelSubmitRejectsWhenFull(t *testing.T) {
	d := newTestDispatcher()
	f := NewEventFunnel(d, 1, nil, nil)
	f.Stop() // stop the drain goroutine so the one-slot buffer stays full once written

	if !f.Submit(&bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{0x01, 0x00}}) {
		t.Fatalf("expected the first submission to fill the one-slot buffer")
	}
	if f.Submit(&bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{0x01, 0x00}}) {
		t.Fatalf("expected Submit to reject a packet once the buffer is full")
	}
}

func TestEventFunnelUtilizationReflectsQueueDepth(t *testing.T) {
	d := newTestDispatcher()
	f := NewEventFunnel(d, 10, nil, nil)
	f.Stop() // stop the drain goroutine so queued packets accumulate

	for i := 0; i < 5; i++ {
		f.Submit(&bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{0x01, 0x00}})
	}
	if got := f.Utilization(); got != 0.5 {
		t.Fatalf("expected utilization 0.5 with 5/10 slots filled, got %v", got)
	}
}

func TestEventFunnelRunTaskRunsOnDrainGoroutine(t *testing.T) {
	d := newTestDispatcher()
	f := NewEventFunnel(d, 4, nil, nil)
	defer f.Stop()

	done := make(chan struct{})
	if !f.RunTask(func() { close(done) }) {
		t.Fatalf("expected RunTask to accept a task under capacity")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected the drain goroutine to run the queued task")
	}
}

type countingMetricsSink struct{ n int }

func (c *countingMetricsSink) EventHandled() { c.n++ }

func TestEventFunnelCountsHandledPacketsAtDrain(t *testing.T) {
	d := newTestDispatcher()
	m := &countingMetricsSink{}
	f := NewEventFunnel(d, 4, m, nil)
	defer f.Stop()

	f.Submit(&bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{0x01, 0x00}})

	deadline := time.After(time.Second)
	for m.n == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected EventHandled to be called once the packet drains")
		case <-time.After(time.Millisecond):
		}
	}
}
