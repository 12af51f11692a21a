// Package examples provides worked protocols exercising components
// (A)-(E) end to end: an HCI bring-up protocol, a GATT-walk that
// discovers services and characteristics into a gattdb.Database, a
// discovery scan that records advertisers into an addrbook.Book, and a
// connect-and-observe protocol that connects to a given address,
// listens for notifications for a while, then disconnects; plus a
// Stepper that installs several protocols in turn. None is part of the
// core dispatch engine; they are the ready-made sketches SPEC_FULL.md
// §2.2 calls for.
//
// Grounded on procedures.cpp/.h and get_data.cpp/.h: start_observation,
// start_directed_scan, start_connection, terminate_connection,
// discover_primary_services, discover_included_services,
// discover_characteristcs, and handle_connection_update.
package examples

import (
	"log/slog"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
	"github.com/dohiam/BLE-protocols/internal/gattdb"
	"github.com/dohiam/BLE-protocols/internal/hcisetup"
	"github.com/dohiam/BLE-protocols/internal/protocol"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

// NewProtocolChainStepper builds a StepFunction (component E's
// non-protocol coroutine, `internal/protocol.Stepper`) that installs
// each protocol in chain onto d in order, waiting for one to finish
// before installing the next. A host calls Run on every tick of its
// own polling loop (the same "do a little work each call" shape a
// Protocol's body uses internally, but here driving several
// unrelated Protocols rather than one Protocol's own steps) — e.g.
// scan for peers, then walk the GATT database of whichever one a
// caller picked once the scan's results are in. Grounded on
// SPEC_FULL.md's "generic step-functions (non-protocol coroutines)
// for orchestrating multiple protocols" as a real use of the
// STEP_FUNCTION analog `internal/protocol.Stepper`, rather than
// Protocol's own step list, since advancing from one protocol to the
// next here depends on the Dispatcher's run state, not on anything a
// single Protocol's rules/until configuration can express.
func NewProtocolChainStepper(d *dispatcher.Dispatcher, chain ...*protocol.Protocol) *protocol.Stepper {
	steps := make([]protocol.StepperStep, len(chain))
	for i, p := range chain {
		p := p
		steps[i] = func() { d.SetCurrentProtocol(p) }
	}
	return protocol.NewStepper(steps...).SkipIf(d.IsRunning)
}

// NewHCIBringUpProtocol builds the single-step protocol a host installs
// first: bring the transport up, then, when the first HAL-initialized
// event arrives, write the configured public address and finish.
// Grounded on start_HCI's single RUN_PRODUCTION call
// awaiting the controller's post-reset event.
func NewHCIBringUpProtocol(setup *hcisetup.Setup) *protocol.Protocol {
	return protocol.New("hci-bring-up", func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Production().SetPerform(setup.StartHCI, nil)
		eng.Store().AddNormal(ruleset.Rule{
			Kind:   bleevent.CheckVendorCode,
			Code:   bleevent.EvtBlueHALInitialized,
			Action: setup.SetMACAddrAction,
		})
		eng.Production().SetUntilEvent(bleevent.CheckVendorCode, bleevent.EvtBlueHALInitialized)
		return protocol.RunProductionStep(eng)
	})
}

// Controller abstracts the GAP/GATT procedure calls these protocols
// perform, so they are testable without a real BlueNRG controller.
// Grounded on the aci_gap_*/aci_gatt_* calls procedures.cpp wraps.
type Controller interface {
	StartGeneralDiscovery() bool
	CreateConnection(addr addrbook.Addr) bool
	Terminate(connHandle uint16) bool
	DiscoverPrimaryServices(connHandle uint16) bool
	DiscoverCharacteristics(connHandle, startHandle, endHandle uint16) bool
}

// NewGATTWalkProtocol builds a protocol that discovers all primary
// services on connHandle, then all characteristics of each discovered
// service, recording everything in db under deviceIndex. Grounded on
// discover_primary_services/discover_characteristcs, looped per
// service the way the base implementation drives included-service and
// characteristic discovery one service at a time.
func NewGATTWalkProtocol(ctrl Controller, db *gattdb.Database, deviceIndex int, connHandle uint16) *protocol.Protocol {
	return protocol.New("gatt-walk",
		discoverPrimaryServicesStep(ctrl, db, deviceIndex, connHandle),
		discoverCharacteristicsStep(ctrl, db, deviceIndex),
	)
}

func discoverPrimaryServicesStep(ctrl Controller, db *gattdb.Database, deviceIndex int, connHandle uint16) protocol.Step {
	return func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Production().SetPerform(func(any) bool { return ctrl.DiscoverPrimaryServices(connHandle) }, nil)
		eng.Store().AddNormal(ruleset.Rule{
			Kind: bleevent.CheckVendorCode,
			Code: bleevent.EvtBlueGATTAttributeFound,
			Action: func(p *bleevent.Packet, arg any) bool {
				_, attr, ok := p.AttributeFound()
				if !ok {
					return false
				}
				db.AddAttribute(gattdb.KindPrimaryService, deviceIndex, attr.ConnectionHandle, attr)
				return true
			},
		})
		eng.Production().SetUntilEvent(bleevent.CheckVendorCode, bleevent.EvtBlueGATTProcedureComplete)
		return protocol.RunProductionStep(eng)
	}
}

// discoverCharacteristicsStep repeats once per unprocessed primary
// service belonging to deviceIndex, discovering its characteristics,
// then advances once none remain.
//
// Unlike RunProductionAndRepeatIf, the repeat decision here is always
// "keep going" once a service's discovery has been configured: whether
// more work remains is re-checked fresh on the next re-entry, after
// the just-configured production has actually run to completion,
// rather than predicted at configure time. Deciding "no more work" in
// the same call that configures a still-pending production would mark
// the protocol done before that production's until condition has a
// chance to fire (see DESIGN.md).
func discoverCharacteristicsStep(ctrl Controller, db *gattdb.Database, deviceIndex int) protocol.Step {
	return func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		svcIdx, ok := db.RecallFirstUnprocessedOfTypeForDevice(gattdb.KindPrimaryService, deviceIndex)
		if !ok {
			return protocol.Advance
		}
		svc, _ := db.Get(svcIdx)
		db.MarkProcessed(svcIdx)

		eng.Production().SetPerform(func(any) bool {
			return ctrl.DiscoverCharacteristics(svc.ConnectionHandle, svc.Attribute.StartingHandle, svc.Attribute.EndingHandle)
		}, nil)
		eng.Store().AddNormal(ruleset.Rule{
			Kind: bleevent.CheckVendorCode,
			Code: bleevent.EvtBlueGATTAttributeFound,
			Action: func(p *bleevent.Packet, arg any) bool {
				_, attr, ok := p.AttributeFound()
				if !ok {
					return false
				}
				db.AddAttribute(gattdb.KindCharacteristic, svcIdx, attr.ConnectionHandle, attr)
				return true
			},
		})
		eng.Production().SetUntilEvent(bleevent.CheckVendorCode, bleevent.EvtBlueGATTProcedureComplete)

		if !eng.RunPerform() {
			return protocol.Abort
		}
		return protocol.Repeat
	}
}

// NewDiscoveryProtocol builds a single-shot protocol that starts the
// general discovery procedure and records every advertising report
// seen within scanMs milliseconds into book, the analog of
// start_directed_scan paired with get_advertising_info. A caller
// typically runs this once before picking a target address for
// NewConnectAndObserveProtocol.
func NewDiscoveryProtocol(ctrl Controller, book *addrbook.Book, scanMs uint64, clk clock.Clock) *protocol.Protocol {
	scanStep := func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Production().SetPerform(func(any) bool { return ctrl.StartGeneralDiscovery() }, nil)
		eng.Store().AddNormal(ruleset.Rule{
			Kind: bleevent.CheckMetaSubevent,
			Code: uint16(bleevent.SubeventLEAdvertisingReport),
			Action: func(p *bleevent.Packet, arg any) bool {
				report, ok := p.AdvertisingReport()
				if !ok {
					return false
				}
				book.Add(report.Addr, report.Connectable, report.Public)
				return true
			},
		})
		eng.Production().SetTimeout(scanMs, clk)
		return protocol.RunProductionStep(eng)
	}
	// A trailing no-op step, so the scan step is never the protocol's
	// last one: its configured timeout still has to actually elapse
	// and be dispatched before the protocol is considered done, rather
	// than the cursor reaching the end of the step list (and tearing
	// the scan's rules down) in the very call that started it.
	doneStep := func(ctx *protocol.Context) protocol.Yield {
		return protocol.Advance
	}
	return protocol.New("discovery-scan", scanStep, doneStep)
}

// NewConnectAndObserveProtocol builds a protocol that connects to
// target, listens for GATT notifications for notifyTimeoutMs
// milliseconds (logging each one seen), then disconnects. Grounded on
// start_connection, handle_connection_update (the general-discovery
// role is assumed already started, e.g. via NewDiscoveryProtocol), and
// terminate_connection.
func NewConnectAndObserveProtocol(ctrl Controller, target addrbook.Addr, notifyTimeoutMs uint64, clk clock.Clock, logger *slog.Logger) *protocol.Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	var connHandle uint16

	connectStep := func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Production().SetPerform(func(any) bool { return ctrl.CreateConnection(target) }, nil)
		eng.Store().AddExclusive(ruleset.Rule{
			Kind: bleevent.CheckMetaSubevent,
			Code: uint16(bleevent.SubeventLEConnComplete),
			Action: func(p *bleevent.Packet, arg any) bool {
				status, handle, peer, ok := p.ConnectionComplete()
				if !ok || status != 0 {
					return false
				}
				connHandle = handle
				logger.Info("connection established", "addr", peer, "handle", connHandle)
				return true
			},
		})
		eng.Production().SetUntilEvent(bleevent.CheckMetaSubevent, uint16(bleevent.SubeventLEConnComplete))
		return protocol.RunProductionStep(eng)
	}

	observeStep := func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Store().AddNormal(ruleset.Rule{
			Kind: bleevent.CheckVendorCode,
			Code: bleevent.EvtBlueGATTValueFound,
			Action: func(p *bleevent.Packet, arg any) bool {
				v, ok := p.ValueFound()
				if !ok {
					return false
				}
				logger.Info("notification received", "handle", v.Handle, "len", len(v.Value))
				return true
			},
		})
		eng.Production().SetTimeout(notifyTimeoutMs, clk)
		return protocol.RunProductionStep(eng)
	}

	// Single-shot: terminate_connection's own return value is the only
	// thing this step waits on; the actual EVT_DISCONN_COMPLETE that
	// follows is not handled by this protocol and does not gate its
	// completion, matching terminate_connection's fire-and-forget
	// shape in the original (it does not itself wait for the event).
	disconnectStep := func(ctx *protocol.Context) protocol.Yield {
		eng := ctx.Engine
		eng.Production().SetPerform(func(any) bool { return ctrl.Terminate(connHandle) }, nil)
		return protocol.RunProductionStep(eng)
	}

	return protocol.New("connect-and-observe", connectStep, observeStep, disconnectStep)
}
