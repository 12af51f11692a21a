package examples

import (
	"testing"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
	"github.com/dohiam/BLE-protocols/internal/bleevent"
	"github.com/dohiam/BLE-protocols/internal/clock"
	"github.com/dohiam/BLE-protocols/internal/dispatcher"
	"github.com/dohiam/BLE-protocols/internal/gattdb"
	"github.com/dohiam/BLE-protocols/internal/hcisetup"
	"github.com/dohiam/BLE-protocols/internal/production"
	"github.com/dohiam/BLE-protocols/internal/ruleset"
)

type fakeTransport struct {
	wroteAddr  hcisetup.MACAddr
	wroteCalls int
}

func (f *fakeTransport) Init() error  { return nil }
func (f *fakeTransport) Reset() error { return nil }
func (f *fakeTransport) WritePublicAddr(addr hcisetup.MACAddr) error {
	f.wroteAddr = addr
	f.wroteCalls++
	return nil
}

type discoverCharCall struct {
	connHandle, start, end uint16
}

type fakeController struct {
	discoveryResult bool
	connectResult   bool
	terminateResult bool
	primaryResult   bool
	charResult      bool

	discoveryCalls  int
	connectAddr     addrbook.Addr
	connectCalls    int
	terminateCalls  int
	terminateHandle uint16
	primaryCalls    []uint16
	charCalls       []discoverCharCall
}

func newFakeController() *fakeController {
	return &fakeController{discoveryResult: true, connectResult: true, terminateResult: true, primaryResult: true, charResult: true}
}

func (f *fakeController) StartGeneralDiscovery() bool {
	f.discoveryCalls++
	return f.discoveryResult
}

func (f *fakeController) CreateConnection(addr addrbook.Addr) bool {
	f.connectCalls++
	f.connectAddr = addr
	return f.connectResult
}

func (f *fakeController) Terminate(connHandle uint16) bool {
	f.terminateCalls++
	f.terminateHandle = connHandle
	return f.terminateResult
}

func (f *fakeController) DiscoverPrimaryServices(connHandle uint16) bool {
	f.primaryCalls = append(f.primaryCalls, connHandle)
	return f.primaryResult
}

func (f *fakeController) DiscoverCharacteristics(connHandle, startHandle, endHandle uint16) bool {
	f.charCalls = append(f.charCalls, discoverCharCall{connHandle, startHandle, endHandle})
	return f.charResult
}

func newHarness(clk clock.Clock) (*production.Engine, *dispatcher.Dispatcher) {
	store := ruleset.New(ruleset.DefaultCapacity)
	prod := &production.Production{}
	eng := production.New(store, prod, clk, nil, nil)
	return eng, dispatcher.New(eng, nil, nil)
}

func le16(v uint16) (byte, byte) { return byte(v), byte(v >> 8) }

func plainPacket(code byte) *bleevent.Packet {
	return &bleevent.Packet{Type: bleevent.EventPacket, Payload: []byte{code, 0x00}}
}

func vendorPacket(code uint16, body ...byte) *bleevent.Packet {
	lo, hi := le16(code)
	payload := append([]byte{bleevent.EvtVendor, 0x00, lo, hi}, body...)
	return &bleevent.Packet{Type: bleevent.EventPacket, Payload: payload}
}

func metaPacket(sub byte, body ...byte) *bleevent.Packet {
	payload := append([]byte{bleevent.EvtLEMetaEvent, 0x00, sub}, body...)
	return &bleevent.Packet{Type: bleevent.EventPacket, Payload: payload}
}

func attributeFoundPacket(connHandle, start, end uint16, uuid16 bool, uuidBytes []byte) *bleevent.Packet {
	connLo, connHi := le16(connHandle)
	startLo, startHi := le16(start)
	endLo, endHi := le16(end)
	is16 := byte(0)
	if uuid16 {
		is16 = 1
	}
	body := []byte{connLo, connHi, startLo, startHi, endLo, endHi, is16}
	body = append(body, uuidBytes...)
	return vendorPacket(bleevent.EvtBlueGATTAttributeFound, body...)
}

func procedureCompletePacket() *bleevent.Packet {
	return vendorPacket(bleevent.EvtBlueGATTProcedureComplete)
}

func TestGATTWalkProtocolDiscoversServicesAndCharacteristics(t *testing.T) {
	db := gattdb.New()
	devAddr := addrbook.Addr{1, 2, 3, 4, 5, 6}
	devIdx := db.AddDevice(devAddr)
	const connHandle uint16 = 7

	ctrl := newFakeController()
	clk := clock.NewFake(0)
	_, d := newHarness(clk)

	proto := NewGATTWalkProtocol(ctrl, db, devIdx, connHandle)
	d.SetCurrentProtocol(proto)

	if len(ctrl.primaryCalls) != 1 || ctrl.primaryCalls[0] != connHandle {
		t.Fatalf("expected one DiscoverPrimaryServices(%d) call, got %v", connHandle, ctrl.primaryCalls)
	}

	// Two primary services discovered, then the discovery procedure completes.
	d.OnEvent(attributeFoundPacket(connHandle, 0x0010, 0x0020, true, []byte{0x00, 0x18}))
	d.OnEvent(attributeFoundPacket(connHandle, 0x0030, 0x0040, true, []byte{0x01, 0x18}))
	d.OnEvent(procedureCompletePacket())

	if !d.IsRunning() {
		t.Fatalf("expected protocol still running after primary service discovery, to walk characteristics next")
	}
	if len(ctrl.charCalls) != 1 || ctrl.charCalls[0] != (discoverCharCall{connHandle, 0x0010, 0x0020}) {
		t.Fatalf("expected characteristic discovery started for the first service, got %v", ctrl.charCalls)
	}

	// One characteristic under the first service, then that discovery completes.
	d.OnEvent(attributeFoundPacket(connHandle, 0x0011, 0x0011, true, []byte{0x02, 0x2A}))
	d.OnEvent(procedureCompletePacket())

	if !d.IsRunning() {
		t.Fatalf("expected protocol still running to walk the second service's characteristics")
	}
	if len(ctrl.charCalls) != 2 || ctrl.charCalls[1] != (discoverCharCall{connHandle, 0x0030, 0x0040}) {
		t.Fatalf("expected characteristic discovery started for the second service, got %v", ctrl.charCalls)
	}

	// No characteristics under the second service; discovery completes empty.
	d.OnEvent(procedureCompletePacket())

	if d.IsRunning() {
		t.Fatalf("expected protocol to have finished once no unprocessed services remain")
	}

	if got := db.Len(); got != 1+2+1 { // device + 2 services + 1 characteristic
		t.Fatalf("expected 4 records in the database, got %d", got)
	}
	svc0, _ := db.Get(1)
	if svc0.Kind != gattdb.KindPrimaryService || svc0.Attribute.StartingHandle != 0x0010 {
		t.Fatalf("unexpected first service record: %+v", svc0)
	}
	char0, _ := db.Get(3)
	if char0.Kind != gattdb.KindCharacteristic || char0.Parent != 1 {
		t.Fatalf("expected the characteristic to be parented under the first service, got %+v", char0)
	}
}

func TestGATTWalkProtocolAbortsWhenPrimaryDiscoveryFails(t *testing.T) {
	db := gattdb.New()
	devIdx := db.AddDevice(addrbook.Addr{})
	ctrl := newFakeController()
	ctrl.primaryResult = false
	clk := clock.NewFake(0)
	_, d := newHarness(clk)

	proto := NewGATTWalkProtocol(ctrl, db, devIdx, 1)
	d.SetCurrentProtocol(proto)

	if d.IsRunning() {
		t.Fatalf("expected the protocol to abort immediately when DiscoverPrimaryServices fails")
	}
}

func TestDiscoveryProtocolRecordsAdvertisingReportsUntilTimeout(t *testing.T) {
	book := addrbook.New()
	ctrl := newFakeController()
	clk := clock.NewFake(0)
	_, d := newHarness(clk)

	proto := NewDiscoveryProtocol(ctrl, book, 1000, clk)
	d.SetCurrentProtocol(proto)

	if ctrl.discoveryCalls != 1 {
		t.Fatalf("expected StartGeneralDiscovery to be called once, got %d", ctrl.discoveryCalls)
	}
	if !d.IsRunning() {
		t.Fatalf("expected the scan to still be running before its timeout elapses")
	}

	addr := addrbook.Addr{9, 9, 9, 9, 9, 9}
	d.OnEvent(metaPacket(bleevent.SubeventLEAdvertisingReport, 0x01, 0x00, 0x00, addr[0], addr[1], addr[2], addr[3], addr[4], addr[5], 0x00, 0x00))

	if book.Len() != 1 {
		t.Fatalf("expected one address recorded, got %d", book.Len())
	}

	clk.Advance(1000)
	d.OnEvent(plainPacket(0x99)) // unrelated event, just needed to drive a dispatch at the new clock reading

	if d.IsRunning() {
		t.Fatalf("expected the scan to finish once its timeout elapsed")
	}
	if book.Len() != 1 {
		t.Fatalf("expected no further addresses recorded after timeout, got %d", book.Len())
	}
}

func TestConnectAndObserveProtocol(t *testing.T) {
	target := addrbook.Addr{5, 5, 5, 5, 5, 5}
	ctrl := newFakeController()
	clk := clock.NewFake(0)
	_, d := newHarness(clk)

	proto := NewConnectAndObserveProtocol(ctrl, target, 500, clk, nil)
	d.SetCurrentProtocol(proto)

	if ctrl.connectCalls != 1 || ctrl.connectAddr != target {
		t.Fatalf("expected CreateConnection(%v) to be called once, got calls=%d addr=%v", target, ctrl.connectCalls, ctrl.connectAddr)
	}

	const connHandle uint16 = 42
	connLo, connHi := le16(connHandle)
	d.OnEvent(metaPacket(bleevent.SubeventLEConnComplete, 0x00, connLo, connHi, 0x00, 0x00, target[0], target[1], target[2], target[3], target[4], target[5]))

	if !d.IsRunning() {
		t.Fatalf("expected the protocol still running to observe notifications")
	}

	// A notification arrives before the observe timeout elapses.
	value := []byte{0x01, 0x02}
	notifyLo, notifyHi := le16(connHandle)
	handleLo, handleHi := le16(0x0099)
	d.OnEvent(vendorPacket(bleevent.EvtBlueGATTValueFound, append([]byte{notifyLo, notifyHi, handleLo, handleHi}, value...)...))

	if !d.IsRunning() {
		t.Fatalf("expected the protocol still running after a single notification, before its timeout elapses")
	}

	clk.Advance(500)
	d.OnEvent(plainPacket(0x99)) // drives a dispatch at the new clock reading; also triggers the disconnect step

	if d.IsRunning() {
		t.Fatalf("expected the protocol to finish after disconnecting")
	}
	if ctrl.terminateCalls != 1 || ctrl.terminateHandle != connHandle {
		t.Fatalf("expected Terminate(%d) to be called once, got calls=%d handle=%d", connHandle, ctrl.terminateCalls, ctrl.terminateHandle)
	}
}

func TestHCIBringUpProtocolWritesAddressOnceInitialized(t *testing.T) {
	tr := &fakeTransport{}
	custom := hcisetup.MACAddr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	setup := hcisetup.New(tr, nil).WithMACAddr(custom)

	clk := clock.NewFake(0)
	_, d := newHarness(clk)
	proto := NewHCIBringUpProtocol(setup)
	d.SetCurrentProtocol(proto)

	if !d.IsRunning() {
		t.Fatalf("expected the protocol still running, waiting for the HAL-initialized event")
	}

	d.OnEvent(vendorPacket(bleevent.EvtBlueHALInitialized, 0x01)) // reason byte, value unused here

	if d.IsRunning() {
		t.Fatalf("expected the protocol to finish once the address write fired")
	}
	if tr.wroteCalls != 1 || tr.wroteAddr != custom {
		t.Fatalf("expected the configured address written once, got calls=%d addr=%v", tr.wroteCalls, tr.wroteAddr)
	}
}

func TestProtocolChainStepperInstallsNextOnlyAfterPreviousFinishes(t *testing.T) {
	tr1, tr2 := &fakeTransport{}, &fakeTransport{}
	setup1 := hcisetup.New(tr1, nil).WithMACAddr(hcisetup.MACAddr{0x01})
	setup2 := hcisetup.New(tr2, nil).WithMACAddr(hcisetup.MACAddr{0x02})

	clk := clock.NewFake(0)
	_, d := newHarness(clk)
	chain := NewProtocolChainStepper(d, NewHCIBringUpProtocol(setup1), NewHCIBringUpProtocol(setup2))

	chain.Run()
	if !d.IsRunning() || tr1.wroteCalls != 0 {
		t.Fatalf("expected the first bring-up installed but not yet finished, got running=%v tr1.wroteCalls=%d", d.IsRunning(), tr1.wroteCalls)
	}

	chain.Run() // should be a no-op: the first protocol is still running
	if tr2.wroteCalls != 0 {
		t.Fatalf("expected the second bring-up not installed yet, got tr2.wroteCalls=%d", tr2.wroteCalls)
	}

	d.OnEvent(vendorPacket(bleevent.EvtBlueHALInitialized, 0x01))
	if d.IsRunning() || tr1.wroteCalls != 1 {
		t.Fatalf("expected the first bring-up finished and written once, got running=%v tr1.wroteCalls=%d", d.IsRunning(), tr1.wroteCalls)
	}

	chain.Run()
	if !d.IsRunning() || tr2.wroteCalls != 0 {
		t.Fatalf("expected the second bring-up installed but not yet finished, got running=%v tr2.wroteCalls=%d", d.IsRunning(), tr2.wroteCalls)
	}

	d.OnEvent(vendorPacket(bleevent.EvtBlueHALInitialized, 0x01))
	if d.IsRunning() || tr2.wroteCalls != 1 {
		t.Fatalf("expected the second bring-up finished and written once, got running=%v tr2.wroteCalls=%d", d.IsRunning(), tr2.wroteCalls)
	}
	if !chain.Done() {
		t.Fatalf("expected the chain stepper to report done once both protocols finished")
	}
}

func TestConnectAndObserveProtocolAbortsWhenConnectFails(t *testing.T) {
	ctrl := newFakeController()
	ctrl.connectResult = false
	clk := clock.NewFake(0)
	_, d := newHarness(clk)

	proto := NewConnectAndObserveProtocol(ctrl, addrbook.Addr{}, 500, clk, nil)
	d.SetCurrentProtocol(proto)

	if d.IsRunning() {
		t.Fatalf("expected the protocol to abort immediately when CreateConnection fails")
	}
	if ctrl.terminateCalls != 0 {
		t.Fatalf("expected Terminate to never be called when the connection never succeeded")
	}
}
