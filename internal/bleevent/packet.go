// Package bleevent defines the HCI event envelope the core dispatch engine
// consumes and the pure matching function rules are evaluated against.
//
// The core itself is event-agnostic; this package is the one place that
// commits to the BlueNRG-style HCI layout described in the original
// production.cpp's check4event and HCI.h.
package bleevent

// Packet is the opaque transport frame delivered by the host's HCI
// transport. Only EventPacket frames are ever inspected by a Rule; any
// other PacketType is treated as a non-match without touching Payload.
type Packet struct {
	Type    PacketType
	Payload []byte // raw bytes beginning at the HCI event code (offset 0 = Evt)
}

// PacketType mirrors the HCI UART packet type byte (hci_uart_pckt.type).
type PacketType byte

const (
	// EventPacket is the only PacketType the matcher ever evaluates rules
	// against; it corresponds to HCI_EVENT_PKT in the original source.
	EventPacket   PacketType = 0x04
	CommandPacket PacketType = 0x01
	ACLDataPacket PacketType = 0x02
)

// Top-level HCI event codes relevant to the matcher.
const (
	EvtLEMetaEvent byte = 0x3E
	EvtVendor      byte = 0xFF
)

// Vendor (BlueNRG ACI) event codes used by reset_reason_code and
// procedure_complete_code rules.
const (
	EvtBlueHALInitialized       uint16 = 0x0001
	EvtBlueGAPProcedureComplete uint16 = 0x0407
)

// Evt returns the top-level HCI event code, the first byte of the payload.
// Callers must not invoke this on a Packet whose Type is not EventPacket.
func (p *Packet) Evt() byte {
	if len(p.Payload) == 0 {
		return 0
	}
	return p.Payload[0]
}

// evtData returns the bytes following the event code and the one-byte
// parameter-length field that follows it in a real HCI event (evt, plen,
// data...). Production code fed by a real transport always has this
// shape; the decode helpers below assume it.
func (p *Packet) evtData() []byte {
	if len(p.Payload) < 2 {
		return nil
	}
	return p.Payload[2:]
}

// MetaSubevent returns the LE meta event subevent code and whether the
// packet is in fact an LE meta event.
func (p *Packet) MetaSubevent() (byte, bool) {
	if p.Evt() != EvtLEMetaEvent {
		return 0, false
	}
	data := p.evtData()
	if len(data) < 1 {
		return 0, false
	}
	return data[0], true
}

// VendorCode returns the 16-bit vendor (ACI) event code and whether the
// packet is in fact a vendor event.
func (p *Packet) VendorCode() (uint16, bool) {
	if p.Evt() != EvtVendor {
		return 0, false
	}
	data := p.evtData()
	if len(data) < 2 {
		return 0, false
	}
	return uint16(data[0]) | uint16(data[1])<<8, true
}

// ResetReason returns the reason byte of a vendor "HAL initialized" event,
// at offset 2 of the vendor event's own data (per HCI.h/evt_hal_initialized).
func (p *Packet) ResetReason() (byte, bool) {
	code, ok := p.VendorCode()
	if !ok || code != EvtBlueHALInitialized {
		return 0, false
	}
	data := p.evtData()
	if len(data) < 3 {
		return 0, false
	}
	return data[2], true
}

// ProcedureCode returns the procedure byte of a vendor "GAP procedure
// complete" event, at offset 4 of the vendor event's own data (per
// evt_gap_procedure_complete).
func (p *Packet) ProcedureCode() (byte, bool) {
	code, ok := p.VendorCode()
	if !ok || code != EvtBlueGAPProcedureComplete {
		return 0, false
	}
	data := p.evtData()
	if len(data) < 5 {
		return 0, false
	}
	return data[4], true
}
