package bleevent

import (
	"github.com/dohiam/BLE-protocols/internal/addrbook"
	"github.com/dohiam/BLE-protocols/internal/gattdb"
)

// Additional vendor (ACI) event codes used by the GATT-walk example
// protocol, grounded on the same event family as EvtBlueGAPProcedureComplete
// but for the GATT discovery procedures in procedures.cpp
// (discover_primary_services/discover_included_services/
// discover_characteristcs). The original reports each discovered
// attribute and the list's completion as separate ACI events fired by
// the controller; this module collapses the discovery-response variants
// (primary service found, included service found, characteristic
// found) onto one generic "attribute found" vendor event carrying a
// single attribute per firing, since get_attribute_info already treats
// all three the same way once handed an attr_list entry.
const (
	EvtBlueGATTProcedureComplete uint16 = 0x0C01
	EvtBlueGATTAttributeFound    uint16 = 0x0C06
	EvtBlueGATTValueFound        uint16 = 0x0C04
)

// LE meta event subevent codes for connection lifecycle events.
const (
	SubeventLEConnComplete      byte = 0x01
	SubeventLEAdvertisingReport byte = 0x02
)

// EvtDisconnComplete is the top-level HCI event code for a completed
// disconnection, grounded on get_data.cpp's get_disconnection_complete.
const EvtDisconnComplete byte = 0x05

// AdvertisingReport is the decoded shape of one LE advertising report,
// grounded on get_data.cpp's get_advertising_info and le_advertising_info.
// Only the first report in a packet is decoded, matching
// get_advertising_info's assumption of a single report per event.
type AdvertisingReport struct {
	EventType   byte
	Addr        addrbook.Addr
	Connectable bool
	Public      bool
	Data        []byte
	RSSI        int8
}

// AdvertisingReport decodes p as an LE advertising report, if it is one.
func (p *Packet) AdvertisingReport() (*AdvertisingReport, bool) {
	sub, ok := p.MetaSubevent()
	if !ok || sub != SubeventLEAdvertisingReport {
		return nil, false
	}
	data := p.evtData()
	if len(data) < 2 {
		return nil, false
	}
	// data[0] is the subevent code, data[1] is num_reports; the report
	// itself starts at data[2].
	report := data[2:]
	if len(report) < 9 {
		return nil, false
	}
	evtType := report[0]
	addrType := report[1]
	var addr addrbook.Addr
	copy(addr[:], report[2:8])
	dataLen := int(report[8])
	if len(report) < 9+dataLen+1 {
		return nil, false
	}
	advData := report[9 : 9+dataLen]
	rssi := int8(report[9+dataLen])
	return &AdvertisingReport{
		EventType:   evtType,
		Addr:        addr,
		Connectable: evtType == 0x00 || evtType == 0x01, // ADV_IND or ADV_DIRECT_IND
		Public:      addrType == 0,
		Data:        advData,
		RSSI:        rssi,
	}, true
}

// ConnectionComplete decodes p as an LE connection complete subevent,
// grounded on get_data.cpp's get_connection_handle. status is the HCI
// status byte (0 means success); handle and peer are only meaningful
// when ok is true and status == 0.
func (p *Packet) ConnectionComplete() (status byte, handle uint16, peer addrbook.Addr, ok bool) {
	sub, isMeta := p.MetaSubevent()
	if !isMeta || sub != SubeventLEConnComplete {
		return 0, 0, addrbook.Addr{}, false
	}
	data := p.evtData()
	if len(data) < 12 {
		return 0, 0, addrbook.Addr{}, false
	}
	// data[0] = subevent code, data[1] = status, data[2:4] = handle,
	// data[4] = role, data[5] = peer address type, data[6:12] = peer addr.
	body := data[1:]
	status = body[0]
	handle = uint16(body[1]) | uint16(body[2])<<8
	copy(peer[:], body[5:11])
	return status, handle, peer, true
}

// DisconnectionComplete decodes p as a disconnection complete event,
// grounded on get_data.cpp's get_disconnection_complete.
func (p *Packet) DisconnectionComplete() (handle uint16, reason byte, ok bool) {
	if p.Evt() != EvtDisconnComplete {
		return 0, 0, false
	}
	data := p.evtData()
	if len(data) < 4 {
		return 0, 0, false
	}
	// data[0] = status, data[1:3] = handle, data[3] = reason.
	return uint16(data[1]) | uint16(data[2])<<8, data[3], true
}

// AttributeFound decodes p as a generic GATT attribute-discovered
// vendor event, grounded on get_attribute_info. Layout: connection
// handle (2 bytes), starting handle (2 bytes), ending handle (2
// bytes), a 16-bit-UUID flag byte, then 2 or 16 UUID bytes.
func (p *Packet) AttributeFound() (connHandle uint16, attr gattdb.AttributeInfo, ok bool) {
	code, isVendor := p.VendorCode()
	if !isVendor || code != EvtBlueGATTAttributeFound {
		return 0, gattdb.AttributeInfo{}, false
	}
	data := p.evtData()
	if len(data) < 9 {
		return 0, gattdb.AttributeInfo{}, false
	}
	body := data[2:]
	connHandle = uint16(body[0]) | uint16(body[1])<<8
	startingHandle := uint16(body[2]) | uint16(body[3])<<8
	endingHandle := uint16(body[4]) | uint16(body[5])<<8
	is16Bit := body[6] != 0
	uuidLen := 16
	if is16Bit {
		uuidLen = 2
	}
	if len(body) < 7+uuidLen {
		return 0, gattdb.AttributeInfo{}, false
	}
	var uuid gattdb.UUID
	uuid.Is16Bit = is16Bit
	copy(uuid.Bytes[:], body[7:7+uuidLen])
	return connHandle, gattdb.AttributeInfo{
		ConnectionHandle: connHandle,
		StartingHandle:   startingHandle,
		EndingHandle:     endingHandle,
		UUID:             uuid,
	}, true
}

// ValueFound decodes p as a generic GATT characteristic-value vendor
// event, grounded on get_handle_value_pair.
func (p *Packet) ValueFound() (gattdb.HandleValuePair, bool) {
	code, isVendor := p.VendorCode()
	if !isVendor || code != EvtBlueGATTValueFound {
		return gattdb.HandleValuePair{}, false
	}
	data := p.evtData()
	if len(data) < 6 {
		return gattdb.HandleValuePair{}, false
	}
	body := data[2:]
	connHandle := uint16(body[0]) | uint16(body[1])<<8
	handle := uint16(body[2]) | uint16(body[3])<<8
	value := append([]byte(nil), body[4:]...)
	return gattdb.HandleValuePair{ConnectionHandle: connHandle, Handle: handle, Value: value}, true
}
