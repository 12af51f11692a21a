// Package gattdb is a simple, append-only database of devices and the
// services/characteristics discovered under them. It tracks a
// processed/unprocessed flag per entry so a caller can walk "give me
// the next unprocessed primary service for this device" style queries
// while a multi-step discovery protocol runs.
//
// Grounded on db.cpp/db.h (the "dora" — device-or-attribute — record
// union becomes a Kind-tagged Record struct here, Go having no space
// pressure that would justify a real union) and get_data.h's
// attribute_info_t/handle_value_pair_t/uuid_t.
package gattdb

import (
	"fmt"
	"strings"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
)

// Kind distinguishes what a Record holds, the analog of db_type.
type Kind int

const (
	KindDevice Kind = iota
	KindPrimaryService
	KindIncludedService
	KindCharacteristic
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindPrimaryService:
		return "primary_service"
	case KindIncludedService:
		return "included_service"
	case KindCharacteristic:
		return "characteristic"
	default:
		return "unknown"
	}
}

// UUID is a 16-bit or 128-bit GATT UUID, grounded on get_data.h's uuid_t.
type UUID struct {
	Is16Bit bool
	Bytes   [16]byte
}

// String renders the UUID as hex, using only the first two bytes when
// Is16Bit is set.
func (u UUID) String() string {
	if u.Is16Bit {
		return fmt.Sprintf("%02X%02X", u.Bytes[1], u.Bytes[0])
	}
	var sb strings.Builder
	for i := 15; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02X", u.Bytes[i])
	}
	return sb.String()
}

// AttributeInfo is the discovery-time shape of a service or
// characteristic: its handle range and UUID. Grounded on get_data.h's
// attribute_info_t.
type AttributeInfo struct {
	ConnectionHandle uint16
	StartingHandle   uint16
	EndingHandle     uint16
	UUID             UUID
}

// HandleValuePair is a read characteristic value by handle. Grounded
// on get_data.h's handle_value_pair_t.
type HandleValuePair struct {
	ConnectionHandle uint16
	Handle           uint16
	Value            []byte
}

// Record is one entry in the database: either a device or an
// attribute (service/characteristic) under a device, linked to its
// parent by index. Processed marks whether a walk over entries of a
// kind has already visited this one.
type Record struct {
	Kind             Kind
	Parent           int // index of the parent record; -1 for devices
	ConnectionHandle uint16
	Processed        bool

	Device addrbook.Addr // valid when Kind == KindDevice

	Attribute *AttributeInfo   // valid for discovered services/characteristics
	Value     *HandleValuePair // valid once a characteristic's value has been read
}

// MaxRecords mirrors MAX_RECORDS.
const MaxRecords = 500

// Database is the append-only record store.
type Database struct {
	capacity int
	records  []Record
}

// New creates an empty Database with the default capacity.
func New() *Database { return NewWithCapacity(MaxRecords) }

// NewWithCapacity creates an empty Database capped at capacity records.
func NewWithCapacity(capacity int) *Database {
	if capacity <= 0 {
		capacity = MaxRecords
	}
	return &Database{capacity: capacity}
}

// AddDevice appends a device record and returns its index, the analog
// of add_device_to_device_db. Returns -1 if the database is full.
func (db *Database) AddDevice(addr addrbook.Addr) int {
	if len(db.records) >= db.capacity {
		return -1
	}
	db.records = append(db.records, Record{Kind: KindDevice, Parent: -1, Device: addr})
	return len(db.records) - 1
}

// AddAttribute appends a service/characteristic record under parent
// and returns its index, the analog of add_attribute_to_device_db.
// Returns -1 if the database is full, or if attr carries a real
// (nonzero) starting handle that already exists under parent for the
// same kind — the original's plain array-append had no such guard,
// but a discovery response retried after a timeout should not
// silently duplicate an already-recorded attribute. Handle 0 is never
// a valid GATT handle, so attributes recorded without one (e.g. in
// tests that don't care about specific handles) are never deduped.
func (db *Database) AddAttribute(kind Kind, parent int, connHandle uint16, attr AttributeInfo) int {
	if len(db.records) >= db.capacity {
		return -1
	}
	if attr.StartingHandle != 0 {
		for i := range db.records {
			r := &db.records[i]
			if r.Kind == kind && r.Parent == parent && r.Attribute != nil && r.Attribute.StartingHandle == attr.StartingHandle {
				return -1
			}
		}
	}
	db.records = append(db.records, Record{
		Kind:             kind,
		Parent:           parent,
		ConnectionHandle: connHandle,
		Attribute:        &attr,
	})
	return len(db.records) - 1
}

// SetValue records a read characteristic value against an existing
// attribute record.
func (db *Database) SetValue(index int, value HandleValuePair) {
	if index < 0 || index >= len(db.records) {
		return
	}
	db.records[index].Value = &value
}

// Get returns the record at index.
func (db *Database) Get(index int) (Record, bool) {
	if index < 0 || index >= len(db.records) {
		return Record{}, false
	}
	return db.records[index], true
}

// Len returns the total number of records, devices and attributes
// combined.
func (db *Database) Len() int { return len(db.records) }

// MarkProcessed flags index as having been handled by whatever walk
// is currently consuming the database.
func (db *Database) MarkProcessed(index int) {
	if index < 0 || index >= len(db.records) {
		return
	}
	db.records[index].Processed = true
}

// RecallFirstUnprocessed returns the index of the first unprocessed
// record of any kind, or (-1, false) if none remain.
func (db *Database) RecallFirstUnprocessed() (int, bool) {
	for i := range db.records {
		if !db.records[i].Processed {
			return i, true
		}
	}
	return -1, false
}

// RecallFirstUnprocessedOfType returns the index of the first
// unprocessed record of the given kind.
func (db *Database) RecallFirstUnprocessedOfType(kind Kind) (int, bool) {
	for i := range db.records {
		if !db.records[i].Processed && db.records[i].Kind == kind {
			return i, true
		}
	}
	return -1, false
}

// RecallFirstUnprocessedOfTypeForDevice returns the index of the first
// unprocessed record of the given kind whose parent chain leads back
// to deviceIndex — the operation RECALL_PRIMARY_SERVICE/
// RECALL_INCLUDED_SERVICE expand to.
func (db *Database) RecallFirstUnprocessedOfTypeForDevice(kind Kind, deviceIndex int) (int, bool) {
	for i := range db.records {
		r := &db.records[i]
		if !r.Processed && r.Kind == kind && db.belongsToDevice(i, deviceIndex) {
			return i, true
		}
	}
	return -1, false
}

// NumUnprocessedOfTypeForDevice counts unprocessed records of kind
// belonging to deviceIndex, backing the PRIMARY_SERVICES_TODO and
// INCLUDED_SERVICES_TODO checks.
func (db *Database) NumUnprocessedOfTypeForDevice(kind Kind, deviceIndex int) int {
	n := 0
	for i := range db.records {
		r := &db.records[i]
		if !r.Processed && r.Kind == kind && db.belongsToDevice(i, deviceIndex) {
			n++
		}
	}
	return n
}

// MarkAllUnprocessedOfTypeForDevice resets the processed flag for
// every record of kind under deviceIndex, the analog of
// RESET_ALL_PRIMARY_SERVICES.
func (db *Database) MarkAllUnprocessedOfTypeForDevice(kind Kind, deviceIndex int) {
	for i := range db.records {
		r := &db.records[i]
		if r.Kind == kind && db.belongsToDevice(i, deviceIndex) {
			r.Processed = false
		}
	}
}

// LookupByHandle returns the index of the attribute record on
// connHandle whose handle covers handle: a characteristic's exact
// StartingHandle, or failing that a service's [StartingHandle,
// EndingHandle] range. A characteristic's handle always falls inside
// its parent service's range too, so exact matches are checked first
// to resolve to the more specific record. Used to resolve a notified
// handle-value pair back to the attribute it belongs to.
func (db *Database) LookupByHandle(connHandle, handle uint16) (int, bool) {
	for i := range db.records {
		r := &db.records[i]
		if r.Kind == KindCharacteristic && r.Attribute != nil && r.ConnectionHandle == connHandle && handle == r.Attribute.StartingHandle {
			return i, true
		}
	}
	for i := range db.records {
		r := &db.records[i]
		if r.Kind != KindDevice && r.Kind != KindCharacteristic && r.Attribute != nil && r.ConnectionHandle == connHandle &&
			handle >= r.Attribute.StartingHandle && handle <= r.Attribute.EndingHandle {
			return i, true
		}
	}
	return -1, false
}

// belongsToDevice walks the parent chain from index up to a device
// record and reports whether it is deviceIndex. A primary service's
// parent is the device directly; a characteristic's parent is a
// service whose parent is the device, so this walks at most two hops.
func (db *Database) belongsToDevice(index, deviceIndex int) bool {
	for index >= 0 {
		r := &db.records[index]
		if r.Kind == KindDevice {
			return index == deviceIndex
		}
		index = r.Parent
	}
	return false
}

// Dump renders the database hierarchically by device, then service,
// then characteristic, the analog of print_device_db.
func (db *Database) Dump() string {
	var sb strings.Builder
	for i, r := range db.records {
		if r.Kind != KindDevice {
			continue
		}
		fmt.Fprintf(&sb, "device[%d] %s\n", i, r.Device)
		for j, svc := range db.records {
			if svc.Kind != KindPrimaryService || !db.belongsToDevice(j, i) {
				continue
			}
			fmt.Fprintf(&sb, "  service[%d] uuid=%s handles=%d-%d\n", j, svc.Attribute.UUID, svc.Attribute.StartingHandle, svc.Attribute.EndingHandle)
			for k, chr := range db.records {
				if chr.Kind != KindCharacteristic || chr.Parent != j {
					continue
				}
				fmt.Fprintf(&sb, "    characteristic[%d] uuid=%s handle=%d\n", k, chr.Attribute.UUID, chr.Attribute.StartingHandle)
			}
		}
	}
	return sb.String()
}
