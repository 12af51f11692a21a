package bleevent

import (
	"fmt"
	"log/slog"
)

// Describe renders a Packet as a short human-readable string for logging,
// the Go-rewrite equivalent of the original dbprint.cpp's per-event hex/
// field dump. It is deliberately terse: the event code plus, for the
// vendor events it knows, one decoded field; raw payload bytes are never
// rendered, here or through LogValue.
func Describe(p *Packet) string {
	if p.Type != EventPacket {
		return fmt.Sprintf("non-event packet (type=0x%02x)", p.Type)
	}
	switch p.Evt() {
	case EvtLEMetaEvent:
		if sub, ok := p.MetaSubevent(); ok {
			return fmt.Sprintf("le_meta_event(subevent=0x%02x)", sub)
		}
	case EvtVendor:
		if code, ok := p.VendorCode(); ok {
			switch code {
			case EvtBlueHALInitialized:
				if reason, ok := p.ResetReason(); ok {
					return fmt.Sprintf("vendor_event(hal_initialized, reason=0x%02x)", reason)
				}
			case EvtBlueGAPProcedureComplete:
				if proc, ok := p.ProcedureCode(); ok {
					return fmt.Sprintf("vendor_event(gap_procedure_complete, procedure=0x%02x)", proc)
				}
			}
			return fmt.Sprintf("vendor_event(ecode=0x%04x)", code)
		}
	}
	return fmt.Sprintf("event(evt=0x%02x, %d bytes)", p.Evt(), len(p.Payload))
}

// LogValue lets a *Packet be passed directly to slog calls and render via
// Describe instead of dumping its raw struct fields.
func (p *Packet) LogValue() slog.Value {
	return slog.StringValue(Describe(p))
}
