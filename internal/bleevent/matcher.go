package bleevent

// CheckKind discriminates the shape of match a Rule performs against an
// incoming Packet. It mirrors the check_t enum from production.h.
type CheckKind int

const (
	// CheckNone never matches. It is the zero value so an accidentally
	// unconfigured Rule is inert rather than matching everything.
	CheckNone CheckKind = iota
	// CheckEventCode matches on the top-level HCI event code.
	CheckEventCode
	// CheckMetaSubevent matches an LE meta event by its subevent code.
	CheckMetaSubevent
	// CheckVendorCode matches a vendor (ACI) event by its 16-bit code.
	CheckVendorCode
	// CheckResetReason matches a vendor "HAL initialized" event by reason byte.
	CheckResetReason
	// CheckProcedureComplete matches a vendor "GAP procedure complete" event
	// by procedure byte.
	CheckProcedureComplete
	// CheckCondition bypasses Code entirely; the Rule carries its own
	// predicate and Matches is never consulted for it.
	CheckCondition
)

func (k CheckKind) String() string {
	switch k {
	case CheckEventCode:
		return "event_code"
	case CheckMetaSubevent:
		return "meta_subevent_code"
	case CheckVendorCode:
		return "vendor_ecode"
	case CheckResetReason:
		return "reset_reason_code"
	case CheckProcedureComplete:
		return "procedure_complete_code"
	case CheckCondition:
		return "condition"
	default:
		return "none"
	}
}

// Matches reports whether an event Packet satisfies a check_kind+code pair.
// It is a pure function with no side effects, called by the production
// engine once per rule per dispatched event. code is interpreted per kind;
// for CheckCondition the caller should not call Matches at all, since the
// rule carries its own predicate (see ruleset.Rule).
func Matches(p *Packet, kind CheckKind, code uint16) bool {
	if p.Type != EventPacket {
		return false
	}
	switch kind {
	case CheckEventCode:
		return uint16(p.Evt()) == code
	case CheckMetaSubevent:
		sub, ok := p.MetaSubevent()
		return ok && uint16(sub) == code
	case CheckVendorCode:
		vc, ok := p.VendorCode()
		return ok && vc == code
	case CheckResetReason:
		reason, ok := p.ResetReason()
		return ok && uint16(reason) == code
	case CheckProcedureComplete:
		proc, ok := p.ProcedureCode()
		return ok && uint16(proc) == code
	default:
		return false
	}
}
