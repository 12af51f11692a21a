package bleevent

import "testing"

func metaEvent(subevent byte) *Packet {
	return &Packet{Type: EventPacket, Payload: []byte{EvtLEMetaEvent, 0x01, subevent}}
}

func vendorEvent(code uint16, extra ...byte) *Packet {
	payload := []byte{EvtVendor, byte(1 + len(extra)), byte(code), byte(code >> 8)}
	payload = append(payload, extra...)
	return &Packet{Type: EventPacket, Payload: payload}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		name string
		pkt  *Packet
		kind CheckKind
		code uint16
		want bool
	}{
		{"event code match", &Packet{Type: EventPacket, Payload: []byte{0x05, 0x00}}, CheckEventCode, 0x05, true},
		{"event code mismatch", &Packet{Type: EventPacket, Payload: []byte{0x05, 0x00}}, CheckEventCode, 0x06, false},
		{"meta subevent match", metaEvent(0x01), CheckMetaSubevent, 0x01, true},
		{"meta subevent mismatch", metaEvent(0x01), CheckMetaSubevent, 0x02, false},
		{"meta subevent on non-meta", &Packet{Type: EventPacket, Payload: []byte{0x05, 0x00}}, CheckMetaSubevent, 0x01, false},
		{"vendor ecode match", vendorEvent(0x0123), CheckVendorCode, 0x0123, true},
		{"vendor ecode mismatch", vendorEvent(0x0123), CheckVendorCode, 0x0124, false},
		{"reset reason match", vendorEvent(EvtBlueHALInitialized, 0x02), CheckResetReason, 0x02, true},
		{"reset reason wrong vendor code", vendorEvent(0x9999, 0x00, 0x02), CheckResetReason, 0x02, false},
		{"procedure complete match", vendorEvent(EvtBlueGAPProcedureComplete, 0, 0, 0x07), CheckProcedureComplete, 0x07, true},
		{"check none never matches", &Packet{Type: EventPacket, Payload: []byte{0x05, 0x00}}, CheckNone, 0x05, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Matches(c.pkt, c.kind, c.code)
			if got != c.want {
				t.Errorf("Matches(%s, %v, 0x%x) = %v, want %v", Describe(c.pkt), c.kind, c.code, got, c.want)
			}
		})
	}
}

func TestNonEventPacketNeverMatches(t *testing.T) {
	p := &Packet{Type: CommandPacket, Payload: []byte{0x05, 0x00}}
	if Matches(p, CheckEventCode, 0x05) {
		t.Fatalf("expected no match on non-event packet payload read via Evt()")
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(&Packet{Type: CommandPacket}); got == "" {
		t.Fatalf("Describe returned empty string")
	}
	if got := Describe(metaEvent(0x01)); got == "" {
		t.Fatalf("Describe returned empty string")
	}
}
