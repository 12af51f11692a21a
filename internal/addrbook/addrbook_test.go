package addrbook

import "testing"

func addr(b byte) Addr {
	return Addr{b, 0, 0, 0, 0, 0}
}

func TestAddMergesRepeatedObservations(t *testing.T) {
	book := New()
	book.Add(addr(0x01), true, false)
	book.Add(addr(0x01), false, false)

	e, ok := book.Lookup(addr(0x01))
	if !ok {
		t.Fatalf("expected entry to be found")
	}
	if e.Connectable != TriBoth {
		t.Fatalf("expected TriBoth after seeing both true and false, got %v", e.Connectable)
	}
	if e.Public != TriFalse {
		t.Fatalf("expected TriFalse for consistent non-public observations, got %v", e.Public)
	}
	if book.Len() != 1 {
		t.Fatalf("expected exactly one distinct address, got %d", book.Len())
	}
}

func TestAddRespectsCapacity(t *testing.T) {
	book := NewWithCapacity(2)
	book.Add(addr(0x01), true, true)
	book.Add(addr(0x02), true, true)
	book.Add(addr(0x03), true, true) // dropped, at capacity

	if book.Len() != 2 {
		t.Fatalf("expected capacity enforced at 2, got %d", book.Len())
	}
	if _, ok := book.Lookup(addr(0x03)); ok {
		t.Fatalf("expected third address to have been dropped")
	}
}

func TestEntriesPreservesInsertionOrder(t *testing.T) {
	book := New()
	book.Add(addr(0x03), true, true)
	book.Add(addr(0x01), true, true)
	book.Add(addr(0x02), true, true)

	entries := book.Entries()
	if len(entries) != 3 || entries[0].Addr != addr(0x03) || entries[1].Addr != addr(0x01) || entries[2].Addr != addr(0x02) {
		t.Fatalf("expected insertion order preserved, got %v", entries)
	}
}

func TestConnectableFilter(t *testing.T) {
	book := New()
	book.Add(addr(0x01), true, false)
	book.Add(addr(0x02), false, false)

	connectable := book.Connectable()
	if len(connectable) != 1 || connectable[0].Addr != addr(0x01) {
		t.Fatalf("expected only addr 0x01 to be connectable, got %v", connectable)
	}
}

func TestResetClearsBook(t *testing.T) {
	book := New()
	book.Add(addr(0x01), true, true)
	book.Reset()

	if book.Len() != 0 {
		t.Fatalf("expected empty book after Reset, got %d entries", book.Len())
	}
}

func TestAddrStringOrdersMostSignificantByteFirst(t *testing.T) {
	a := Addr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	got := a.String()
	want := "06:05:04:03:02:01"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParseAddrRoundTripsWithString(t *testing.T) {
	want := Addr{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	got, err := ParseAddr(want.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseAddrAcceptsDashSeparatedAndBareHexAndIsCaseInsensitive(t *testing.T) {
	want := Addr{0xAB, 0x02, 0x03, 0x04, 0x05, 0x06}
	for _, s := range []string{"06:05:04:03:02:AB", "06-05-04-03-02-ab", "0605040302AB", "0605040302ab"} {
		got, err := ParseAddr(s)
		if err != nil {
			t.Fatalf("ParseAddr(%q): unexpected error: %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseAddr(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseAddrRejectsMalformedInput(t *testing.T) {
	for _, s := range []string{"", "06:05:04:03:02", "06:05:04:03:02:GG", "0605040302ABCD"} {
		if _, err := ParseAddr(s); err == nil {
			t.Fatalf("ParseAddr(%q): expected an error", s)
		}
	}
}
