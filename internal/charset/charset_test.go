package charset

import "testing"

func TestRoundTrip(t *testing.T) {
	for _, tbl := range []*Table{PC98(), PC6001()} {
		all := make([]byte, 256)
		for i := range all {
			all[i] = byte(i)
		}
		s := tbl.Decode(all)
		if n := len([]rune(s)); n != 256 {
			t.Fatalf("%s: decode of all 256 bytes produced %d runes", tbl.Name(), n)
		}
		back, err := tbl.Encode(s)
		if err != nil {
			t.Fatalf("%s: encode: %v", tbl.Name(), err)
		}
		if len(back) != 256 {
			t.Fatalf("%s: round trip produced %d bytes", tbl.Name(), len(back))
		}
		for i := range all {
			if back[i] != all[i] {
				t.Fatalf("%s: byte 0x%02X round-tripped to 0x%02X", tbl.Name(), all[i], back[i])
			}
		}
	}
}

func TestASCIICompatibleRange(t *testing.T) {
	pc98 := PC98()
	s := pc98.Decode([]byte("HELLO"))
	if s != "HELLO" {
		t.Fatalf("expected plain-ASCII bytes to decode unchanged, got %q", s)
	}
}

func TestEncodeRejectsUnmappedRune(t *testing.T) {
	_, err := PC98().Encode("あignore")
	if err == nil {
		t.Fatalf("expected an error encoding a rune with no PC-98 byte mapping")
	}
}

func TestByName(t *testing.T) {
	if tbl, err := ByName("pc98-8bit"); err != nil || tbl != PC98() {
		t.Fatalf("ByName(pc98-8bit) = %v, %v", tbl, err)
	}
	if tbl, err := ByName("pc6001-8bit"); err != nil || tbl != PC6001() {
		t.Fatalf("ByName(pc6001-8bit) = %v, %v", tbl, err)
	}
	if _, err := ByName("nonsense"); err == nil {
		t.Fatalf("expected an error for an unknown table name")
	}
}
