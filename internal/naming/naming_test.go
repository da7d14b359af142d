package naming

import (
	"testing"

	"github.com/nullsector/fat8d88/internal/classify"
)

func TestResolveLeavesAllowListedExtensionAlone(t *testing.T) {
	p := NewPolicy()
	got := p.Resolve("HELLO", "TXT", classify.KindASCII, Tags{})
	if got != "HELLO.TXT" {
		t.Fatalf("got %q, want HELLO.TXT", got)
	}
}

func TestResolveAppendsDefaultExtensionWhenNotAllowed(t *testing.T) {
	p := NewPolicy()
	got := p.Resolve("DATA", "DAT", classify.KindBinary, Tags{})
	if got != "DATA.DAT.bin" {
		t.Fatalf("got %q, want DATA.DAT.bin", got)
	}
}

func TestResolveAppendsFixedOrderFlagSuffixes(t *testing.T) {
	p := NewPolicy()
	got := p.Resolve("DATA", "DAT", classify.KindBinary, Tags{Obfuscated: true, ReadOnly: true})
	if got != "DATA.DAT.bin.r-o.obf" {
		t.Fatalf("got %q, want DATA.DAT.bin.r-o.obf (fixed order: r-o before obf)", got)
	}
}

func TestResolveDisambiguatesCollisionsStartingAtTwo(t *testing.T) {
	p := NewPolicy()
	first := p.Resolve("SAME", "TXT", classify.KindASCII, Tags{})
	second := p.Resolve("SAME", "TXT", classify.KindASCII, Tags{})
	if first != "SAME.TXT" {
		t.Fatalf("first = %q, want SAME.TXT", first)
	}
	if second != "SAME (2).TXT" {
		t.Fatalf("second = %q, want \"SAME (2).TXT\"", second)
	}
}

func TestResolveDisambiguationIsCaseInsensitive(t *testing.T) {
	p := NewPolicy()
	p.Resolve("Same", "txt", classify.KindASCII, Tags{})
	second := p.Resolve("SAME", "TXT", classify.KindASCII, Tags{})
	if second == "SAME.TXT" {
		t.Fatalf("expected a case-insensitive collision with the first entry")
	}
}

func TestResolveQuotesReservedDeviceNames(t *testing.T) {
	p := NewPolicy()
	got := p.Resolve("CON", "", classify.KindASCII, Tags{})
	if got == "CON.asc" {
		t.Fatalf("expected CON to be quoted as unsafe on host filesystems")
	}
}

func TestBASICAllowsBinExtension(t *testing.T) {
	p := NewPolicy()
	got := p.Resolve("PROG", "BIN", classify.KindBASIC, Tags{})
	if got != "PROG.BIN" {
		t.Fatalf("got %q, want PROG.BIN (bin is an allowed BASIC extension)", got)
	}
}
