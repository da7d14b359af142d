package obfuscate

import "testing"

func TestPC98RoundTrip(t *testing.T) {
	for i := 0; i < 512; i++ {
		for b := 0; b < 256; b++ {
			obf := ObfuscatePC98(i, byte(b))
			if got := DeobfuscatePC98(i, obf); got != byte(b) {
				t.Fatalf("offset %d byte 0x%02X: round trip gave 0x%02X", i, b, got)
			}
		}
	}
}

func TestPC98KnownVector(t *testing.T) {
	// bit-rotate right by one: 0x01 -> 0x80, 0x80 -> 0x40
	if got := ObfuscatePC98(0, 0x01); got != 0x80 {
		t.Fatalf("ObfuscatePC98(0, 0x01) = 0x%02X, want 0x80", got)
	}
	if got := ObfuscatePC98(0, 0x80); got != 0x40 {
		t.Fatalf("ObfuscatePC98(0, 0x80) = 0x%02X, want 0x40", got)
	}
}

func TestPC88RoundTrip(t *testing.T) {
	for i := 0; i < 11*13*3; i++ {
		for b := 0; b < 256; b += 7 {
			obf := ObfuscatePC88(i, byte(b))
			if got := DeobfuscatePC88(i, obf); got != byte(b) {
				t.Fatalf("offset %d byte 0x%02X: round trip gave 0x%02X", i, b, got)
			}
		}
	}
}

func TestPC88KeyRecovery(t *testing.T) {
	// Mirrors the historical BASIC combined-key recovery program: a
	// fixed plaintext (128+13-(i%13) at offset i) is obfuscated, and
	// the cipher bytes are unwound by the known additive counter and
	// XORed against a constant 0x80 to recover the combined key.
	plain := make([]byte, 11*13)
	for i := range plain {
		plain[i] = byte(128 + 13 - (i % 13))
	}
	cipher := make([]byte, len(plain))
	for i, p := range plain {
		cipher[i] = ObfuscatePC88(i, p)
	}
	for i := range plain {
		recovered := byte((int(cipher[i])+0x100-11+(i%11))%0x100) ^ 0x80
		if recovered != combinedKey[i%(11*13)] {
			t.Fatalf("offset %d: recovered key byte 0x%02X, want 0x%02X", i, recovered, combinedKey[i%(11*13)])
		}
	}
}
