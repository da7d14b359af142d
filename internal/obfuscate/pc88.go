package obfuscate

import "encoding/hex"

// combinedKeyHex is the 143-byte PC-8001/8801 BASIC combined XOR key,
// reproduced verbatim from the historical key-recovery program: save
// the plaintext byte 128+13-(i%13) at each offset i in 0..142, undo
// the 11-step counter on each ciphertext byte, and XOR the result
// with 0x80 to get this table.
const combinedKeyHex = "" +
	"C0CFCC8562810C42C304E5E6CD" +
	"1175B690E49735EDB2FC6E3777" +
	"6B603086DD384415392DD44D62" +
	"ED760929ACC0CFC48357C1CB74" +
	"D4D978D1271175BE96D1D7F2DB" +
	"A521F3009D6B603880E8788323" +
	"2EF0497A88ED76012F998008F2" +
	"948A5CFC9ED4D970D71251B288" +
	"810C4AC531A521FB06A82BA70E" +
	"9735E5B4C92EF0417CBDADB137" +
	"38441D3F18948A54FAAB941E46"

var combinedKey = func() [143]byte {
	b, err := hex.DecodeString(combinedKeyHex)
	if err != nil {
		panic("obfuscate: malformed PC88 combined key: " + err.Error())
	}
	if len(b) != 143 {
		panic("obfuscate: PC88 combined key must be 143 bytes")
	}
	var out [143]byte
	copy(out[:], b)
	return out
}()

// descCounter13 and descCounter11 are the two interleaved descending
// counters (13,12,...,1 and 11,10,...,1) the cipher advances offset
// by offset; reading them by i%13 / i%11 avoids a Python-style
// negative-step slice.
func descCounter13(i int) int { return 13 - (i % 13) }
func descCounter11(i int) int { return 11 - (i % 11) }

// DeobfuscatePC88 reverses PC-8001/8801 BASIC's combined XOR key
// cipher for the byte at offset i within the file.
func DeobfuscatePC88(i int, b byte) byte {
	v := (int(b) + 0x100 - descCounter11(i)) % 0x100
	v ^= int(combinedKey[i%(11*13)])
	return byte((descCounter13(i) + v) % 0x100)
}

// ObfuscatePC88 is DeobfuscatePC88's inverse for the byte at offset i.
func ObfuscatePC88(i int, b byte) byte {
	v := (int(b) + 0x100 - descCounter13(i)) % 0x100
	v ^= int(combinedKey[i%(11*13)])
	return byte((descCounter11(i) + v) % 0x100)
}
