// Package naming turns a decoded FAT8 directory entry (name,
// extension, and classification) into a safe, collision-free host
// filesystem name: decode/trim/join, normalize the extension against
// an allow-list keyed by content classification, append fixed-order
// attribute-flag suffixes, and disambiguate collisions by inserting a
// counted suffix after the base name.
package naming

import (
	"fmt"
	"strings"

	"github.com/nullsector/fat8d88/internal/classify"
)

var reservedDeviceNamesUpper = func() map[string]bool {
	m := map[string]bool{"CLOCK$": true, "CON": true, "PRN": true, "AUX": true, "NUL": true}
	for n := 1; n <= 9; n++ {
		m[fmt.Sprintf("COM%d", n)] = true
		m[fmt.Sprintf("LPT%d", n)] = true
	}
	return m
}()

var pathUnsafe = "/\\:*?\"<>|"

// Tags is the fixed-order set of attribute-flag suffixes this policy
// appends, per spec: .r-1, .r-2, .r-3, .r-o, .vfy, .obf, in that order,
// only those present.
type Tags struct {
	Reserved1      bool
	Reserved2      bool
	Reserved3      bool
	ReadOnly       bool
	ReadAfterWrite bool
	Obfuscated     bool
}

func (t Tags) suffix() string {
	var b strings.Builder
	if t.Reserved1 {
		b.WriteString(".r-1")
	}
	if t.Reserved2 {
		b.WriteString(".r-2")
	}
	if t.Reserved3 {
		b.WriteString(".r-3")
	}
	if t.ReadOnly {
		b.WriteString(".r-o")
	}
	if t.ReadAfterWrite {
		b.WriteString(".vfy")
	}
	if t.Obfuscated {
		b.WriteString(".obf")
	}
	return b.String()
}

// extensionAllowList and extensionDefault implement the classification
// -driven extension-normalization rule: if the decoded extension
// (case-insensitively) isn't already one of the kind's accepted
// extensions, its default extension is appended.
func extensionAllowList(kind classify.Kind) (allowed []string, fallback string) {
	switch kind {
	case classify.KindBinary:
		return []string{"bin", "cod"}, "bin"
	case classify.KindBASIC:
		return []string{"bas", "n88", "nip", "bin"}, "bas"
	default:
		return []string{"asc", "txt"}, "asc"
	}
}

func extensionAllowed(kind classify.Kind, ext string) bool {
	allowed, _ := extensionAllowList(kind)
	ext = strings.ToLower(ext)
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// sanitize replaces characters a host filesystem can't represent (path
// separators and friends, plus PUA round-trip placeholders) with an
// underscore, and flags the whole name unsafe if it collides with a
// reserved device name.
func sanitize(s string) string {
	if reservedDeviceNamesUpper[strings.ToUpper(s)] {
		return "_" + s
	}
	runes := []rune(s)
	for i, r := range runes {
		if strings.ContainsRune(pathUnsafe, r) || (r >= 0xE000 && r <= 0xF8FF) {
			runes[i] = '_'
		}
	}
	out := string(runes)
	out = strings.TrimRight(out, " .")
	out = strings.TrimLeft(out, " ")
	if out == "" {
		out = "(empty)"
	}
	return out
}

// Policy tracks which lowercase names have already been handed out so
// later entries in the same directory can be disambiguated against
// them.
type Policy struct {
	used map[string]bool
}

// NewPolicy returns a Policy with no names allocated yet.
func NewPolicy() *Policy {
	return &Policy{used: make(map[string]bool)}
}

// Resolve produces the final host filename for one directory entry.
func (p *Policy) Resolve(name, ext string, kind classify.Kind, tags Tags) string {
	name = sanitize(strings.TrimRight(name, " "))
	ext = strings.TrimRight(ext, " ")

	base := name
	rest := ""
	if ext != "" {
		rest = "." + sanitize(ext)
	}
	if !extensionAllowed(kind, ext) {
		_, fallback := extensionAllowList(kind)
		rest += "." + fallback
	}
	rest += tags.suffix()

	candidate := base + rest
	for k := 2; p.used[strings.ToLower(candidate)]; k++ {
		candidate = fmt.Sprintf("%s (%d)%s", base, k, rest)
	}
	p.used[strings.ToLower(candidate)] = true
	return candidate
}
